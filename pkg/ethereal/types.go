package ethereal

// HashLength is the size of hashes of units.
const HashLength = 32

// EpochID is used as a unique identifier of an epoch.
type EpochID uint32

// Data is a packet of application data contained in a unit.
type Data []byte

// DataSource is the provider of application payloads included in units.
type DataSource interface {
	// GetData returns a packet of data to be included in the next unit,
	// possibly empty. Called at most once per created unit.
	GetData() Data
}
