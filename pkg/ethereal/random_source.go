package ethereal

// RandomSource represents a source of randomness needed to run the protocol.
// It specifies what kind of data should be included in units, and can use
// this data to generate random bytes.
type RandomSource interface {
	// RandomBytes returns random bytes for a given process and level.
	// Returns nil when the dag does not yet contain enough information
	// to reveal them.
	RandomBytes(uint16, int) []byte
	// DataToInclude returns data which should be included in a unit
	// with the given creator, set of parents, and level.
	DataToInclude(uint16, []Unit, int) ([]byte, error)
}

// RandomSourceFactory produces RandomSource instances for successive epochs.
type RandomSourceFactory interface {
	// NewRandomSource creates a random source binding the given dag.
	NewRandomSource(Dag) RandomSource
	// DealingData returns the random source data to include in a dealing unit
	// of the given epoch.
	DealingData(EpochID) ([]byte, error)
}
