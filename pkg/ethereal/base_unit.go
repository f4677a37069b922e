package ethereal

// BaseUnit defines the most general interface for units.
type BaseUnit interface {
	// Creator is the id of the process that created this unit.
	Creator() uint16
	// EpochID of the epoch this unit belongs to.
	EpochID() EpochID
	// Hash value of this unit.
	Hash() *Hash
	// Height of a unit is the length of the path between this unit and a dealing unit
	// in the (induced) sub-dag containing all units produced by the same creator.
	Height() int
	// View returns the crown of the dag below the unit.
	View() *Crown
	// Data is the application data contained in the unit.
	Data() Data
	// RandomSourceData is data contained in the unit needed to maintain
	// the common random source among processes.
	RandomSourceData() []byte
}

// Preunit represents a unit which does not (yet) belong to a dag, so either just
// created or transferred through the network.
type Preunit interface {
	BaseUnit
}

// Nickname of a unit is a short name, for the purpose of quick identification by a human.
func Nickname(bu BaseUnit) string {
	return bu.Hash().Short()
}

// ID is a triple (Height, Creator, Epoch) encoded as a single number.
func ID(height int, creator uint16, epoch EpochID) uint64 {
	result := uint64(height)
	result += uint64(creator) << 16
	result += uint64(epoch) << 32
	return result
}

// DecodeID that is a single number into a triple (Height, Creator, Epoch).
func DecodeID(id uint64) (int, uint16, EpochID) {
	height := int(id & (1<<16 - 1))
	id >>= 16
	creator := uint16(id & (1<<16 - 1))
	return height, creator, EpochID(id >> 16)
}

// UnitID returns ID of the given BaseUnit.
func UnitID(u BaseUnit) uint64 {
	return ID(u.Height(), u.Creator(), u.EpochID())
}

// DealingHeights returns a slice of ints of given length containing -1 at each position.
// It is the correct slice of heights of parents for a dealing unit.
func DealingHeights(nProc uint16) []int {
	result := make([]int, nProc)
	for i := range result {
		result[i] = -1
	}
	return result
}

// Equal checks if two units are the same.
func Equal(u, v BaseUnit) bool {
	return u.Creator() == v.Creator() && u.Height() == v.Height() && *u.Hash() == *v.Hash()
}
