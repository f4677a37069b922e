// Package ethereal defines all the interfaces representing the basic components of the
// Ethereal ordering core.
//
// The main components defined in this package are:
//  1. The unit and preunit representing the information produced by a single process in
//     a single round of the protocol.
//  2. The dag, containing all the units created by processes and representing the
//     partial order between them.
//  3. The random source interacting with the dag to generate randomness needed for the
//     protocol.
//  4. The preblock, one batch of the resulting total order.
package ethereal

// UnitChecker is a function that performs a check on a unit before it is inserted.
type UnitChecker func(Unit, Dag) error

// InsertHook is a function that performs some additional action on a unit before or after Insert.
type InsertHook func(Unit)

// ForkHook is a function invoked, under the dag mutex, when a creator is first observed forking.
type ForkHook func(uint16)

// Dag is the main data structure of the protocol. It is built of units partially ordered
// by the "is-parent-of" relation. A dag spans a single epoch.
type Dag interface {
	// EpochID of the epoch this dag holds.
	EpochID() EpochID
	// DecodeParents returns a slice of parents of the given preunit, if the control hash matches.
	DecodeParents(Preunit) ([]Unit, error)
	// BuildUnit constructs a new unit from the preunit and the slice of parents.
	BuildUnit(Preunit, []Unit) Unit
	// Check runs on the given unit the series of UnitCheckers added to the dag.
	Check(Unit) error
	// Insert puts into the dag a unit that passed all the checks.
	Insert(Unit)
	// PrimeUnits returns all prime units on a given level of the dag.
	PrimeUnits(int) SlottedUnits
	// UnitsOnHeight returns all units on a given height of the dag.
	UnitsOnHeight(int) SlottedUnits
	// MaximalUnitsPerProcess returns a collection of units containing, for each process,
	// all maximal units created by that process.
	MaximalUnitsPerProcess() SlottedUnits
	// UnitsAbove returns all units present in the dag with heights above the given
	// slice of heights, indexed by creators. Nil heights means all units.
	UnitsAbove([]int) []Unit
	// MaxLevel returns the maximal level of a unit present in the dag, -1 if empty.
	MaxLevel() int
	// GetUnit returns a unit with the given hash, if present in the dag, or nil otherwise.
	GetUnit(*Hash) Unit
	// GetUnits returns the slice of units associated with given hashes, in the same order.
	// If no unit with a particular hash exists in the dag, the result contains a nil at
	// that position.
	GetUnits([]*Hash) []Unit
	// GetByID returns the units associated with the given ID. There will be more than one
	// only in the case of forks.
	GetByID(uint64) []Unit
	// IsQuorum checks if the given number of processes is enough to form a quorum.
	IsQuorum(uint16) bool
	// NProc returns the number of processes that shares this dag.
	NProc() uint16
	// IsForker checks whether the dag contains evidence of the given creator forking.
	IsForker(uint16) bool
	// AddCheck extends the list of UnitCheckers that are used during adding a unit.
	AddCheck(UnitChecker)
	// BeforeInsert adds an action to perform before insert.
	BeforeInsert(InsertHook)
	// AfterInsert adds an action to perform after insert.
	AfterInsert(InsertHook)
	// OnFork adds an action to perform when a creator is first observed forking.
	OnFork(ForkHook)
}

// FindMissingParents returns ids of all parents of pu that the dag does not contain.
func FindMissingParents(dag Dag, pu Preunit) []uint64 {
	missing := []uint64{}
	epoch := pu.EpochID()
	for creator, height := range pu.View().Heights {
		if height == -1 {
			continue
		}
		id := ID(height, uint16(creator), epoch)
		if len(dag.GetByID(id)) == 0 {
			missing = append(missing, id)
		}
	}
	return missing
}

// Byzantine is the maximal number of faulty processes tolerated among nProcesses.
func Byzantine(nProcesses uint16) uint16 {
	return (nProcesses - 1) / 3
}

// MinimalQuorum is the minimal possible size of a subset forming a quorum within nProcesses.
func MinimalQuorum(nProcesses uint16) uint16 {
	return 2*Byzantine(nProcesses) + 1
}

// IsQuorum checks if subsetSize forms a quorum amongst all nProcesses.
func IsQuorum(nProcesses, subsetSize uint16) bool {
	return subsetSize >= MinimalQuorum(nProcesses)
}

// MinimalTrusted is the minimal size of a subset of nProcesses, that guarantees
// that the subset contains at least one honest process.
func MinimalTrusted(nProcesses uint16) uint16 {
	return Byzantine(nProcesses) + 1
}
