// Package dag implements the structural store of units for a single epoch.
//
// The dag resolves parents of incoming preunits, validates units with a configurable
// list of checks, and notifies registered hooks about insertions and forks. All
// inserts, together with the hooks they fire, run under a single mutex, so derived
// state observed by the hooks is always consistent with the dag contents.
package dag

import (
	"sync"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/unit"
)

const fiberMapStep = 10

type dag struct {
	nProc       uint16
	epochID     ethereal.EpochID
	algo        ethereal.DigestAlgorithm
	units       *unitBag
	levelUnits  *fiberMap
	heightUnits *fiberMap
	maxUnits    ethereal.SlottedUnits
	forking     []bool
	maxLevel    int
	checks      []ethereal.UnitChecker
	preInsert   []ethereal.InsertHook
	postInsert  []ethereal.InsertHook
	onFork      []ethereal.ForkHook
	mx          sync.Mutex
}

// New constructs a dag for the given number of processes and epoch.
func New(cnf config.Config, epochID ethereal.EpochID) ethereal.Dag {
	return &dag{
		nProc:       cnf.NProc,
		epochID:     epochID,
		algo:        cnf.DigestAlgorithm,
		units:       newUnitBag(),
		levelUnits:  newFiberMap(cnf.NProc, fiberMapStep),
		heightUnits: newFiberMap(cnf.NProc, fiberMapStep),
		maxUnits:    newSlottedUnits(cnf.NProc),
		forking:     make([]bool, cnf.NProc),
		maxLevel:    -1,
		checks:      append([]ethereal.UnitChecker(nil), cnf.Checks...),
	}
}

func (dag *dag) EpochID() ethereal.EpochID {
	return dag.epochID
}

func (dag *dag) IsQuorum(number uint16) bool {
	return ethereal.IsQuorum(dag.nProc, number)
}

func (dag *dag) NProc() uint16 {
	return dag.nProc
}

func (dag *dag) AddCheck(check ethereal.UnitChecker) {
	dag.checks = append(dag.checks, check)
}

func (dag *dag) BeforeInsert(hook ethereal.InsertHook) {
	dag.preInsert = append(dag.preInsert, hook)
}

func (dag *dag) AfterInsert(hook ethereal.InsertHook) {
	dag.postInsert = append(dag.postInsert, hook)
}

func (dag *dag) OnFork(hook ethereal.ForkHook) {
	dag.onFork = append(dag.onFork, hook)
}

func (dag *dag) IsForker(pid uint16) bool {
	dag.mx.Lock()
	defer dag.mx.Unlock()
	return dag.forking[pid]
}

// DecodeParents turns the crown of the preunit into a slice of parent units.
// Returns UnknownParents when some of the parents are not present in the dag,
// AmbiguousParents when the parents cannot be determined by creator and height alone,
// and ComplianceError when the control hash does not match the resolved parents.
func (dag *dag) DecodeParents(pu ethereal.Preunit) ([]ethereal.Unit, error) {
	if u := dag.GetUnit(pu.Hash()); u != nil {
		return nil, ethereal.NewDuplicateUnit(u)
	}
	heights := pu.View().Heights
	possibleParents, unknown := dag.heightUnits.get(heights)
	if unknown > 0 {
		return nil, ethereal.NewUnknownParents(unknown)
	}
	parents := make([]ethereal.Unit, dag.nProc)
	for i, units := range possibleParents {
		if heights[i] == -1 {
			continue
		}
		if len(units) > 1 {
			return nil, ethereal.NewAmbiguousParents(possibleParents)
		}
		parents[i] = units[0]
	}
	if *dag.algo.Combine(ethereal.ToHashes(parents)) != pu.View().ControlHash {
		return nil, ethereal.NewComplianceError("wrong control hash")
	}
	return parents, nil
}

// BuildUnit creates a unit out of the preunit and the slice of parents.
func (dag *dag) BuildUnit(pu ethereal.Preunit, parents []ethereal.Unit) ethereal.Unit {
	return unit.FromPreunit(pu, parents)
}

// Check runs the configured unit checkers on the unit.
func (dag *dag) Check(u ethereal.Unit) error {
	for _, check := range dag.checks {
		if err := check(u, dag); err != nil {
			return err
		}
	}
	return nil
}

// Insert puts a unit that passed all checks into the dag. When the unit collides
// with one already present at the same creator and height, both stay in the dag,
// the creator is marked as forking, and the fork hooks fire, all under the dag mutex.
func (dag *dag) Insert(u ethereal.Unit) {
	dag.mx.Lock()
	defer dag.mx.Unlock()
	for _, hook := range dag.preInsert {
		hook(u)
	}
	u = unit.Embed(u, dag)
	forking := len(dag.unitsOnHeight(u.Height()).Get(u.Creator())) > 0
	dag.updateUnitsOnHeight(u)
	if ethereal.Prime(u) {
		dag.addPrime(u)
	}
	dag.units.add(u)
	dag.updateMaximal(u)
	if u.Level() > dag.maxLevel {
		dag.maxLevel = u.Level()
	}
	if forking && !dag.forking[u.Creator()] {
		dag.forking[u.Creator()] = true
		for _, hook := range dag.onFork {
			hook(u.Creator())
		}
	}
	for _, hook := range dag.postInsert {
		hook(u)
	}
}

// PrimeUnits returns the prime units at the requested level, indexed by their creators.
func (dag *dag) PrimeUnits(level int) ethereal.SlottedUnits {
	if su := dag.levelUnits.getFiber(level); su != nil {
		return su
	}
	return newSlottedUnits(dag.nProc)
}

// UnitsOnHeight returns all units on the given height, indexed by their creators.
func (dag *dag) UnitsOnHeight(height int) ethereal.SlottedUnits {
	return dag.unitsOnHeight(height)
}

func (dag *dag) unitsOnHeight(height int) ethereal.SlottedUnits {
	if su := dag.heightUnits.getFiber(height); su != nil {
		return su
	}
	return newSlottedUnits(dag.nProc)
}

// MaximalUnitsPerProcess returns the maximal units created by respective processes.
func (dag *dag) MaximalUnitsPerProcess() ethereal.SlottedUnits {
	return dag.maxUnits
}

// UnitsAbove returns all units present in the dag with heights above the given slice
// of heights, indexed by creators. Nil means all units.
func (dag *dag) UnitsAbove(heights []int) []ethereal.Unit {
	if heights == nil {
		return dag.heightUnits.all()
	}
	return dag.heightUnits.above(heights)
}

// MaxLevel returns the maximal level of a unit in the dag, or -1 when the dag is empty.
func (dag *dag) MaxLevel() int {
	dag.mx.Lock()
	defer dag.mx.Unlock()
	return dag.maxLevel
}

// GetUnit returns the unit with the given hash, or nil when there is none.
func (dag *dag) GetUnit(hash *ethereal.Hash) ethereal.Unit {
	return dag.units.getOne(hash)
}

// GetUnits returns the units with the given hashes, with nils for the missing ones.
func (dag *dag) GetUnits(hashes []*ethereal.Hash) []ethereal.Unit {
	return dag.units.get(hashes)
}

// GetByID returns all units with the given id. More than one only in case of forks.
func (dag *dag) GetByID(id uint64) []ethereal.Unit {
	return dag.units.getByID(id)
}

func (dag *dag) addPrime(u ethereal.Unit) {
	for u.Level() >= dag.levelUnits.Len() {
		dag.levelUnits.extendBy(fiberMapStep)
	}
	su := dag.levelUnits.getFiber(u.Level())
	creator := u.Creator()
	oldPrimes := su.Get(creator)
	primesByCreator := make([]ethereal.Unit, len(oldPrimes), len(oldPrimes)+1)
	copy(primesByCreator, oldPrimes)
	primesByCreator = append(primesByCreator, u)
	su.Set(creator, primesByCreator)
}

func (dag *dag) updateMaximal(u ethereal.Unit) {
	creator := u.Creator()
	maxByCreator := dag.maxUnits.Get(creator)
	newMaxByCreator := make([]ethereal.Unit, 0, len(maxByCreator)+1)
	// The code below assumes that no unit present in the dag created by creator is above u.
	for _, v := range maxByCreator {
		if !ethereal.Above(u, v) {
			newMaxByCreator = append(newMaxByCreator, v)
		}
	}
	newMaxByCreator = append(newMaxByCreator, u)
	dag.maxUnits.Set(creator, newMaxByCreator)
}

func (dag *dag) updateUnitsOnHeight(u ethereal.Unit) {
	height := u.Height()
	creator := u.Creator()
	for height >= dag.heightUnits.Len() {
		dag.heightUnits.extendBy(fiberMapStep)
	}
	su := dag.heightUnits.getFiber(height)
	oldUnitsOnHeightByCreator := su.Get(creator)
	unitsOnHeightByCreator := make([]ethereal.Unit, len(oldUnitsOnHeightByCreator), len(oldUnitsOnHeightByCreator)+1)
	copy(unitsOnHeightByCreator, oldUnitsOnHeightByCreator)
	unitsOnHeightByCreator = append(unitsOnHeightByCreator, u)
	su.Set(creator, unitsOnHeightByCreator)
}
