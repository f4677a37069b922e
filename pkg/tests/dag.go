package tests

import (
	"strconv"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/creator"
	"github.com/ChiralBehaviors/apollo/pkg/dag"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/unit"
)

// NewTestDag creates a dag with the default configuration for the given committee size.
func NewTestDag(nProc uint16, epoch ethereal.EpochID) ethereal.Dag {
	return dag.New(config.New(0, nProc), epoch)
}

// NewTestRandomSource returns a random source basing its bytes on the pid and
// level alone, with no dag involved.
func NewTestRandomSource() ethereal.RandomSource {
	return testRandomSource{}
}

type testRandomSource struct{}

func (testRandomSource) RandomBytes(pid uint16, level int) []byte {
	answer := make([]byte, 32)
	copy(answer, strconv.Itoa(int(pid)+level))
	return answer
}

func (testRandomSource) DataToInclude(uint16, []ethereal.Unit, int) ([]byte, error) {
	return nil, nil
}

// NewDealingUnit creates and inserts a dealing unit for the given creator.
func NewDealingUnit(dg ethereal.Dag, pid uint16, data ethereal.Data, algo ethereal.DigestAlgorithm) ethereal.Unit {
	return AddUnit(dg, unitNew(pid, dg, make([]ethereal.Unit, dg.NProc()), data, algo))
}

// NewUnit creates a unit for the given creator on top of the current maximal
// units of the dag, without inserting it.
func NewUnit(dg ethereal.Dag, pid uint16, data ethereal.Data, algo ethereal.DigestAlgorithm) ethereal.Unit {
	parents := make([]ethereal.Unit, dg.NProc())
	dg.MaximalUnitsPerProcess().Iterate(func(units []ethereal.Unit) bool {
		for _, u := range units {
			if parents[u.Creator()] == nil || parents[u.Creator()].Level() < u.Level() {
				parents[u.Creator()] = u
			}
		}
		return true
	})
	creator.MakeConsistent(parents)
	return unitNew(pid, dg, parents, data, algo)
}

// AddUnit inserts the given unit into the dag and returns the inserted copy.
func AddUnit(dg ethereal.Dag, u ethereal.Unit) ethereal.Unit {
	dg.Insert(u)
	return dg.GetUnit(u.Hash())
}

// BuildRegularDag inserts levels+1 full levels of units into the given dag:
// every process creates a unit on every level, using all the units of the
// previous level as parents.
func BuildRegularDag(dg ethereal.Dag, levels int, algo ethereal.DigestAlgorithm) {
	nProc := dg.NProc()
	for pid := uint16(0); pid < nProc; pid++ {
		NewDealingUnit(dg, pid, ethereal.Data{}, algo)
	}
	for level := 1; level <= levels; level++ {
		created := make([]ethereal.Unit, 0, nProc)
		for pid := uint16(0); pid < nProc; pid++ {
			created = append(created, NewUnit(dg, pid, ethereal.Data(strconv.Itoa(level)), algo))
		}
		for _, u := range created {
			AddUnit(dg, u)
		}
	}
}

func unitNew(pid uint16, dg ethereal.Dag, parents []ethereal.Unit, data ethereal.Data, algo ethereal.DigestAlgorithm) ethereal.Unit {
	return unit.New(pid, dg.EpochID(), parents, ethereal.LevelFromParents(parents), data, nil, algo)
}
