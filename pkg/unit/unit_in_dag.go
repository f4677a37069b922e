package unit

import (
	"math"

	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

// unitInDag is a unit that is already inside the dag and has all its properties
// precomputed and cached. It uses forking heights to optimize AboveWithinProc calls.
type unitInDag struct {
	ethereal.Unit
	forkingHeight int
}

// Embed transforms the given unit into a unit with a precomputed forking height.
// The returned unit overrides the AboveWithinProc method to use that forking height.
func Embed(u ethereal.Unit, dag ethereal.Dag) ethereal.Unit {
	result := &unitInDag{u, math.MaxInt32}
	result.computeForkingHeight(dag)
	return result
}

func (u *unitInDag) AboveWithinProc(v ethereal.Unit) bool {
	if u.Height() < v.Height() || u.Creator() != v.Creator() {
		return false
	}
	if vInDag, ok := v.(*unitInDag); ok && v.Height() <= commonForkingHeight(u, vInDag) {
		return true
	}
	// Either a fork or a unit not from this dag, no optimization possible.
	return u.Unit.AboveWithinProc(v)
}

func (u *unitInDag) computeForkingHeight(dag ethereal.Dag) {
	// This works as long as units created by one process are added to the dag atomically,
	// i.e. there is no race between reading and writing dag.MaximalUnitsPerProcess.
	if ethereal.Dealing(u) {
		if len(dag.MaximalUnitsPerProcess().Get(u.Creator())) > 0 {
			// this is a forking dealing unit
			u.forkingHeight = -1
		} else {
			u.forkingHeight = math.MaxInt32
		}
		return
	}
	if predecessor, ok := ethereal.Predecessor(u).(*unitInDag); ok {
		found := false
		for _, v := range dag.MaximalUnitsPerProcess().Get(u.Creator()) {
			if v == predecessor {
				found = true
				break
			}
		}
		if found {
			u.forkingHeight = predecessor.forkingHeight
		} else {
			// There is already a unit that has the predecessor as its predecessor, so u is a fork.
			if predecessor.forkingHeight < predecessor.Height() {
				u.forkingHeight = predecessor.forkingHeight
			} else {
				u.forkingHeight = predecessor.Height()
			}
		}
	}
}

func commonForkingHeight(u, v *unitInDag) int {
	if u.forkingHeight < v.forkingHeight {
		return u.forkingHeight
	}
	return v.forkingHeight
}
