package adder

import (
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

// waitingPreunit is a single preunit waiting to be added to the dag.
type waitingPreunit struct {
	pu             ethereal.Preunit
	id             uint64
	source         uint16            // pid of the process that sent us this preunit
	missingParents int               // number of the preunit's parents that we have never seen
	waitingParents int               // number of the preunit's parents that are waiting in the adder
	children       []*waitingPreunit // other preunits that have this preunit as a parent
	failed         bool
}

// checkParents finds out which parents of a newly created waitingPreunit are in the dag,
// which are waiting, and which are missing.
func (ad *adder) checkParents(wp *waitingPreunit) {
	for _, unkID := range ethereal.FindMissingParents(ad.dag, wp.pu) {
		if par, ok := ad.waitingByID[unkID]; ok {
			wp.waitingParents++
			par.children = append(par.children, wp)
		} else {
			wp.missingParents++
			ad.registerMissing(unkID, wp)
		}
	}
}

// checkIfMissing sets the children of a newly created waitingPreunit if some other
// preunits were waiting for it.
func (ad *adder) checkIfMissing(wp *waitingPreunit) {
	if mp, ok := ad.missing[wp.id]; ok {
		wp.children = mp.neededBy
		for _, ch := range wp.children {
			ch.missingParents--
			ch.waitingParents++
		}
		delete(ad.missing, wp.id)
	} else {
		wp.children = make([]*waitingPreunit, 0, 8)
	}
}

// remove the waitingPreunit from the buffer zone and notify its children.
func (ad *adder) remove(wp *waitingPreunit) {
	ad.mx.Lock()
	defer ad.mx.Unlock()
	if wp.failed {
		ad.removeFailed(wp)
		return
	}
	delete(ad.waiting, *wp.pu.Hash())
	delete(ad.waitingByID, wp.id)
	for _, ch := range wp.children {
		ch.waitingParents--
		ad.sendIfReady(ch)
	}
}

// removeFailed removes the waitingPreunit together with all its descendants:
// they can never be added without this one.
func (ad *adder) removeFailed(wp *waitingPreunit) {
	delete(ad.waiting, *wp.pu.Hash())
	delete(ad.waitingByID, wp.id)
	for _, ch := range wp.children {
		ad.removeFailed(ch)
	}
}
