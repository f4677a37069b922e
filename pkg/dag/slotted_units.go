package dag

import (
	"sync"

	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

type slottedUnits struct {
	contents [][]ethereal.Unit
	mxs      []sync.RWMutex
}

func newSlottedUnits(n uint16) ethereal.SlottedUnits {
	return &slottedUnits{
		contents: make([][]ethereal.Unit, n),
		mxs:      make([]sync.RWMutex, n),
	}
}

// Get returns the units at the provided id. Modifying the returned value
// directly results in undefined behaviour.
func (su *slottedUnits) Get(id uint16) []ethereal.Unit {
	if int(id) >= len(su.mxs) {
		return []ethereal.Unit{}
	}
	su.mxs[id].RLock()
	defer su.mxs[id].RUnlock()
	return su.contents[id]
}

// Set replaces the units at the provided id with units.
func (su *slottedUnits) Set(id uint16, units []ethereal.Unit) {
	if int(id) >= len(su.mxs) {
		return
	}
	su.mxs[id].Lock()
	defer su.mxs[id].Unlock()
	su.contents[id] = units
}

// Iterate runs work on its contents consecutively, until it returns false or the contents run out.
func (su *slottedUnits) Iterate(work func([]ethereal.Unit) bool) {
	for id := range su.contents {
		if !work(su.Get(uint16(id))) {
			return
		}
	}
}
