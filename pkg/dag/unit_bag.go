package dag

import (
	"sync"

	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

type unitBag struct {
	mx       sync.RWMutex
	contents map[ethereal.Hash]ethereal.Unit
	byID     map[uint64][]ethereal.Unit
}

func newUnitBag() *unitBag {
	return &unitBag{
		contents: map[ethereal.Hash]ethereal.Unit{},
		byID:     map[uint64][]ethereal.Unit{},
	}
}

func (units *unitBag) add(u ethereal.Unit) {
	units.mx.Lock()
	defer units.mx.Unlock()
	units.contents[*u.Hash()] = u
	id := ethereal.UnitID(u)
	units.byID[id] = append(units.byID[id], u)
}

func (units *unitBag) getOne(hash *ethereal.Hash) ethereal.Unit {
	units.mx.RLock()
	defer units.mx.RUnlock()
	return units.contents[*hash]
}

func (units *unitBag) get(hashes []*ethereal.Hash) []ethereal.Unit {
	units.mx.RLock()
	defer units.mx.RUnlock()
	result := make([]ethereal.Unit, len(hashes))
	for i, h := range hashes {
		if h == nil {
			continue
		}
		if u, ok := units.contents[*h]; ok {
			result[i] = u
		}
	}
	return result
}

func (units *unitBag) getByID(id uint64) []ethereal.Unit {
	units.mx.RLock()
	defer units.mx.RUnlock()
	return units.byID[id]
}
