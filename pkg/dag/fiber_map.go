package dag

import (
	"sync"

	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

// fiberMap is a container for slotted units, indexed by an integer attribute of the
// units, usually height or level.
type fiberMap struct {
	content map[int]ethereal.SlottedUnits
	width   uint16
	length  int
	mx      sync.RWMutex
}

func newFiberMap(width uint16, initialLen int) *fiberMap {
	newMap := &fiberMap{
		content: make(map[int]ethereal.SlottedUnits),
		width:   width,
		length:  initialLen,
	}
	for i := 0; i < initialLen; i++ {
		newMap.content[i] = newSlottedUnits(width)
	}
	return newMap
}

// getFiber returns the units for the given value, or nil if there are none.
func (fm *fiberMap) getFiber(value int) ethereal.SlottedUnits {
	fm.mx.RLock()
	defer fm.mx.RUnlock()
	return fm.content[value]
}

func (fm *fiberMap) Len() int {
	fm.mx.RLock()
	defer fm.mx.RUnlock()
	return fm.length
}

func (fm *fiberMap) extendBy(nValues int) {
	fm.mx.Lock()
	defer fm.mx.Unlock()
	for i := fm.length; i < fm.length+nValues; i++ {
		fm.content[i] = newSlottedUnits(fm.width)
	}
	fm.length += nValues
}

// get takes a list of heights of length nProc and returns a slice of slices of
// corresponding units. The second returned value is the number of unknown units,
// i.e. pairs (creator, height) for which no unit is present.
func (fm *fiberMap) get(heights []int) ([][]ethereal.Unit, int) {
	if len(heights) != int(fm.width) {
		panic("wrong number of heights passed to fiber map")
	}
	result := make([][]ethereal.Unit, fm.width)
	unknown := 0
	fm.mx.RLock()
	defer fm.mx.RUnlock()
	for pid, h := range heights {
		if h == -1 {
			continue
		}
		if su, ok := fm.content[h]; ok {
			result[pid] = su.Get(uint16(pid))
		}
		if len(result[pid]) == 0 {
			unknown++
		}
	}
	return result, unknown
}

// above takes a list of heights of length nProc and returns all units above those heights.
func (fm *fiberMap) above(heights []int) []ethereal.Unit {
	if len(heights) != int(fm.width) {
		panic("wrong number of heights passed to fiber map")
	}
	min := heights[0]
	for _, h := range heights[1:] {
		if h < min {
			min = h
		}
	}
	var result []ethereal.Unit
	fm.mx.RLock()
	defer fm.mx.RUnlock()
	for height := min + 1; height < fm.length; height++ {
		su := fm.content[height]
		for i := uint16(0); i < fm.width; i++ {
			if height > heights[i] {
				result = append(result, su.Get(i)...)
			}
		}
	}
	return result
}

// all returns every unit present in the map.
func (fm *fiberMap) all() []ethereal.Unit {
	fm.mx.RLock()
	defer fm.mx.RUnlock()
	var result []ethereal.Unit
	for height := 0; height < fm.length; height++ {
		su := fm.content[height]
		for i := uint16(0); i < fm.width; i++ {
			result = append(result, su.Get(i)...)
		}
	}
	return result
}
