package linear

import (
	"sort"

	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

// timingRound is a single round of ordered units: the past of the current timing
// unit without the pasts of the previous ones.
type timingRound struct {
	currentTU ethereal.Unit
	lastTUs   []ethereal.Unit
}

func newTimingRound(currentTimingUnit ethereal.Unit, lastTimingUnits []ethereal.Unit) *timingRound {
	return &timingRound{currentTU: currentTimingUnit, lastTUs: lastTimingUnits}
}

// OrderedUnits returns the units belonging to this timing round in the linear
// order. The timing unit itself comes last.
func (tr *timingRound) OrderedUnits() []ethereal.Unit {
	layers := getAntichainLayers(tr.currentTU, tr.lastTUs)
	return mergeLayers(layers)
}

// We can prove that comparing with the last k timing units, where k is the first
// round with the deterministic common vote zero, is enough to verify whether a unit
// was already ordered. Since the common vote for round k is zero, every unit on
// level tu.Level()+k must be above the timing unit tu, otherwise some unit would
// decide zero for it.
func checkIfAlreadyOrdered(u ethereal.Unit, prevTUs []ethereal.Unit) bool {
	if len(prevTUs) == 0 {
		return false
	}
	if prevTU := prevTUs[len(prevTUs)-1]; prevTU == nil || u.Level() > prevTU.Level() {
		return false
	}
	for it := len(prevTUs) - 1; it >= 0; it-- {
		if ethereal.Above(prevTUs[it], u) {
			return true
		}
	}
	return false
}

// getAntichainLayers divides the units in the timing round of tu into layers:
// the 0-th layer consists of the minimal units of the round, the 1-st of the
// minimal units once the 0-th layer is removed, and so on.
func getAntichainLayers(tu ethereal.Unit, prevTUs []ethereal.Unit) [][]ethereal.Unit {
	unitToLayer := make(map[ethereal.Hash]int)
	seenUnits := make(map[ethereal.Hash]bool)
	result := [][]ethereal.Unit{}

	var dfs func(u ethereal.Unit)
	dfs = func(u ethereal.Unit) {
		seenUnits[*u.Hash()] = true
		minLayerBelow := -1
		for _, uParent := range u.Parents() {
			if uParent == nil {
				continue
			}
			if checkIfAlreadyOrdered(uParent, prevTUs) {
				continue
			}
			if !seenUnits[*uParent.Hash()] {
				dfs(uParent)
			}
			if unitToLayer[*uParent.Hash()] > minLayerBelow {
				minLayerBelow = unitToLayer[*uParent.Hash()]
			}
		}
		uLayer := minLayerBelow + 1
		unitToLayer[*u.Hash()] = uLayer
		if len(result) <= uLayer {
			result = append(result, []ethereal.Unit{u})
		} else {
			result[uLayer] = append(result[uLayer], u)
		}
	}
	dfs(tu)
	return result
}

// mergeLayers flattens the layers into a single sequence. Within a layer units are
// sorted by a tiebreaker derived from the xor of all the hashes in the round, so
// the order cannot be influenced by any single unit.
func mergeLayers(layers [][]ethereal.Unit) []ethereal.Unit {
	var totalXOR ethereal.Hash
	for i := range layers {
		for _, u := range layers[i] {
			totalXOR.XOREqual(u.Hash())
		}
	}
	tiebreaker := make(map[ethereal.Hash]*ethereal.Hash)
	for l := range layers {
		for _, u := range layers[l] {
			tiebreaker[*u.Hash()] = ethereal.XOR(&totalXOR, u.Hash())
		}
	}

	sortedUnits := []ethereal.Unit{}
	for l := range layers {
		sort.Slice(layers[l], func(i, j int) bool {
			tbi := tiebreaker[*layers[l][i].Hash()]
			tbj := tiebreaker[*layers[l][j].Hash()]
			return tbi.LessThan(tbj)
		})
		sortedUnits = append(sortedUnits, layers[l]...)
	}
	return sortedUnits
}
