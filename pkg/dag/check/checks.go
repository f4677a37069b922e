// Package check implements checkers validating whether units respect the rules
// of the protocol, pluggable into the dag through the configuration.
package check

import (
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

// BasicCorrectness returns an error if the unit does not satisfy the fundamental
// structural properties: a dealing unit has no parents at all, while any other unit
// has a predecessor of the directly preceding height and a quorum of parents.
func BasicCorrectness(u ethereal.Unit, dag ethereal.Dag) error {
	parents := u.Parents()
	nProc := dag.NProc()
	if len(parents) != int(nProc) {
		return ethereal.NewComplianceError("wrong number of parents")
	}
	if u.Creator() >= nProc {
		return ethereal.NewDataError("invalid creator")
	}
	nonNilParents := uint16(0)
	for i := uint16(0); i < nProc; i++ {
		if parents[i] == nil {
			continue
		}
		nonNilParents++
		if parents[i].Creator() != i {
			return ethereal.NewComplianceError("creator of a parent does not match its position")
		}
		if parents[i].EpochID() != u.EpochID() {
			return ethereal.NewComplianceError("parent from a different epoch")
		}
	}
	if ethereal.Dealing(u) {
		if nonNilParents > 0 {
			return ethereal.NewComplianceError("dealing unit with parents")
		}
		return nil
	}
	if !dag.IsQuorum(nonNilParents) {
		return ethereal.NewComplianceError("unit without a quorum of parents")
	}
	if ethereal.Predecessor(u).Height()+1 != u.Height() {
		return ethereal.NewComplianceError("wrong height of the unit")
	}
	return nil
}

// ParentConsistency checks the parent consistency rule: a unit's i-th parent cannot
// be below the i-th parent of any other of that unit's parents. In other words,
// units seen directly, as parents, cannot be below units seen indirectly, as
// parents of parents.
func ParentConsistency(u ethereal.Unit, dag ethereal.Dag) error {
	parents := u.Parents()
	nProc := dag.NProc()
	for i := uint16(0); i < nProc; i++ {
		for j := uint16(0); j < nProc; j++ {
			if parents[j] == nil {
				continue
			}
			w := parents[j].Parents()[i]
			if w == nil {
				continue
			}
			if parents[i] == nil || parents[i].Level() < w.Level() {
				return ethereal.NewComplianceError("parent consistency rule violated")
			}
		}
	}
	return nil
}

// NoLevelSkipping ensures that the predecessor of a unit of level L is of level at
// least L-1, i.e. a creator cannot skip levels in its own chain of units.
func NoLevelSkipping(u ethereal.Unit, _ ethereal.Dag) error {
	if ethereal.Dealing(u) {
		return nil
	}
	if u.Level()-ethereal.Predecessor(u).Level() > 1 {
		return ethereal.NewComplianceError("the creator skipped a level")
	}
	return nil
}

// NoForks rejects any unit whose id collides with a unit already present in the dag
// and any unit created by a known forker. Useful only in strict deployments; the
// default behaviour of the protocol is to accept forks and mark the creator.
func NoForks(u ethereal.Unit, dag ethereal.Dag) error {
	if dag.IsForker(u.Creator()) {
		return ethereal.NewComplianceError("unit created by a known forker")
	}
	if len(dag.GetByID(ethereal.UnitID(u))) > 0 {
		return ethereal.NewComplianceError("the unit is a fork")
	}
	return nil
}

// NoSelfForkingEvidence checks that the unit does not provide evidence of its own
// creator forking.
func NoSelfForkingEvidence(u ethereal.Unit, _ ethereal.Dag) error {
	if ethereal.HasForkingEvidence(u, u.Creator()) {
		return ethereal.NewComplianceError("the unit is evidence of self forking")
	}
	return nil
}

// ForkerMuting checks that the unit does not have a parent created by a process
// that another of the unit's parents proves to be forking.
func ForkerMuting(u ethereal.Unit, _ ethereal.Dag) error {
	for _, parent1 := range u.Parents() {
		if parent1 == nil {
			continue
		}
		for _, parent2 := range u.Parents() {
			if parent2 == nil || parent1 == parent2 {
				continue
			}
			if ethereal.HasForkingEvidence(parent1, parent2.Creator()) {
				return ethereal.NewComplianceError("some parent has evidence of another parent being a forker")
			}
		}
	}
	return nil
}
