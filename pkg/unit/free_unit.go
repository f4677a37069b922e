package unit

import (
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

type freeUnit struct {
	ethereal.Preunit
	parents []ethereal.Unit
	level   int
	floor   map[uint16][]ethereal.Unit
}

// New constructs a new unit with the given set of parents.
// The parents slice has to be of length nProc, with the parent created by the
// i-th process at the i-th position, or nil.
func New(creator uint16, epoch ethereal.EpochID, parents []ethereal.Unit, level int, data ethereal.Data, rsData []byte, algo ethereal.DigestAlgorithm) ethereal.Unit {
	crown := ethereal.CrownFromParents(parents, algo)
	height := crown.Heights[creator] + 1
	id := ethereal.ID(height, creator, epoch)
	hash := ComputeHash(algo, id, crown, data, rsData)
	u := &freeUnit{
		Preunit: &preunit{creator, epoch, height, hash, crown, data, rsData},
		parents: parents,
		level:   level,
	}
	u.computeFloor()
	return u
}

// FromPreunit creates a new unit based on the given preunit and a list of parents.
func FromPreunit(pu ethereal.Preunit, parents []ethereal.Unit) ethereal.Unit {
	u := &freeUnit{
		Preunit: pu,
		parents: parents,
		level:   ethereal.LevelFromParents(parents),
	}
	u.computeFloor()
	return u
}

func (u *freeUnit) Parents() []ethereal.Unit {
	return u.parents
}

func (u *freeUnit) Level() int {
	return u.level
}

func (u *freeUnit) Floor(pid uint16) []ethereal.Unit {
	if fl, ok := u.floor[pid]; ok {
		return fl
	}
	if u.parents[pid] == nil {
		return nil
	}
	return u.parents[pid:(pid + 1)]
}

func (u *freeUnit) AboveWithinProc(v ethereal.Unit) bool {
	if u.Creator() != v.Creator() {
		return false
	}
	var w ethereal.Unit
	for w = u; w != nil && w.Height() > v.Height(); w = ethereal.Predecessor(w) {
	}
	if w == nil {
		return false
	}
	return *w.Hash() == *v.Hash()
}

func (u *freeUnit) computeFloor() {
	u.floor = make(map[uint16][]ethereal.Unit)
	if ethereal.Dealing(u) {
		return
	}
	for pid := uint16(0); pid < uint16(len(u.parents)); pid++ {
		maximal := ethereal.MaximalByPid(u.parents, pid)
		if len(maximal) > 1 || (len(maximal) == 1 && !ethereal.Equal(maximal[0], u.parents[pid])) {
			u.floor[pid] = maximal
		}
	}
}
