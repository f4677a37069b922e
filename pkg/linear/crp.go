package linear

import (
	"sort"

	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

// crpIterate iterates over all the prime units on a given level in the order of
// the common random permutation, until the given function returns false.
// The permutation is generated in two steps:
//
//	(1) the prefix depends only on the level and the hashes of the units,
//	(2) the suffix additionally mixes in bytes from the random source.
//
// The suffix is computed only when needed, i.e. when the function returned true on
// every unit of the prefix. crpIterate returns false when generating the suffix
// failed because the random source could not reveal the bytes yet, true otherwise.
func (o *ordering) crpIterate(level int, f func(ethereal.Unit) bool) bool {
	prefix, suffix := splitProcesses(int(o.dag.NProc()), int(o.conf.CRPFixedPrefix), level)

	perm := defaultPermutation(o.dag, level, prefix)
	for _, u := range perm {
		if !f(u) {
			return true
		}
	}

	perm, ok := randomPermutation(o.rs, o.dag, level, suffix)
	if !ok {
		return false
	}
	for _, u := range perm {
		if !f(u) {
			return true
		}
	}
	return true
}

// splitProcesses rotates the process ids by the level and splits them into the
// deterministic prefix and the randomised suffix.
func splitProcesses(nProc, prefixLen, level int) ([]int, []int) {
	if prefixLen > nProc {
		prefixLen = nProc
	}
	pids := make([]int, nProc)
	for pid := range pids {
		pids[pid] = (pid + level) % nProc
	}
	return pids[:prefixLen], pids[prefixLen:]
}

func defaultPermutation(dag ethereal.Dag, level int, pids []int) []ethereal.Unit {
	permutation := []ethereal.Unit{}
	for _, pid := range pids {
		permutation = append(permutation, dag.PrimeUnits(level).Get(uint16(pid))...)
	}
	sort.Slice(permutation, func(i, j int) bool {
		return permutation[i].Hash().LessThan(permutation[j].Hash())
	})
	return permutation
}

func randomPermutation(rs ethereal.RandomSource, dag ethereal.Dag, level int, pids []int) ([]ethereal.Unit, bool) {
	permutation := []ethereal.Unit{}
	priority := make(map[ethereal.Unit][]byte)

	for _, pid := range pids {
		randomBytes := rs.RandomBytes(uint16(pid), level)
		if randomBytes == nil {
			return nil, false
		}
		rbLen := len(randomBytes)
		units := dag.PrimeUnits(level).Get(uint16(pid))
		for _, u := range units {
			randomBytes = append(randomBytes[:rbLen], u.Hash()[:]...)
			prio := ethereal.Hash{}
			ethereal.Shake128.Sum(&prio, randomBytes)
			priority[u] = prio[:]
		}
		permutation = append(permutation, units...)
	}

	sort.Slice(permutation, func(i, j int) bool {
		pi, pj := priority[permutation[i]], priority[permutation[j]]
		for x := range pi {
			if pi[x] < pj[x] {
				return true
			}
			if pi[x] > pj[x] {
				return false
			}
		}
		panic("two elements with equal priority")
	})
	return permutation, true
}
