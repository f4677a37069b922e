// Package random implements the deterministic random source used for finite epochs.
//
// The bytes it produces are derived from the hashes of the prime units on the level
// in question, so they are public and computable by the adversary. This is the
// coin-free configuration of the protocol: with a finite number of epochs the
// deterministic common vote prefix is long enough that the protocol terminates
// before predictability matters.
package random

import (
	"encoding/binary"
	"sort"

	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

type deterministic struct {
	dag ethereal.Dag
}

type factory struct{}

// NewFactory returns a factory of deterministic random sources.
func NewFactory() ethereal.RandomSourceFactory {
	return factory{}
}

// NewRandomSource creates a deterministic random source bound to the given dag.
func (factory) NewRandomSource(dag ethereal.Dag) ethereal.RandomSource {
	return &deterministic{dag}
}

// DealingData returns the random source data for a dealing unit, always empty.
func (factory) DealingData(ethereal.EpochID) ([]byte, error) {
	return nil, nil
}

// DataToInclude returns the random source data to include in a unit, always empty:
// the deterministic source needs no per-unit contribution.
func (*deterministic) DataToInclude(uint16, []ethereal.Unit, int) ([]byte, error) {
	return nil, nil
}

// RandomBytes derives bytes for the given process and level from the hashes of all
// the prime units on that level. Returns nil when the dag has not reached the level yet.
func (rs *deterministic) RandomBytes(pid uint16, level int) []byte {
	if rs.dag.MaxLevel() < level {
		return nil
	}
	hashes := []*ethereal.Hash{}
	rs.dag.PrimeUnits(level).Iterate(func(units []ethereal.Unit) bool {
		for _, u := range units {
			hashes = append(hashes, u.Hash())
		}
		return true
	})
	if len(hashes) == 0 {
		return nil
	}
	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i].LessThan(hashes[j])
	})
	data := make([]byte, 0, len(hashes)*ethereal.HashLength+6)
	for _, h := range hashes {
		data = append(data, h[:]...)
	}
	data = binary.LittleEndian.AppendUint16(data, pid)
	data = binary.LittleEndian.AppendUint32(data, uint32(level))
	var result ethereal.Hash
	ethereal.Shake128.Sum(&result, data)
	return result[:]
}
