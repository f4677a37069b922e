// Package unit implements the units that together build the dag of the protocol.
package unit

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

type preunit struct {
	creator uint16
	epochID ethereal.EpochID
	height  int
	hash    *ethereal.Hash
	crown   *ethereal.Crown
	data    ethereal.Data
	rsData  []byte
}

// NewPreunit constructs a new preunit from the provided data. The id and the crown
// have to agree on the height of the unit, otherwise this function panics.
func NewPreunit(id uint64, crown *ethereal.Crown, data ethereal.Data, rsData []byte, algo ethereal.DigestAlgorithm) ethereal.Preunit {
	h, creator, epoch := ethereal.DecodeID(id)
	if h != crown.Heights[creator]+1 {
		panic("inconsistent height information in preunit id and crown")
	}
	pu := &preunit{
		creator: creator,
		epochID: epoch,
		height:  h,
		crown:   crown,
		data:    data,
		rsData:  rsData,
	}
	pu.hash = ComputeHash(algo, id, crown, data, rsData)
	return pu
}

func (pu *preunit) EpochID() ethereal.EpochID {
	return pu.epochID
}

// RandomSourceData embedded in the preunit.
func (pu *preunit) RandomSourceData() []byte {
	return pu.rsData
}

// Data embedded in the preunit.
func (pu *preunit) Data() ethereal.Data {
	return pu.data
}

// Creator of the preunit.
func (pu *preunit) Creator() uint16 {
	return pu.creator
}

// Height of the preunit.
func (pu *preunit) Height() int {
	return pu.height
}

// Hash of the preunit.
func (pu *preunit) Hash() *ethereal.Hash {
	return pu.hash
}

// View returns the crown consisting of all the parents of the unit.
func (pu *preunit) View() *ethereal.Crown {
	return pu.crown
}

// ComputeHash calculates the value of the unit's hash based on the provided data.
func ComputeHash(algo ethereal.DigestAlgorithm, id uint64, crown *ethereal.Crown, data ethereal.Data, rsData []byte) *ethereal.Hash {
	var buf bytes.Buffer
	idBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(idBytes, id)
	buf.Write(idBytes)
	buf.Write(data)
	buf.Write(rsData)
	heightBytes := make([]byte, 4)
	for _, h := range crown.Heights {
		if h == -1 {
			binary.LittleEndian.PutUint32(heightBytes, math.MaxUint32)
		} else {
			binary.LittleEndian.PutUint32(heightBytes, uint32(h))
		}
		buf.Write(heightBytes)
	}
	buf.Write(crown.ControlHash[:])
	result := &ethereal.Hash{}
	algo.Sum(result, buf.Bytes())
	return result
}
