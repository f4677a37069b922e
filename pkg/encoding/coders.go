// Package encoding implements the deterministic byte codec for preunits.
//
// A unit travels as its id, the heights and control hash of its crown, its data,
// and its random source data. The receiver resolves the parents locally, so the
// serialised form is a function of these bytes alone, identical at every process.
package encoding

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/unit"
)

type encoder struct {
	io.Writer
}

// newEncoder creates an encoder writing to w. Units are encoded as follows:
//  1. The unit id, 8 bytes.
//  2. The size of the committee, 2 bytes.
//  3. The parent heights from the crown, 4 bytes each, -1 as MaxUint32.
//  4. The control hash, 32 bytes.
//  5. The size of the unit data in bytes, 4 bytes, followed by the data.
//  6. The size of the random source data in bytes, 4 bytes, followed by that data.
//
// All integers are little-endian unsigned.
func newEncoder(w io.Writer) *encoder {
	return &encoder{w}
}

func (e *encoder) encodeUnit(u ethereal.BaseUnit) error {
	crown := u.View()
	nProc := uint16(len(crown.Heights))
	data := make([]byte, 8+2+int(nProc)*4+32+4)
	s := 0
	binary.LittleEndian.PutUint64(data[s:s+8], ethereal.UnitID(u))
	s += 8
	binary.LittleEndian.PutUint16(data[s:s+2], nProc)
	s += 2
	for _, h := range crown.Heights {
		if h == -1 {
			binary.LittleEndian.PutUint32(data[s:s+4], math.MaxUint32)
		} else {
			binary.LittleEndian.PutUint32(data[s:s+4], uint32(h))
		}
		s += 4
	}
	copy(data[s:s+32], crown.ControlHash[:])
	s += 32
	binary.LittleEndian.PutUint32(data[s:s+4], uint32(len(u.Data())))
	if _, err := e.Write(data); err != nil {
		return err
	}
	if len(u.Data()) > 0 {
		if _, err := e.Write(u.Data()); err != nil {
			return err
		}
	}
	if err := e.encodeUint32(uint32(len(u.RandomSourceData()))); err != nil {
		return err
	}
	if len(u.RandomSourceData()) > 0 {
		if _, err := e.Write(u.RandomSourceData()); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeAntichain(units []ethereal.Unit) error {
	if err := e.encodeUint32(uint32(len(units))); err != nil {
		return err
	}
	for _, u := range units {
		if err := e.encodeUnit(u); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeChunk(units []ethereal.Unit) error {
	layers := toLayers(units)
	if err := e.encodeUint32(uint32(len(layers))); err != nil {
		return err
	}
	for _, layer := range layers {
		if err := e.encodeAntichain(layer); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeUint32(i uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, i)
	_, err := e.Write(buf)
	return err
}

type decoder struct {
	io.Reader
	algo ethereal.DigestAlgorithm
}

// newDecoder creates a decoder reading from r, assuming the format described at
// newEncoder. It reads only as much data as needed.
func newDecoder(r io.Reader, algo ethereal.DigestAlgorithm) *decoder {
	return &decoder{r, algo}
}

func (d *decoder) decodePreunit() (ethereal.Preunit, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(d, buf); err != nil {
		return nil, err
	}
	id := binary.LittleEndian.Uint64(buf)
	nProc, err := d.decodeUint16()
	if err != nil {
		return nil, err
	}
	heights := make([]int, nProc)
	for i := range heights {
		h, err := d.decodeUint32()
		if err != nil {
			return nil, err
		}
		if h == math.MaxUint32 {
			heights[i] = -1
		} else {
			heights[i] = int(h)
		}
	}
	controlHash := &ethereal.Hash{}
	if _, err := io.ReadFull(d, controlHash[:]); err != nil {
		return nil, err
	}
	height, creator, _ := ethereal.DecodeID(id)
	if int(creator) >= len(heights) {
		return nil, ethereal.NewDataError("creator out of committee range")
	}
	if height != heights[creator]+1 {
		return nil, ethereal.NewDataError("unit id inconsistent with the crown")
	}
	unitDataLen, err := d.decodeUint32()
	if err != nil {
		return nil, err
	}
	if unitDataLen > maxDataBytes {
		return nil, ethereal.NewDataError("too much data in a preunit")
	}
	unitData := make([]byte, unitDataLen)
	if _, err := io.ReadFull(d, unitData); err != nil {
		return nil, err
	}
	rsDataLen, err := d.decodeUint32()
	if err != nil {
		return nil, err
	}
	if rsDataLen > maxRandomSourceDataBytes {
		return nil, ethereal.NewDataError("too much random source data in a preunit")
	}
	rsData := make([]byte, rsDataLen)
	if _, err := io.ReadFull(d, rsData); err != nil {
		return nil, err
	}
	return unit.NewPreunit(id, ethereal.NewCrown(heights, controlHash), unitData, rsData, d.algo), nil
}

func (d *decoder) decodeAntichain() ([]ethereal.Preunit, error) {
	k, err := d.decodeUint32()
	if err != nil {
		return nil, err
	}
	if k > maxUnitsInChunk {
		return nil, ethereal.NewDataError("antichain too long")
	}
	result := make([]ethereal.Preunit, k)
	for i := range result {
		result[i], err = d.decodePreunit()
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (d *decoder) decodeChunk() ([]ethereal.Preunit, error) {
	k, err := d.decodeUint32()
	if err != nil {
		return nil, err
	}
	var result []ethereal.Preunit
	for i := uint32(0); i < k; i++ {
		layer, err := d.decodeAntichain()
		if err != nil {
			return nil, err
		}
		result = append(result, layer...)
		if len(result) > maxUnitsInChunk {
			return nil, ethereal.NewDataError("chunk too long")
		}
	}
	return result, nil
}

func (d *decoder) decodeUint16() (uint16, error) {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(d, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (d *decoder) decodeUint32() (uint32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(d, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

const (
	maxDataBytes             = 2e6
	maxRandomSourceDataBytes = 1e6
	maxUnitsInChunk          = 1e6
)
