package encoding

import (
	"bytes"
	"io"

	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

// EncodeUnit encodes a unit to a slice of bytes.
func EncodeUnit(u ethereal.BaseUnit) ([]byte, error) {
	var buf bytes.Buffer
	if err := newEncoder(&buf).encodeUnit(u); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePreunit decodes the given data into a preunit. Complementary to EncodeUnit.
func DecodePreunit(data []byte, algo ethereal.DigestAlgorithm) (ethereal.Preunit, error) {
	return newDecoder(bytes.NewReader(data), algo).decodePreunit()
}

// SendUnit writes an encoded unit to the writer.
func SendUnit(u ethereal.BaseUnit, w io.Writer) error {
	return newEncoder(w).encodeUnit(u)
}

// ReceivePreunit decodes a preunit from the reader.
func ReceivePreunit(r io.Reader, algo ethereal.DigestAlgorithm) (ethereal.Preunit, error) {
	return newDecoder(r, algo).decodePreunit()
}

// SendChunk encodes a topologically sorted batch of units and writes it to the writer.
func SendChunk(units []ethereal.Unit, w io.Writer) error {
	return newEncoder(w).encodeChunk(units)
}

// ReceiveChunk decodes a batch of preunits from the reader, topologically sorted.
func ReceiveChunk(r io.Reader, algo ethereal.DigestAlgorithm) ([]ethereal.Preunit, error) {
	return newDecoder(r, algo).decodeChunk()
}

// toLayers splits the given units into antichains, so that each unit's parents
// are in earlier layers.
func toLayers(units []ethereal.Unit) [][]ethereal.Unit {
	layers := map[ethereal.Unit]int{}
	for _, u := range units {
		layers[u] = -1
	}
	for _, u := range units {
		layers[u] = computeLayer(u, layers)
	}
	maxLayer := -1
	for _, u := range units {
		if layers[u] > maxLayer {
			maxLayer = layers[u]
		}
	}
	result := make([][]ethereal.Unit, maxLayer+1)
	for _, u := range units {
		result[layers[u]] = append(result[layers[u]], u)
	}
	return result
}

// computeLayer of a unit: one more than the maximal layer of its parents present
// in the batch, zero when none are.
func computeLayer(u ethereal.Unit, layers map[ethereal.Unit]int) int {
	if layers[u] == -1 {
		maxParentLayer := -1
		for _, v := range u.Parents() {
			if v == nil {
				continue
			}
			if _, inBatch := layers[v]; !inBatch {
				continue
			}
			if l := computeLayer(v, layers); l > maxParentLayer {
				maxParentLayer = l
			}
		}
		layers[u] = maxParentLayer + 1
	}
	return layers[u]
}
