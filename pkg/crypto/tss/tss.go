// Package tss implements weak threshold signatures used for proving that an epoch
// has finished. "Weak" means the scheme is secure as long as the dealer of the keys
// is honest, which is enough here: the keys are dealt once per committee and the
// combined signature only certifies agreement already reached by the protocol.
package tss

import (
	"crypto/subtle"
	"encoding/binary"
	"io"
	"math/big"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bn256"
	"golang.org/x/crypto/sha3"
)

// SignatureLength is the length of a marshalled signature, in bytes.
const SignatureLength = 64

// ShareLength is the length of a marshalled signature share, in bytes.
const ShareLength = SignatureLength + 2

var gen = new(bn256.G2).ScalarBaseMult(big.NewInt(1))

// Signature is a threshold signature obtained by combining threshold many shares.
type Signature struct {
	sgn *bn256.G1
}

// Marshal returns the byte representation of the signature.
func (s *Signature) Marshal() []byte {
	return s.sgn.Marshal()
}

// Unmarshal reads a signature from its byte representation.
func (s *Signature) Unmarshal(data []byte) error {
	if len(data) != SignatureLength {
		return errors.New("wrong length of signature data")
	}
	sgn, ok := new(bn256.G1).Unmarshal(data)
	if !ok {
		return errors.New("malformed signature data")
	}
	s.sgn = sgn
	return nil
}

// Share is a single process's contribution to a threshold signature.
type Share struct {
	owner uint16
	sgn   *bn256.G1
}

// Owner returns the id of the process that produced this share.
func (sh *Share) Owner() uint16 {
	return sh.owner
}

// Marshal returns the byte representation of the share, the owner in the
// first two bytes followed by the signature.
func (sh *Share) Marshal() []byte {
	data := make([]byte, 2, ShareLength)
	binary.LittleEndian.PutUint16(data[:2], sh.owner)
	return append(data, sh.sgn.Marshal()...)
}

// Unmarshal reads a share from its byte representation.
func (sh *Share) Unmarshal(data []byte) error {
	if len(data) != ShareLength {
		return errors.New("wrong length of share data")
	}
	sgn, ok := new(bn256.G1).Unmarshal(data[2:])
	if !ok {
		return errors.New("malformed share data")
	}
	sh.owner = binary.LittleEndian.Uint16(data[:2])
	sh.sgn = sgn
	return nil
}

// WeakThresholdKey is one process's view of the threshold keys of the committee:
// its own secret key, the verification keys of everyone, and the global
// verification key corresponding to the dealt secret.
type WeakThresholdKey struct {
	owner     uint16
	threshold uint16
	globalVK  *bn256.G2
	vks       []*bn256.G2
	sk        *big.Int
}

// Threshold returns the number of shares needed to produce a signature.
func (wtk *WeakThresholdKey) Threshold() uint16 {
	return wtk.threshold
}

// CreateShare signs the message with this process's secret key.
func (wtk *WeakThresholdKey) CreateShare(msg []byte) *Share {
	return &Share{
		owner: wtk.owner,
		sgn:   new(bn256.G1).ScalarMult(hashToPoint(msg), wtk.sk),
	}
}

// VerifyShare checks if the share is a valid signature of msg under its owner's key.
func (wtk *WeakThresholdKey) VerifyShare(share *Share, msg []byte) bool {
	if int(share.owner) >= len(wtk.vks) {
		return false
	}
	return pairingsEqual(share.sgn, wtk.vks[share.owner], msg)
}

// VerifySignature checks if the signature is valid with respect to the global key.
func (wtk *WeakThresholdKey) VerifySignature(s *Signature, msg []byte) bool {
	return pairingsEqual(s.sgn, wtk.globalVK, msg)
}

// CombineShares combines the given shares into a signature by Lagrange
// interpolation. It fails when the number of distinct shares is lower than the
// threshold; excess shares are ignored.
func (wtk *WeakThresholdKey) CombineShares(shares []*Share) (*Signature, bool) {
	distinct := make([]*Share, 0, wtk.threshold)
	seen := make(map[uint16]bool)
	for _, sh := range shares {
		if seen[sh.owner] {
			continue
		}
		seen[sh.owner] = true
		distinct = append(distinct, sh)
		if uint16(len(distinct)) == wtk.threshold {
			break
		}
	}
	if uint16(len(distinct)) != wtk.threshold {
		return nil, false
	}
	points := make([]int64, len(distinct))
	for i, sh := range distinct {
		points[i] = int64(sh.owner)
	}

	summands := make([]*bn256.G1, len(distinct))
	var wg sync.WaitGroup
	for i, sh := range distinct {
		wg.Add(1)
		go func(ix int, sh *Share) {
			defer wg.Done()
			summands[ix] = new(bn256.G1).ScalarMult(sh.sgn, lagrange(points, int64(sh.owner)))
		}(i, sh)
	}
	wg.Wait()

	sum := summands[0]
	for _, elem := range summands[1:] {
		sum.Add(sum, elem)
	}
	return &Signature{sgn: sum}, true
}

// GenerateKeys deals threshold keys for nProc processes, threshold many of which
// are needed to produce a signature. The randomness is taken from randSource, so
// tests can deal deterministic committees. Key distribution among actual committee
// members is the responsibility of the caller.
func GenerateKeys(nProc, threshold uint16, randSource io.Reader) ([]*WeakThresholdKey, error) {
	coeffs := make([]*big.Int, threshold)
	for i := range coeffs {
		c, _, err := bn256.RandomG1(randSource)
		if err != nil {
			return nil, errors.Wrap(err, "generating polynomial coefficients")
		}
		coeffs[i] = c
	}
	secret := coeffs[threshold-1]
	globalVK := new(bn256.G2).ScalarBaseMult(secret)

	sks := make([]*big.Int, nProc)
	vks := make([]*bn256.G2, nProc)
	for i := uint16(0); i < nProc; i++ {
		sks[i] = poly(coeffs, big.NewInt(int64(i)+1))
		vks[i] = new(bn256.G2).ScalarBaseMult(sks[i])
	}

	result := make([]*WeakThresholdKey, nProc)
	for i := uint16(0); i < nProc; i++ {
		result[i] = &WeakThresholdKey{
			owner:     i,
			threshold: threshold,
			globalVK:  globalVK,
			vks:       vks,
			sk:        sks[i],
		}
	}
	return result, nil
}

// hashToPoint maps the message onto the curve through a scalar derived from its digest.
func hashToPoint(msg []byte) *bn256.G1 {
	digest := make([]byte, 32)
	sha3.ShakeSum128(digest, msg)
	scalar := new(big.Int).SetBytes(digest)
	scalar.Mod(scalar, bn256.Order)
	return new(bn256.G1).ScalarBaseMult(scalar)
}

func pairingsEqual(sgn *bn256.G1, vk *bn256.G2, msg []byte) bool {
	if sgn == nil || vk == nil {
		return false
	}
	p1 := bn256.Pair(sgn, gen).Marshal()
	p2 := bn256.Pair(hashToPoint(msg), vk).Marshal()
	return subtle.ConstantTimeCompare(p1, p2) == 1
}

// lagrange computes the Lagrange coefficient at zero for the point x among points.
// Process ids are shifted by one, the dealt secret sits at zero.
func lagrange(points []int64, x int64) *big.Int {
	num := big.NewInt(1)
	den := big.NewInt(1)
	for _, p := range points {
		if p == x {
			continue
		}
		num.Mul(num, big.NewInt(-p-1))
		den.Mul(den, big.NewInt(x-p))
	}
	den.ModInverse(den, bn256.Order)
	num.Mul(num, den)
	num.Mod(num, bn256.Order)
	return num
}

func poly(coeffs []*big.Int, x *big.Int) *big.Int {
	ans := big.NewInt(0)
	for _, c := range coeffs {
		ans.Mul(ans, x)
		ans.Add(ans, c)
		ans.Mod(ans, bn256.Order)
	}
	return ans
}
