package creator

import (
	"encoding/binary"

	"github.com/rs/zerolog"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/crypto/tss"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/logging"
)

// A proof is a message required to verify that an epoch has finished. It consists
// of the id and the hash of the last timing unit of the epoch, and is signed with
// a threshold signature.
const proofLength = ethereal.HashLength + 8

// EpochProof checks if the given preunit is a valid proof that a new epoch started.
// Epoch zero needs no proof, any dealing unit opens it.
func EpochProof(pu ethereal.Preunit, wtk *tss.WeakThresholdKey) bool {
	if pu.Height() != 0 {
		return false
	}
	if pu.EpochID() == ethereal.EpochID(0) {
		return true
	}
	if wtk == nil {
		return false
	}
	sig, msg, err := decodeSignature(pu.Data())
	if err != nil {
		return false
	}
	_, _, epoch, _ := decodeProof(msg)
	if epoch+1 != pu.EpochID() {
		return false
	}
	return wtk.VerifySignature(sig, msg)
}

// NewProofBuilder returns a factory of epoch proof builders backed by the weak
// threshold key from the configuration.
func NewProofBuilder(conf config.Config, log zerolog.Logger) EpochProofBuilderFactory {
	return func(epoch ethereal.EpochID) EpochProofBuilder {
		return &proofBuilder{
			conf:   conf,
			epoch:  epoch,
			shares: newShareDB(conf),
			log:    log,
		}
	}
}

type proofBuilder struct {
	conf   config.Config
	epoch  ethereal.EpochID
	shares *shareDB
	log    zerolog.Logger
}

// Verify checks if the given preunit is a proof that this builder's epoch finished.
func (pb *proofBuilder) Verify(pu ethereal.Preunit) bool {
	if pb.epoch+1 != pu.EpochID() {
		return false
	}
	return EpochProof(pu, pb.conf.WTKey)
}

// BuildShare returns this process's share of the epoch proof derived from the
// last timing unit of the epoch.
func (pb *proofBuilder) BuildShare(lastTimingUnit ethereal.Unit) ethereal.Data {
	msg := encodeProof(lastTimingUnit)
	share := pb.conf.WTKey.CreateShare(msg)
	if share == nil {
		return ethereal.Data{}
	}
	return encodeShare(share, msg)
}

// TryBuilding extracts a signature share from the given finishing unit.
// When threshold many distinct valid shares have been collected, it combines them
// and returns the encoded proof. Otherwise returns nil.
func (pb *proofBuilder) TryBuilding(u ethereal.Unit) ethereal.Data {
	// Ignore regular units and finishing units with empty data.
	if u.EpochID() != pb.epoch || u.Level() <= pb.conf.LastLevel() || len(u.Data()) == 0 {
		return nil
	}
	share, msg, err := decodeShare(u.Data())
	if err != nil {
		pb.log.Error().Str("where", "proofBuilder.decodeShare").Msg(err.Error())
		return nil
	}
	if _, _, epoch, _ := decodeProof(msg); epoch != pb.epoch {
		return nil
	}
	if !pb.conf.WTKey.VerifyShare(share, msg) {
		pb.log.Error().Str("where", "proofBuilder.verifyShare").Uint16(logging.Creator, u.Creator()).Msg("invalid share")
		return nil
	}
	if sig := pb.shares.add(share, msg); sig != nil {
		return encodeSignature(sig, msg)
	}
	return nil
}

// encodeProof produces the encoded form of the proof that the epoch ended:
// the id and the hash of the last timing unit of the epoch.
func encodeProof(u ethereal.Unit) []byte {
	msg := make([]byte, proofLength)
	binary.LittleEndian.PutUint64(msg[:8], ethereal.UnitID(u))
	copy(msg[8:], u.Hash()[:])
	return msg
}

// decodeProof decodes the height, creator, epoch and hash of the last timing unit of the epoch.
func decodeProof(msg []byte) (int, uint16, ethereal.EpochID, *ethereal.Hash) {
	if len(msg) == proofLength {
		id := binary.LittleEndian.Uint64(msg[:8])
		var hash ethereal.Hash
		copy(hash[:], msg[8:])
		h, c, e := ethereal.DecodeID(id)
		return h, c, e, &hash
	}
	return -1, 0, 0, nil
}

// encodeShare converts a signature share and the signed message into unit data.
func encodeShare(share *tss.Share, msg []byte) ethereal.Data {
	return ethereal.Data(append(append([]byte{}, msg...), share.Marshal()...))
}

// decodeShare reads a signature share and the signed message from unit data.
func decodeShare(data ethereal.Data) (*tss.Share, []byte, error) {
	if len(data) < proofLength {
		return nil, nil, ethereal.NewDataError("share data too short")
	}
	result := new(tss.Share)
	if err := result.Unmarshal(data[proofLength:]); err != nil {
		return nil, nil, err
	}
	return result, data[:proofLength], nil
}

// encodeSignature converts a signature and the signed message into unit data.
func encodeSignature(sig *tss.Signature, msg []byte) ethereal.Data {
	return ethereal.Data(append(append([]byte{}, msg...), sig.Marshal()...))
}

// decodeSignature reads a signature and the signed message from unit data.
func decodeSignature(data ethereal.Data) (*tss.Signature, []byte, error) {
	if len(data) < proofLength {
		return nil, nil, ethereal.NewDataError("epoch proof too short")
	}
	result := new(tss.Signature)
	if err := result.Unmarshal(data[proofLength:]); err != nil {
		return nil, nil, err
	}
	return result, data[:proofLength], nil
}

// shareDB is a storage for threshold signature shares indexed by the message they sign.
type shareDB struct {
	conf config.Config
	data map[string]map[uint16]*tss.Share
}

func newShareDB(conf config.Config) *shareDB {
	return &shareDB{conf: conf, data: make(map[string]map[uint16]*tss.Share)}
}

// add puts a share signing msg into the storage. With threshold many distinct
// shares present for msg, they are combined and the signature returned.
func (db *shareDB) add(share *tss.Share, msg []byte) *tss.Signature {
	key := string(msg)
	shares, ok := db.data[key]
	if !ok {
		shares = make(map[uint16]*tss.Share)
		db.data[key] = shares
	}
	shares[share.Owner()] = share
	if uint16(len(shares)) >= db.conf.WTKey.Threshold() {
		toCombine := make([]*tss.Share, 0, len(shares))
		for _, sh := range shares {
			toCombine = append(toCombine, sh)
		}
		if sig, ok := db.conf.WTKey.CombineShares(toCombine); ok {
			return sig
		}
	}
	return nil
}
