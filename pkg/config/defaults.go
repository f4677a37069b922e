package config

import (
	"github.com/pkg/errors"

	"github.com/ChiralBehaviors/apollo/pkg/crypto/tss"
	"github.com/ChiralBehaviors/apollo/pkg/dag/check"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

const (
	// MaxDataBytesPerUnit is the maximal allowed size of data included in a unit, in bytes.
	MaxDataBytesPerUnit = 2e6
	// MaxRandomSourceDataBytesPerUnit is the maximal allowed size of random source data included in a unit, in bytes.
	MaxRandomSourceDataBytesPerUnit = 1e6
	// MaxUnitsInChunk is the maximal number of units in a chunk.
	MaxUnitsInChunk = 1e6
)

func defaultTemplate() Config {
	return Config{
		CanSkipLevel:    true,
		OrderStartLevel: 0,
		EpochLength:     30,
		NumberOfEpochs:  1,
		CRPFixedPrefix:  5,
		VoteDelay:       3,
		PopularityCap:   10,
		ZeroVoteRound:   3,
		DigestAlgorithm: ethereal.Shake128,
		Checks:          []ethereal.UnitChecker{check.BasicCorrectness, check.ParentConsistency, check.NoSelfForkingEvidence, check.ForkerMuting},
		LogLevel:        1,
		LogBuffer:       100000,
	}
}

// New returns a configuration with default consensus values for the given committee member.
func New(pid, nProc uint16) Config {
	cnf := defaultTemplate()
	cnf.Pid = pid
	cnf.NProc = nProc
	return cnf
}

// NewWithKey returns a default configuration carrying the given weak threshold key.
// The key is needed whenever the configured number of epochs is greater than one.
func NewWithKey(pid, nProc uint16, wtKey *tss.WeakThresholdKey) Config {
	cnf := New(pid, nProc)
	cnf.WTKey = wtKey
	return cnf
}

// Empty returns a configuration populated by zero values, useful in tests.
func Empty() Config {
	return Config{}
}

// Valid checks whether the configuration describes a committee the engine can run in.
// The returned error explains the first problem found.
func Valid(cnf Config) error {
	if cnf.NProc < 4 {
		return errors.Wrap(ethereal.NewConfigError("committee too small to tolerate failures"), "checking committee size")
	}
	if cnf.Pid >= cnf.NProc {
		return errors.Wrap(ethereal.NewConfigError("pid out of committee range"), "checking pid")
	}
	if cnf.EpochLength < 1 {
		return errors.Wrap(ethereal.NewConfigError("epoch must order at least one level"), "checking epoch length")
	}
	if cnf.NumberOfEpochs < 1 {
		return errors.Wrap(ethereal.NewConfigError("at least one epoch required"), "checking number of epochs")
	}
	if cnf.VoteDelay < 1 {
		return errors.Wrap(ethereal.NewConfigError("voting cannot start at the candidate level"), "checking vote delay")
	}
	if cnf.ZeroVoteRound <= 1 || cnf.ZeroVoteRound > cnf.PopularityCap {
		return errors.Wrap(ethereal.NewConfigError("zero vote round outside the deterministic prefix"), "checking zero vote round")
	}
	if cnf.NumberOfEpochs > 1 {
		if cnf.WTKey == nil {
			return errors.Wrap(ethereal.NewConfigError("multi-epoch run without a threshold key"), "checking threshold key")
		}
		if !ethereal.IsQuorum(cnf.NProc, cnf.WTKey.Threshold()) {
			return errors.Wrap(ethereal.NewConfigError("threshold key too weak for the committee"), "checking threshold key")
		}
	}
	return nil
}
