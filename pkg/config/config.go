// Package config defines the configuration of the protocol engine and its defaults.
package config

import (
	"github.com/ChiralBehaviors/apollo/pkg/crypto/tss"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

// Config represents a complete configuration needed for the engine to start.
type Config struct {
	// Pid is the id of this process within the committee.
	Pid uint16
	// NProc is the size of the committee.
	NProc uint16

	// CanSkipLevel decides whether created units are allowed to skip levels,
	// i.e. to use the newest possible parents regardless of their levels.
	CanSkipLevel bool
	// OrderStartLevel is the first level subject to ordering.
	OrderStartLevel int
	// EpochLength is the number of levels ordered in a single epoch.
	EpochLength int
	// NumberOfEpochs the engine participates in before shutting down.
	NumberOfEpochs int

	// CRPFixedPrefix is the number of candidates per level picked deterministically,
	// before the common random permutation starts consulting the random source.
	CRPFixedPrefix uint16
	// VoteDelay is the number of levels between a timing unit candidate and the
	// first level at which its popularity can be decided.
	VoteDelay int
	// PopularityCap bounds the rounds with a deterministic common vote. Beyond it
	// the common vote comes from the random source.
	PopularityCap int
	// ZeroVoteRound is the only round within PopularityCap with common vote zero.
	ZeroVoteRound int

	// DigestAlgorithm used for hashing units.
	DigestAlgorithm ethereal.DigestAlgorithm
	// Checks performed by the dag on incoming units.
	Checks []ethereal.UnitChecker
	// WTKey is this process's weak threshold key, used for epoch proofs.
	WTKey *tss.WeakThresholdKey

	// LogFile is the path of the log, "stdout", "stderr", or empty to disable.
	LogFile string
	// LogLevel of the zerolog logger: 0-debug 1-info 2-warn 3-error.
	LogLevel int
	// LogBuffer is the number of log entries the diode buffers, 0 disables the diode.
	LogBuffer int
	// LogHuman switches the log to a human readable format.
	LogHuman bool
}

// LastLevel is the highest level ordered within an epoch. Units above it are
// finishing units, carrying threshold signature shares instead of data.
func (cnf Config) LastLevel() int {
	return cnf.OrderStartLevel + cnf.EpochLength - 1
}
