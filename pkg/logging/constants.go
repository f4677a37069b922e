// Package logging establishes the conventions used for logging protocol events:
// single character field and event names to keep the log lean, and a zerolog
// logger construction honouring the configuration.
package logging

// Shortcuts for event types. Any event that can happen many times per run has a
// single character representation.
const (
	UnitCreated           = "A"
	NewTimingUnit         = "T"
	LinearOrderExtended   = "L"
	UnitAdded             = "D"
	UnitOrdered           = "O"
	OwnUnitOrdered        = "o"
	PreblockProduced      = "B"
	UnitBroadcast         = "M"
	AddPreunits           = "a"
	PreunitReady          = "r"
	UnknownParents        = "u"
	DuplicatedUnit        = "d"
	DuplicatedPreunit     = "p"
	ForkDetected          = "F"
	FrozenParent          = "f"
	CreatorProcessingUnit = "c"

	ServiceStarted        = "start"
	ServiceStopped        = "stop"
	NewEpoch              = "epoch"
	EpochEnd              = "epochEnd"
	CreatorFinished       = "creatorFinished"
	SwitchedToNewEpoch    = "newEpoch"
	InvalidEpochProof     = "invalidEpochProof"
	InvalidControlHash    = "invalidControlHash"
	InvalidCreator        = "invalidCreator"
	UnableToRetrieveEpoch = "unableToRetrieveEpoch"
	MissingRandomBytes    = "missingRandomBytes"
	FailedToDisambiguate  = "failedToDisambiguateParents"
)

// Field names.
const (
	Creator     = "C"
	Epoch       = "E"
	Height      = "H"
	Level       = "V"
	Round       = "R"
	Size        = "N"
	PID         = "P"
	ID          = "I"
	ControlHash = "X"
	Service     = "S"
)

// Service types.
const (
	CreatorService int = iota
	OrdererService
	AdderService
	ExtenderService
)
