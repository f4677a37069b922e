// Package creator contains the component producing this process's units, together
// with the builder of epoch proofs that drive epoch switches.
package creator

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/logging"
	"github.com/ChiralBehaviors/apollo/pkg/unit"
)

// EpochProofBuilder accumulates threshold signature shares towards the proof that
// the current epoch finished, and verifies such proofs in dealing units of later epochs.
type EpochProofBuilder interface {
	// BuildShare returns this process's share of the epoch proof, derived from the
	// last timing unit of the epoch.
	BuildShare(lastTimingUnit ethereal.Unit) ethereal.Data
	// TryBuilding extracts a share from the given finishing unit and, when threshold
	// many shares are present, returns the combined proof. Otherwise returns nil.
	TryBuilding(ethereal.Unit) ethereal.Data
	// Verify checks if the given preunit carries a correct proof of this epoch finishing.
	Verify(ethereal.Preunit) bool
}

// EpochProofBuilderFactory produces EpochProofBuilders for given epochs.
type EpochProofBuilderFactory func(ethereal.EpochID) EpochProofBuilder

// Creator reads units produced by other committee members from the unit belt and
// stores the ones with the highest levels as parent candidates. Whenever the
// candidates suffice to produce a unit on a new level, Creator collects data from
// its DataSource and random source data using the provided function, then builds
// and sends out a new unit.
type Creator struct {
	conf              config.Config
	ds                ethereal.DataSource
	send              func(ethereal.Unit)
	rsData            func(int, []ethereal.Unit, ethereal.EpochID) []byte
	epochProofBuilder EpochProofBuilderFactory
	epochProof        EpochProofBuilder
	epoch             ethereal.EpochID
	epochDone         bool
	candidates        []ethereal.Unit
	quorum            uint16
	maxLvl            int    // max level of units in candidates
	onMaxLvl          uint16 // number of candidates on maxLvl
	level             int    // level of the unit producible with current candidates
	frozen            map[uint16]bool
	finished          bool
	mx                sync.Mutex
	log               zerolog.Logger
}

// New constructs a creator using the provided config, data source and logger.
// The send function is called on each created unit, rsData provides random source
// data for a given level, parents and epoch.
func New(conf config.Config, dataSource ethereal.DataSource, send func(ethereal.Unit), rsData func(int, []ethereal.Unit, ethereal.EpochID) []byte, epochProofBuilder EpochProofBuilderFactory, log zerolog.Logger) *Creator {
	return &Creator{
		conf:              conf,
		ds:                dataSource,
		send:              send,
		rsData:            rsData,
		epochProofBuilder: epochProofBuilder,
		candidates:        make([]ethereal.Unit, conf.NProc),
		maxLvl:            -1,
		quorum:            ethereal.MinimalQuorum(conf.NProc),
		frozen:            make(map[uint16]bool),
		log:               log.With().Int(logging.Service, logging.CreatorService).Logger(),
	}
}

// CreateUnits executes the main loop of the creator. Units appearing on the belt
// are examined and stored to be used as parents of future units. When there are
// enough new parents, a new unit is produced. lastTiming is a channel on which the
// last timing unit of each epoch is expected to appear. The method returns when
// the unit belt is closed or the last epoch is finished.
func (cr *Creator) CreateUnits(unitBelt, lastTiming <-chan ethereal.Unit) {
	defer cr.log.Info().Msg(logging.CreatorFinished)
	cr.newEpoch(ethereal.EpochID(0), ethereal.Data{})

	for u := range unitBelt {
		if cr.finished {
			return
		}
		cr.consume(u, unitBelt, lastTiming)
	}
}

// consume processes a single unit from the belt, together with any further units
// already waiting there, and creates a new unit when ready. A panic while
// processing is logged and the offending unit skipped, the creator keeps running.
func (cr *Creator) consume(u ethereal.Unit, unitBelt, lastTiming <-chan ethereal.Unit) {
	defer func() {
		if r := recover(); r != nil {
			cr.log.Error().Str("where", "creator.consume").Msgf("%v", r)
		}
	}()
	cr.mx.Lock()
	defer cr.mx.Unlock()
	cr.update(u)
	if cr.ready() {
		// Step 1: update candidates with all the units waiting on the belt.
		n := len(unitBelt)
		for i := 0; i < n; i++ {
			cr.update(<-unitBelt)
		}
		if cr.ready() {
			// We check again, in case the epoch changed in Step 1.
			// Step 2: pick parents and level depending on the creating strategy.
			var parents []ethereal.Unit
			var level int
			if cr.conf.CanSkipLevel {
				level = cr.level
				parents = cr.getParents()
			} else {
				level = cr.candidates[cr.conf.Pid].Level() + 1
				parents = cr.getParentsForLevel(level)
			}
			// Step 3: create the unit.
			cr.createUnit(parents, level, cr.getData(level, lastTiming))
		}
	}
}

// ready checks if the creator can produce a new unit, i.e. whether the candidates
// suffice for a level higher than that of our previous unit. The creator stops
// producing units for the current epoch after creating one with a signature share.
func (cr *Creator) ready() bool {
	return !cr.epochDone && cr.candidates[cr.conf.Pid] != nil && cr.level > cr.candidates[cr.conf.Pid].Level()
}

// getData produces a piece of data to be included in a unit on a given level.
// For regular units the provided DataSource is used. For finishing units it is
// either empty or, once the epoch's last timing unit arrives, an encoded threshold
// signature share of the id and hash of that unit.
func (cr *Creator) getData(level int, lastTiming <-chan ethereal.Unit) ethereal.Data {
	if level <= cr.conf.LastLevel() {
		if cr.ds != nil {
			return cr.ds.GetData()
		}
		return ethereal.Data{}
	}
	for {
		// In a rare case there can be timing units from previous epochs left on the
		// lastTiming channel. This loop drains and ignores them.
		select {
		case timingUnit := <-lastTiming:
			if timingUnit.EpochID() < cr.epoch {
				continue
			}
			if timingUnit.EpochID() == cr.epoch {
				cr.epochDone = true
				if int(cr.epoch) == cr.conf.NumberOfEpochs-1 {
					// The epoch we just finished is the last one we were supposed to produce.
					return ethereal.Data{}
				}
				return cr.epochProof.BuildShare(timingUnit)
			}
			panic("lastTiming received a unit from a future epoch")
		default:
			return ethereal.Data{}
		}
	}
}

// update takes a unit that appeared on the belt and updates the creator's state
// with the information it carries.
func (cr *Creator) update(u ethereal.Unit) {
	cr.log.Debug().
		Uint16(logging.Creator, u.Creator()).
		Uint32(logging.Epoch, uint32(u.EpochID())).
		Int(logging.Height, u.Height()).
		Int(logging.Level, u.Level()).
		Msg(logging.CreatorProcessingUnit)

	// Units from older epochs and units created by known forkers are ignored.
	if cr.frozen[u.Creator()] || u.EpochID() < cr.epoch {
		return
	}

	// If the unit is from a new epoch, switch to that epoch. Units appear on the
	// belt in the order they were added to the dag, so the first unit of a new
	// epoch is always a dealing unit.
	if u.EpochID() > cr.epoch {
		if !cr.epochProof.Verify(u) {
			cr.log.Warn().
				Uint16(logging.Creator, u.Creator()).
				Int(logging.Height, u.Height()).
				Msg(logging.InvalidEpochProof)
			return
		}
		cr.newEpoch(u.EpochID(), u.Data())
	}

	// If this is a finishing unit, try to extract a threshold signature share from
	// it. Enough shares constitute a proof that the epoch finished, in which case
	// we switch to the next epoch using that proof as the dealing data.
	if data := cr.epochProof.TryBuilding(u); data != nil {
		cr.newEpoch(cr.epoch+1, data)
		return
	}

	cr.updateCandidates(u)
}

// updateCandidates puts the provided unit among the parent candidates provided
// that its level is higher than that of the previous candidate of the same creator.
func (cr *Creator) updateCandidates(u ethereal.Unit) {
	if u.EpochID() != cr.epoch {
		return
	}
	prev := cr.candidates[u.Creator()]
	if prev == nil || prev.Level() < u.Level() {
		cr.candidates[u.Creator()] = u
		if u.Level() == cr.maxLvl {
			cr.onMaxLvl++
		}
		if u.Level() > cr.maxLvl {
			cr.maxLvl = u.Level()
			cr.onMaxLvl = 1
		}
		cr.level = cr.maxLvl
		if cr.onMaxLvl >= cr.quorum {
			cr.level++
		}
	}
}

// resetCandidates brings the candidates and related variables back to the initial
// state, used when switching to a new epoch.
func (cr *Creator) resetCandidates() {
	for ix := range cr.candidates {
		cr.candidates[ix] = nil
	}
	cr.maxLvl = -1
	cr.onMaxLvl = 0
	cr.level = 0
}

// FreezeParent tells the creator to stop updating the parent candidate for the
// given pid and to use the corresponding parent of our last created unit instead.
func (cr *Creator) FreezeParent(pid uint16) {
	cr.mx.Lock()
	defer cr.mx.Unlock()
	if own := cr.candidates[cr.conf.Pid]; own != nil {
		cr.candidates[pid] = own.Parents()[pid]
	} else {
		cr.candidates[pid] = nil
	}
	cr.frozen[pid] = true
	cr.log.Info().Uint16(logging.Creator, pid).Msg(logging.FrozenParent)
}

// getParents returns a consistent copy of the current parent candidates.
func (cr *Creator) getParents() []ethereal.Unit {
	result := make([]ethereal.Unit, cr.conf.NProc)
	copy(result, cr.candidates)
	MakeConsistent(result)
	return result
}

// getParentsForLevel returns a set of candidates with levels at most level-1,
// obtained by walking the candidates back through their predecessors.
func (cr *Creator) getParentsForLevel(level int) []ethereal.Unit {
	result := make([]ethereal.Unit, cr.conf.NProc)
	for i, u := range cr.candidates {
		for u != nil && u.Level() >= level {
			u = ethereal.Predecessor(u)
		}
		result[i] = u
	}
	MakeConsistent(result)
	return result
}

// createUnit creates a unit with the given parents, level, and data. Assumes the
// provided parameters are consistent, i.e. level == ethereal.LevelFromParents(parents)
// and parents[i].EpochID() == cr.epoch.
func (cr *Creator) createUnit(parents []ethereal.Unit, level int, data ethereal.Data) {
	rsData := cr.rsData(level, parents, cr.epoch)
	u := unit.New(cr.conf.Pid, cr.epoch, parents, level, data, rsData, cr.conf.DigestAlgorithm)
	cr.log.Info().
		Uint32(logging.Epoch, uint32(u.EpochID())).
		Int(logging.Height, u.Height()).
		Int(logging.Level, level).
		Msg(logging.UnitCreated)
	cr.send(u)
	cr.update(u)
}

// newEpoch switches the creator to the given epoch, resets the candidates and
// creates a dealing unit with the provided data.
func (cr *Creator) newEpoch(epoch ethereal.EpochID, data ethereal.Data) {
	cr.epoch = epoch
	cr.epochDone = false
	cr.resetCandidates()
	if epoch >= ethereal.EpochID(cr.conf.NumberOfEpochs) {
		cr.finished = true
		return
	}
	cr.epochProof = cr.epochProofBuilder(epoch)
	cr.log.Info().Uint32(logging.Epoch, uint32(epoch)).Msg(logging.SwitchedToNewEpoch)
	cr.createUnit(make([]ethereal.Unit, cr.conf.NProc), 0, data)
}

// MakeConsistent enforces the parent consistency rule on the given slice of
// parents, in place: a unit's i-th parent cannot be lower, in the level sense,
// than the i-th parent of any other of that unit's parents. Units seen directly,
// as parents, cannot be below units seen indirectly, as parents of parents.
func MakeConsistent(parents []ethereal.Unit) {
	for i := 0; i < len(parents); i++ {
		for j := 0; j < len(parents); j++ {
			if parents[j] == nil {
				continue
			}
			u := parents[j].Parents()[i]
			if parents[i] == nil || (u != nil && u.Level() > parents[i].Level()) {
				parents[i] = u
			}
		}
	}
}
