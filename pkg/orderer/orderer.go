// Package orderer implements the top-level controller of the protocol engine.
//
// The orderer accepts preunits produced by other committee members, runs this
// process's creator, and emits two streams: the units created here, for broadcast,
// and preblocks, the batches of the resulting total order.
package orderer

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/creator"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/logging"
	"github.com/ChiralBehaviors/apollo/pkg/random"
)

const (
	// beltSize is large enough that the engine never blocks on its own output.
	beltSize = 10000
)

// Orderer is the main object of the protocol. It orchestrates the creator, the
// per-epoch dags with their adders and extenders, and the epoch switching logic.
type Orderer struct {
	conf         config.Config
	rsf          ethereal.RandomSourceFactory
	preblockSink ethereal.PreblockSink
	unitSink     ethereal.UnitSink
	ds           ethereal.DataSource
	creator      *creator.Creator
	current      *epoch
	previous     *epoch
	unitBelt     chan ethereal.Unit // units on the belt are not necessarily in topological order
	lastTiming   chan ethereal.Unit // passes the last timing unit of each epoch to the creator
	orderedUnits chan []ethereal.Unit
	started      bool
	mx           sync.RWMutex
	wg           sync.WaitGroup
	log          zerolog.Logger
}

// New constructs an orderer using the provided configuration, data source and
// output sinks. Returns an error when the configuration is unusable.
func New(conf config.Config, ds ethereal.DataSource, preblockSink ethereal.PreblockSink, unitSink ethereal.UnitSink, log zerolog.Logger) (*Orderer, error) {
	if err := config.Valid(conf); err != nil {
		return nil, err
	}
	if unitSink == nil {
		unitSink = func(ethereal.Unit) {}
	}
	if preblockSink == nil {
		preblockSink = func(*ethereal.Preblock) {}
	}
	return &Orderer{
		conf:         conf,
		rsf:          random.NewFactory(),
		preblockSink: preblockSink,
		unitSink:     unitSink,
		ds:           ds,
		unitBelt:     make(chan ethereal.Unit, beltSize),
		lastTiming:   make(chan ethereal.Unit, 10),
		orderedUnits: make(chan []ethereal.Unit, 10),
		log:          log.With().Int(logging.Service, logging.OrdererService).Logger(),
	}, nil
}

// Start the orderer: open epoch zero, run the creator, and begin emitting
// preblocks. Start is idempotent.
func (ord *Orderer) Start() {
	ord.mx.Lock()
	if ord.started {
		ord.mx.Unlock()
		return
	}
	ord.started = true
	ord.mx.Unlock()

	send := func(u ethereal.Unit) {
		ord.insert(u)
		ord.log.Debug().Uint16(logging.Creator, u.Creator()).Int(logging.Height, u.Height()).Msg(logging.UnitBroadcast)
		ord.unitSink(u)
	}
	epochProofBuilder := creator.NewProofBuilder(ord.conf, ord.log)
	ord.creator = creator.New(ord.conf, ord.ds, send, ord.rsData, epochProofBuilder, ord.log)

	ord.newEpoch(ethereal.EpochID(0))

	ord.wg.Add(1)
	go func() {
		defer ord.wg.Done()
		ord.creator.CreateUnits(ord.unitBelt, ord.lastTiming)
	}()

	ord.wg.Add(1)
	go func() {
		defer ord.wg.Done()
		ord.handleTimingRounds()
	}()

	ord.log.Info().Msg(logging.ServiceStarted)
}

// Stop the orderer: close the epochs, drain the pending work, and wait for the
// workers. After Stop returns, neither sink is invoked again.
func (ord *Orderer) Stop() {
	ord.mx.Lock()
	if !ord.started {
		ord.mx.Unlock()
		return
	}
	ord.started = false
	ord.mx.Unlock()
	if ord.previous != nil {
		ord.previous.close()
	}
	if ord.current != nil {
		ord.current.close()
	}
	close(ord.orderedUnits)
	close(ord.unitBelt)
	ord.wg.Wait()
	ord.log.Info().Msg(logging.ServiceStopped)
}

// handleTimingRounds waits for ordered rounds of units produced by the extenders
// and produces preblocks based on them. Since extenders of two epochs can supply
// ordered rounds concurrently for a short while, it makes sure preblocks are
// produced in ascending epoch order. The timing unit defining the last round of an
// epoch is passed to the creator, so it can produce its signature share.
func (ord *Orderer) handleTimingRounds() {
	defer close(ord.lastTiming)
	current := ethereal.EpochID(0)
	for round := range ord.orderedUnits {
		timingUnit := round[len(round)-1]
		epoch := timingUnit.EpochID()
		if timingUnit.Level() == ord.conf.LastLevel() {
			ord.lastTiming <- timingUnit
		}
		if epoch >= current && timingUnit.Level() <= ord.conf.LastLevel() {
			ord.log.Info().
				Uint32(logging.Epoch, uint32(epoch)).
				Int(logging.Level, timingUnit.Level()).
				Int(logging.Size, len(round)).
				Msg(logging.PreblockProduced)
			ord.preblockSink(ethereal.ToPreblock(round))
		}
		if epoch > current {
			current = epoch
		}
	}
}

// AddPreunits passes preunits received from the given committee member to their
// corresponding epochs. It assumes the preunits are ordered by ascending epoch id
// and, within each epoch, topologically.
func (ord *Orderer) AddPreunits(source uint16, preunits ...ethereal.Preunit) []error {
	var errors []error
	errorsSize := len(preunits)
	getErrors := func() []error {
		if errors == nil {
			errors = make([]error, errorsSize)
		}
		return errors
	}
	processed := 0
	for len(preunits) > 0 {
		epoch := preunits[0].EpochID()
		end := 0
		for end < len(preunits) && preunits[end].EpochID() == epoch {
			end++
		}
		ep := ord.retrieveEpoch(preunits[0])
		if ep != nil {
			errs := ep.adder.AddPreunits(source, preunits[:end]...)
			copy(getErrors()[processed:], errs)
		}
		preunits = preunits[end:]
		processed += end
	}
	return errors
}

// UnitsByID returns units present in the orderer with the given ids. The result
// contains only existing units, and can contain more than one unit per id in case
// of forks, so its length may differ from the number of arguments.
func (ord *Orderer) UnitsByID(ids ...uint64) []ethereal.Unit {
	result := make([]ethereal.Unit, 0, len(ids))
	ord.mx.RLock()
	defer ord.mx.RUnlock()
	for _, id := range ids {
		_, _, epoch := ethereal.DecodeID(id)
		ep, _ := ord.getEpoch(epoch)
		if ep != nil {
			result = append(result, ep.dag.GetByID(id)...)
		}
	}
	return result
}

// UnitsByHash returns units present in the orderer with the given hashes. The
// returned slice has the length of the argument list, with nils for hashes that
// are not present.
func (ord *Orderer) UnitsByHash(hashes ...*ethereal.Hash) []ethereal.Unit {
	ord.mx.RLock()
	defer ord.mx.RUnlock()
	var result []ethereal.Unit
	if ord.current != nil {
		result = ord.current.dag.GetUnits(hashes)
	} else {
		result = make([]ethereal.Unit, len(hashes))
	}
	if ord.previous != nil {
		for i := range result {
			if result[i] == nil {
				result[i] = ord.previous.dag.GetUnit(hashes[i])
			}
		}
	}
	return result
}

// MaxUnits returns the maximal units per process from the chosen epoch, or nil
// when the epoch is not held by the orderer.
func (ord *Orderer) MaxUnits(epoch ethereal.EpochID) ethereal.SlottedUnits {
	ep, _ := ord.getEpoch(epoch)
	if ep != nil {
		return ep.dag.MaximalUnitsPerProcess()
	}
	return nil
}

// GetInfo returns the dag infos of the two most recent epochs.
func (ord *Orderer) GetInfo() [2]*ethereal.DagInfo {
	ord.mx.RLock()
	defer ord.mx.RUnlock()
	var result [2]*ethereal.DagInfo
	if ord.previous != nil {
		result[0] = ethereal.MaxView(ord.previous.dag)
	}
	if ord.current != nil {
		result[1] = ethereal.MaxView(ord.current.dag)
	}
	return result
}

// Delta returns all the units present in the orderer that are newer than the units
// described by the given DagInfo: units from the described epochs above the given
// heights, together with all units from newer epochs. Lagging peers use it to
// catch up on everything they missed.
func (ord *Orderer) Delta(info [2]*ethereal.DagInfo) []ethereal.Unit {
	ord.mx.RLock()
	defer ord.mx.RUnlock()

	var result []ethereal.Unit
	deltaResolver := func(dagInfo *ethereal.DagInfo) {
		if dagInfo == nil {
			return
		}
		if ord.previous != nil && dagInfo.Epoch == ord.previous.id {
			result = append(result, ord.previous.unitsAbove(dagInfo.Heights)...)
		}
		if ord.current != nil && dagInfo.Epoch == ord.current.id {
			result = append(result, ord.current.unitsAbove(dagInfo.Heights)...)
		}
	}
	deltaResolver(info[0])
	deltaResolver(info[1])
	if ord.current != nil {
		describesCurrent := func(dagInfo *ethereal.DagInfo) bool {
			return dagInfo != nil && dagInfo.Epoch >= ord.current.id
		}
		if !describesCurrent(info[0]) && !describesCurrent(info[1]) {
			result = append(result, ord.current.allUnits()...)
		}
	}
	return result
}

// retrieveEpoch returns the epoch the preunit belongs to. A preunit from a future
// epoch creates that epoch, provided it carries a valid epoch proof.
func (ord *Orderer) retrieveEpoch(pu ethereal.Preunit) *epoch {
	epochID := pu.EpochID()
	epoch, fromFuture := ord.getEpoch(epochID)
	if fromFuture {
		if creator.EpochProof(pu, ord.conf.WTKey) {
			epoch = ord.newEpoch(epochID)
		} else {
			ord.log.Warn().
				Uint16(logging.Creator, pu.Creator()).
				Uint32(logging.Epoch, uint32(epochID)).
				Msg(logging.InvalidEpochProof)
		}
	}
	return epoch
}

// getEpoch returns the epoch with the given id. When that epoch is not present,
// the second returned value indicates whether it is newer than the current one.
func (ord *Orderer) getEpoch(epoch ethereal.EpochID) (*epoch, bool) {
	ord.mx.RLock()
	defer ord.mx.RUnlock()
	if ord.current == nil || epoch > ord.current.id {
		return nil, true
	}
	if epoch == ord.current.id {
		return ord.current, false
	}
	if ord.previous != nil && epoch == ord.previous.id {
		return ord.previous, false
	}
	return nil, false
}

// newEpoch creates and returns a new epoch object with the given id. The epoch
// before the previous one is closed and discarded. When an epoch with the given
// id already exists, it is returned instead.
func (ord *Orderer) newEpoch(epoch ethereal.EpochID) *epoch {
	ord.mx.Lock()
	defer ord.mx.Unlock()
	if ord.current == nil || epoch > ord.current.id {
		if ord.previous != nil {
			ord.previous.close()
		}
		ord.previous = ord.current
		ord.current = newEpoch(epoch, ord.conf, ord.rsf, ord.creator, ord.unitBelt, ord.orderedUnits, ord.log)
		return ord.current
	}
	if epoch == ord.current.id {
		return ord.current
	}
	if ord.previous != nil && epoch == ord.previous.id {
		return ord.previous
	}
	return nil
}

// insert puts the provided unit directly into the corresponding epoch, creating it
// when needed. All the correctness checks are skipped: this path is meant for our
// own units exclusively.
func (ord *Orderer) insert(u ethereal.Unit) {
	if u.Creator() != ord.conf.Pid {
		ord.log.Warn().Uint16(logging.Creator, u.Creator()).Msg(logging.InvalidCreator)
		return
	}
	ep, newer := ord.getEpoch(u.EpochID())
	if newer {
		ep = ord.newEpoch(u.EpochID())
	}
	if ep == nil {
		ord.log.Warn().
			Uint32(logging.Epoch, uint32(u.EpochID())).
			Int(logging.Height, u.Height()).
			Msg(logging.UnableToRetrieveEpoch)
		return
	}
	ep.dag.Insert(u)
	ord.log.Info().
		Uint16(logging.Creator, u.Creator()).
		Uint32(logging.Epoch, uint32(u.EpochID())).
		Int(logging.Height, u.Height()).
		Int(logging.Level, u.Level()).
		Msg(logging.UnitAdded)
}

// rsData produces the random source data for a unit with the given level, parents and epoch.
func (ord *Orderer) rsData(level int, parents []ethereal.Unit, epoch ethereal.EpochID) []byte {
	var result []byte
	var err error
	if level == 0 {
		result, err = ord.rsf.DealingData(epoch)
	} else {
		ep, _ := ord.getEpoch(epoch)
		if ep != nil {
			result, err = ep.rs.DataToInclude(ord.conf.Pid, parents, level)
		} else {
			err = ethereal.NewDataError("unknown epoch")
		}
	}
	if err != nil {
		ord.log.Error().Str("where", "orderer.rsData").Msg(err.Error())
		return []byte{}
	}
	return result
}
