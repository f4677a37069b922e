// Package adder implements the buffer zone where preunits wait for their parents
// before being inserted into the dag.
package adder

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/logging"
)

const (
	channelLength = 32
	// maxParentCombinations bounds the search for parents of a unit pointing at forks.
	maxParentCombinations = 1 << 10
)

// Adder is the entry point for preunits coming from other committee members.
type Adder interface {
	// AddPreunits adds preunits received from the given process.
	AddPreunits(uint16, ...ethereal.Preunit) []error
	// Close stops the adder.
	Close()
}

// adder is a buffer zone in which preunits wait to be added to the dag. A preunit
// with missing parents waits until all of them are present. Then it becomes 'ready'
// and lands on the channel of its creator's dedicated worker, which performs
// DecodeParents, BuildUnit, Check, and Insert.
type adder struct {
	dag         ethereal.Dag
	conf        config.Config
	ready       []chan *waitingPreunit
	waiting     map[ethereal.Hash]*waitingPreunit
	waitingByID map[uint64]*waitingPreunit
	missing     map[uint64]*missingPreunit
	active      bool
	rmx         sync.RWMutex
	mx          sync.Mutex
	wg          sync.WaitGroup
	log         zerolog.Logger
}

// New constructs an adder working for the given dag.
func New(dag ethereal.Dag, conf config.Config, log zerolog.Logger) Adder {
	ad := &adder{
		dag:         dag,
		conf:        conf,
		ready:       make([]chan *waitingPreunit, dag.NProc()),
		waiting:     make(map[ethereal.Hash]*waitingPreunit),
		waitingByID: make(map[uint64]*waitingPreunit),
		missing:     make(map[uint64]*missingPreunit),
		active:      true,
		log:         log.With().Int(logging.Service, logging.AdderService).Logger(),
	}
	for i := range ad.ready {
		ad.ready[i] = make(chan *waitingPreunit, channelLength)
		ad.wg.Add(1)
		go func(ch chan *waitingPreunit) {
			defer ad.wg.Done()
			for wp := range ch {
				ad.handleReady(wp)
			}
		}(ad.ready[i])
	}
	ad.log.Info().Msg(logging.ServiceStarted)
	return ad
}

// Close stops the adder. Preunits still waiting for parents are dropped.
func (ad *adder) Close() {
	ad.rmx.Lock()
	ad.active = false
	ad.rmx.Unlock()
	for _, c := range ad.ready {
		close(c)
	}
	ad.wg.Wait()
	ad.log.Info().Msg(logging.ServiceStopped)
}

// AddPreunits checks basic correctness of a slice of preunits and adds the correct
// ones to the buffer zone. The returned slice can contain, positionally:
//
//	DataError - if the creator or the epoch is wrong,
//	DuplicateUnit, DuplicatePreunit - if such a unit is already present,
//	UnknownParents - the preunit is waiting; returned for logging purposes only.
func (ad *adder) AddPreunits(source uint16, preunits ...ethereal.Preunit) []error {
	ad.log.Debug().Int(logging.Size, len(preunits)).Uint16(logging.PID, source).Msg(logging.AddPreunits)
	var errors []error
	getErrors := func() []error {
		if errors == nil {
			errors = make([]error, len(preunits))
		}
		return errors
	}
	hashes := make([]*ethereal.Hash, len(preunits))
	for i, pu := range preunits {
		hashes[i] = pu.Hash()
	}
	alreadyInDag := ad.dag.GetUnits(hashes)

	failed := make([]bool, len(preunits))
	for i, pu := range preunits {
		if alreadyInDag[i] != nil {
			getErrors()[i] = ethereal.NewDuplicateUnit(alreadyInDag[i])
			failed[i] = true
			continue
		}
		if err := ad.checkCorrectness(pu); err != nil {
			getErrors()[i] = err
			failed[i] = true
		}
	}

	ad.mx.Lock()
	defer ad.mx.Unlock()
	for i, pu := range preunits {
		if !failed[i] {
			if err := ad.addToWaiting(pu, source); err != nil {
				getErrors()[i] = err
			}
		}
	}
	return errors
}

// addToWaiting adds a preunit to the buffer zone. Must be called under the mutex.
func (ad *adder) addToWaiting(pu ethereal.Preunit, source uint16) error {
	if wp, ok := ad.waiting[*pu.Hash()]; ok {
		return ethereal.NewDuplicatePreunit(wp.pu)
	}
	id := ethereal.UnitID(pu)
	if fork, ok := ad.waitingByID[id]; ok && *fork.pu.Hash() != *pu.Hash() {
		// The fork gets properly marked once both units reach the dag.
		ad.log.Warn().Int(logging.Height, pu.Height()).Uint16(logging.Creator, pu.Creator()).Uint16(logging.PID, source).Msg(logging.ForkDetected)
	}
	wp := &waitingPreunit{pu: pu, id: id, source: source}
	ad.waiting[*pu.Hash()] = wp
	ad.waitingByID[id] = wp
	ad.checkParents(wp)
	ad.checkIfMissing(wp)
	if wp.missingParents > 0 {
		ad.log.Debug().Int(logging.Height, pu.Height()).Uint16(logging.Creator, pu.Creator()).Uint16(logging.PID, source).Int(logging.Size, wp.missingParents).Msg(logging.UnknownParents)
		return ethereal.NewUnknownParents(wp.missingParents)
	}
	ad.sendIfReady(wp)
	return nil
}

// sendIfReady sends a waitingPreunit with no missing or waiting parents to the
// worker of its creator. The active flag prevents a send on a closed channel.
func (ad *adder) sendIfReady(wp *waitingPreunit) {
	if wp.waitingParents > 0 || wp.missingParents > 0 {
		return
	}
	ad.rmx.RLock()
	defer ad.rmx.RUnlock()
	if ad.active {
		ad.ready[wp.pu.Creator()] <- wp
	}
}

// handleReady takes a ready waitingPreunit and adds it to the dag.
func (ad *adder) handleReady(wp *waitingPreunit) {
	defer ad.remove(wp)
	log := ad.log.With().Int(logging.Height, wp.pu.Height()).Uint16(logging.Creator, wp.pu.Creator()).Uint16(logging.PID, wp.source).Logger()
	log.Debug().Msg(logging.PreunitReady)

	parents, err := ad.dag.DecodeParents(wp.pu)
	if err != nil {
		if e, ok := err.(*ethereal.AmbiguousParents); ok {
			parents, err = ad.disambiguateParents(e.Units, wp.pu)
		}
		if err != nil {
			log.Error().Str("where", "DecodeParents").Msg(err.Error())
			wp.failed = true
			return
		}
	}

	freeUnit := ad.dag.BuildUnit(wp.pu, parents)

	if err := ad.dag.Check(freeUnit); err != nil {
		log.Error().Str("where", "Check").Msg(err.Error())
		wp.failed = true
		return
	}

	ad.dag.Insert(freeUnit)

	log.Info().Int(logging.Level, freeUnit.Level()).Msg(logging.UnitAdded)
}

// disambiguateParents resolves parents of a preunit pointing at forked coordinates
// by searching the combinations of possible parents for one matching the control
// hash. The search space is bounded; a preunit referencing more forks than that
// bound permits is rejected.
func (ad *adder) disambiguateParents(possible [][]ethereal.Unit, pu ethereal.Preunit) ([]ethereal.Unit, error) {
	combinations := 1
	for _, units := range possible {
		if len(units) > 1 {
			combinations *= len(units)
			if combinations > maxParentCombinations {
				return nil, ethereal.NewComplianceError("too many forked parents to disambiguate")
			}
		}
	}
	parents := make([]ethereal.Unit, len(possible))
	for c := 0; c < combinations; c++ {
		ix := c
		for i, units := range possible {
			if len(units) == 0 {
				parents[i] = nil
				continue
			}
			parents[i] = units[ix%len(units)]
			ix /= len(units)
		}
		if *ad.conf.DigestAlgorithm.Combine(ethereal.ToHashes(parents)) == pu.View().ControlHash {
			return parents, nil
		}
	}
	ad.log.Info().
		Bytes(logging.ControlHash, pu.View().ControlHash[:]).
		Ints(logging.Height, pu.View().Heights).
		Msg(logging.FailedToDisambiguate)
	return nil, ethereal.NewComplianceError("no parent combination matches the control hash")
}

// checkCorrectness checks very basic correctness of the given preunit: its creator and epoch.
func (ad *adder) checkCorrectness(pu ethereal.Preunit) error {
	if pu.Creator() >= ad.dag.NProc() {
		return ethereal.NewDataError("invalid creator")
	}
	if pu.EpochID() != ad.dag.EpochID() {
		return ethereal.NewDataError(
			fmt.Sprintf("invalid epoch id - expected %d, got %d", ad.dag.EpochID(), pu.EpochID()),
		)
	}
	return nil
}
