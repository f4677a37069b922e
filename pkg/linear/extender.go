// Package linear implements the algorithm extending the partial order of the dag
// into a linear order of timing rounds.
package linear

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/logging"
)

// Extender is a component working on a dag that extends the partial order of units
// into a linear order. It reacts to a Notify call, made whenever a new unit is
// inserted into the underlying dag, by trying to pick the next timing unit. When
// successful, it collects all the units belonging to the new timing round, orders
// them, and sends them to the output channel. Rounds appear on the output strictly
// in the order of their timing levels.
type Extender struct {
	ordering     *ordering
	pid          uint16
	output       chan<- []ethereal.Unit
	trigger      chan struct{}
	timingRounds chan *timingRound
	closed       bool
	mx           sync.Mutex
	wg           sync.WaitGroup
	log          zerolog.Logger
}

// NewExtender constructs an extender working on the given dag and sending rounds
// of ordered units to the given output.
func NewExtender(dag ethereal.Dag, rs ethereal.RandomSource, conf config.Config, output chan<- []ethereal.Unit, log zerolog.Logger) *Extender {
	logger := log.With().Int(logging.Service, logging.ExtenderService).Logger()
	ext := &Extender{
		ordering:     newOrdering(dag, rs, conf, logger),
		pid:          conf.Pid,
		output:       output,
		trigger:      make(chan struct{}, 1),
		timingRounds: make(chan *timingRound, 10),
		log:          logger,
	}

	ext.wg.Add(2)
	go ext.timingUnitDecider()
	go ext.roundSorter()

	return ext
}

// Close stops the extender after all the pending work is drained.
func (ext *Extender) Close() {
	ext.mx.Lock()
	if !ext.closed {
		ext.closed = true
		close(ext.trigger)
	}
	ext.mx.Unlock()
	ext.wg.Wait()
}

// Notify the extender to attempt choosing the next timing units.
func (ext *Extender) Notify() {
	ext.mx.Lock()
	defer ext.mx.Unlock()
	if ext.closed {
		return
	}
	select {
	case ext.trigger <- struct{}{}:
	default:
	}
}

// timingUnitDecider tries to pick the next timing unit after receiving a
// notification on the trigger channel. Every picked unit is sent to the
// timingRounds channel.
func (ext *Extender) timingUnitDecider() {
	defer ext.wg.Done()
	for range ext.trigger {
		round := ext.ordering.NextRound()
		for round != nil {
			ext.timingRounds <- round
			round = ext.ordering.NextRound()
		}
	}
	close(ext.timingRounds)
}

// roundSorter takes timing rounds from the timingRounds channel, establishes the
// linear order on the units belonging to them, and sends the ordered slices to
// the output.
func (ext *Extender) roundSorter() {
	defer ext.wg.Done()
	for round := range ext.timingRounds {
		units := round.OrderedUnits()
		ext.output <- units
		for _, u := range units {
			ext.log.Debug().
				Uint16(logging.Creator, u.Creator()).
				Int(logging.Height, u.Height()).
				Uint32(logging.Epoch, uint32(u.EpochID())).
				Msg(logging.UnitOrdered)
			if u.Creator() == ext.pid {
				ext.log.Info().Int(logging.Height, u.Height()).Msg(logging.OwnUnitOrdered)
			}
		}
		ext.log.Info().Int(logging.Size, len(units)).Msg(logging.LinearOrderExtended)
	}
}
