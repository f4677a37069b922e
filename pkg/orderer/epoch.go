package orderer

import (
	"github.com/rs/zerolog"

	"github.com/ChiralBehaviors/apollo/pkg/adder"
	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/creator"
	"github.com/ChiralBehaviors/apollo/pkg/dag"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/linear"
	"github.com/ChiralBehaviors/apollo/pkg/logging"
)

// epoch wires together the components working on a single dag: the adder feeding
// it, the random source bound to it, and the extender picking timing units.
type epoch struct {
	id       ethereal.EpochID
	adder    adder.Adder
	dag      ethereal.Dag
	extender *linear.Extender
	rs       ethereal.RandomSource
	log      zerolog.Logger
}

func newEpoch(id ethereal.EpochID, conf config.Config, rsf ethereal.RandomSourceFactory, cr *creator.Creator, unitBelt chan<- ethereal.Unit, output chan<- []ethereal.Unit, log zerolog.Logger) *epoch {
	log = log.With().Uint32(logging.Epoch, uint32(id)).Logger()
	dg := dag.New(conf, id)
	rs := rsf.NewRandomSource(dg)
	ext := linear.NewExtender(dg, rs, conf, output, log)
	dg.AfterInsert(func(_ ethereal.Unit) { ext.Notify() })
	dg.AfterInsert(func(u ethereal.Unit) {
		// Our own units never go on the belt, the creator already knows them.
		if u.Creator() != conf.Pid {
			unitBelt <- u
		}
	})
	dg.OnFork(func(forker uint16) {
		// The creator takes its own lock, so the freeze must leave the dag mutex first:
		// the creator may be blocked inserting its own unit into this very dag.
		go cr.FreezeParent(forker)
	})
	log.Info().Msg(logging.NewEpoch)
	return &epoch{
		id:       id,
		adder:    adder.New(dg, conf, log),
		dag:      dg,
		extender: ext,
		rs:       rs,
		log:      log,
	}
}

func (ep *epoch) close() {
	ep.adder.Close()
	ep.extender.Close()
	ep.log.Info().Msg(logging.EpochEnd)
}

func (ep *epoch) unitsAbove(heights []int) []ethereal.Unit {
	return ep.dag.UnitsAbove(heights)
}

func (ep *epoch) allUnits() []ethereal.Unit {
	return ep.dag.UnitsAbove(nil)
}
