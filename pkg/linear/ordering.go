package linear

import (
	"github.com/rs/zerolog"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/logging"
)

// ordering picks timing units, one per level, starting at OrderStartLevel.
type ordering struct {
	dag          ethereal.Dag
	rs           ethereal.RandomSource
	conf         config.Config
	deciders     map[ethereal.Hash]*superMajorityDecider
	lastTUs      []ethereal.Unit
	currentLevel int
	log          zerolog.Logger
}

func newOrdering(dag ethereal.Dag, rs ethereal.RandomSource, conf config.Config, log zerolog.Logger) *ordering {
	return &ordering{
		dag:          dag,
		rs:           rs,
		conf:         conf,
		deciders:     make(map[ethereal.Hash]*superMajorityDecider),
		lastTUs:      make([]ethereal.Unit, conf.ZeroVoteRound),
		currentLevel: conf.OrderStartLevel,
		log:          log,
	}
}

// NextRound tries to pick the timing unit of the current level. Returns the
// corresponding timing round when successful, nil when the dag does not yet
// contain enough information to decide.
func (o *ordering) NextRound() *timingRound {
	dagMaxLevel := o.dag.MaxLevel()
	if dagMaxLevel < o.currentLevel+o.conf.VoteDelay {
		return nil
	}

	level := o.currentLevel
	var timingUnit ethereal.Unit
	randomBytesPresent := o.crpIterate(level, func(uc ethereal.Unit) bool {
		decision, decidedOn := o.getDecider(uc).decideUnitIsPopular(uc, dagMaxLevel)
		if decision == popular {
			o.log.Info().
				Int(logging.Level, level).
				Int(logging.Round, decidedOn).
				Int(logging.Size, dagMaxLevel).
				Msg(logging.NewTimingUnit)
			timingUnit = uc
			return false
		}
		if decision == undecided {
			// The candidates that follow in the permutation cannot be decided
			// before this one: the common vote would have to be revealed first.
			return false
		}
		return true
	})
	if !randomBytesPresent {
		o.log.Debug().Int(logging.Level, level).Msg(logging.MissingRandomBytes)
	}
	if timingUnit == nil {
		return nil
	}
	round := newTimingRound(timingUnit, append([]ethereal.Unit(nil), o.lastTUs...))
	o.lastTUs = append(o.lastTUs[1:], timingUnit)
	o.currentLevel++
	o.deciders = make(map[ethereal.Hash]*superMajorityDecider)
	return round
}

func (o *ordering) getDecider(uc ethereal.Unit) *superMajorityDecider {
	decider, ok := o.deciders[*uc.Hash()]
	if !ok {
		decider = newSuperMajorityDecider(o.dag, o.rs, o.conf.VoteDelay, o.conf.ZeroVoteRound, o.conf.PopularityCap)
		o.deciders[*uc.Hash()] = decider
	}
	return decider
}
