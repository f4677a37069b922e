package linear

import (
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

// superMajorityDecider makes the popularity decision for a single timing unit
// candidate: the candidate is popular once a quorum of prime units on some level
// votes for it and that vote agrees with the common vote of the round.
type superMajorityDecider struct {
	*unanimousVoter
	voteDelay int
}

func newSuperMajorityDecider(dag ethereal.Dag, rs ethereal.RandomSource, voteDelay, zeroVoteRound, popularityCap int) *superMajorityDecider {
	return &superMajorityDecider{
		unanimousVoter: newUnanimousVoter(dag, rs, zeroVoteRound, popularityCap),
		voteDelay:      voteDelay,
	}
}

// decideUnitIsPopular decides whether uc can be used as a timing unit.
// Returns the decision and the level on which it was made, or -1 when undecided.
func (smd *superMajorityDecider) decideUnitIsPopular(uc ethereal.Unit, dagMaxLevel int) (decision vote, decisionLevel int) {
	maxDecisionLevel := smd.maximalLevelAtWhichWeCanDecide(uc, dagMaxLevel)
	for level := uc.Level() + smd.voteDelay; level <= maxDecisionLevel; level++ {
		decision := undecided
		smd.dag.PrimeUnits(level).Iterate(func(primes []ethereal.Unit) bool {
			for _, v := range primes {
				if curDecision := smd.decide(uc, v); curDecision != undecided {
					decision = curDecision
					return false
				}
			}
			return true
		})
		if decision != undecided {
			return decision, level
		}
	}
	return undecided, -1
}

func (smd *superMajorityDecider) decide(uc, u ethereal.Unit) vote {
	if uc.Level() >= u.Level() {
		return undecided
	}
	if u.Level()-uc.Level() < smd.voteDelay {
		return undecided
	}
	result := smd.decideUsingSuperMajorityOfVotes(uc, u)
	if result != undecided && result == smd.commonVote(uc, u.Level()) {
		return result
	}
	return undecided
}

func (smd *superMajorityDecider) decideUsingSuperMajorityOfVotes(uc, u ethereal.Unit) vote {
	commonVote := smd.lazyCommonVote(uc, u.Level()-1)
	var votingResult votingResult
	result := voteUsingPrimeAncestors(uc, u, smd.dag, func(uc, uPrA ethereal.Unit) (vote vote, finish bool) {
		result := smd.vote(uc, uPrA)
		if result == undecided {
			result = commonVote()
		}
		updated := false
		switch result {
		case popular:
			votingResult.popular++
			updated = true
		case unpopular:
			votingResult.unpopular++
			updated = true
		}
		if updated {
			if superMajority(smd.dag, votingResult) != undecided {
				return result, true
			}
		} else {
			// Fast fail: even if all the remaining votes came in, no quorum is possible.
			test := votingResult
			remaining := smd.dag.NProc() - uPrA.Creator() - 1
			test.popular += remaining
			test.unpopular += remaining
			if superMajority(smd.dag, test) == undecided {
				return result, true
			}
		}
		return result, false
	})
	return superMajority(smd.dag, result)
}

// maximalLevelAtWhichWeCanDecide bounds the decision levels: beyond the
// deterministic common vote prefix a decision made too close to the top of the dag
// could rely on random bytes that a fork might still change.
func (smd *superMajorityDecider) maximalLevelAtWhichWeCanDecide(uc ethereal.Unit, dagMaxLevel int) int {
	if dagMaxLevel-uc.Level() <= smd.popularityCap {
		return dagMaxLevel
	}
	return dagMaxLevel - 2
}
