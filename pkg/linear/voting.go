package linear

import (
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

type vote int

const (
	popular vote = iota
	unpopular
	undecided
)

// firstVotingRound is the level offset at which units start voting on a candidate.
const firstVotingRound = 1

type votingResult struct {
	popular   uint16
	unpopular uint16
}

// unanimousVoter implements the recursive voting procedure of the protocol: the
// initial vote of a unit on a candidate is whether it is above it, and later votes
// follow the unanimous opinion of the prime ancestors one level below, falling
// back to the common vote of the round.
type unanimousVoter struct {
	dag           ethereal.Dag
	rs            ethereal.RandomSource
	zeroVoteRound int
	popularityCap int
	votingMemo    map[[2]ethereal.Hash]vote
}

func newUnanimousVoter(dag ethereal.Dag, rs ethereal.RandomSource, zeroVoteRound, popularityCap int) *unanimousVoter {
	return &unanimousVoter{
		dag:           dag,
		rs:            rs,
		zeroVoteRound: zeroVoteRound,
		popularityCap: popularityCap,
		votingMemo:    make(map[[2]ethereal.Hash]vote),
	}
}

func (uv *unanimousVoter) vote(uc, u ethereal.Unit) (result vote) {
	if uc.Level() >= u.Level() {
		return undecided
	}
	r := u.Level() - uc.Level()
	if r < firstVotingRound {
		return undecided
	}
	if cachedResult, ok := uv.votingMemo[[2]ethereal.Hash{*uc.Hash(), *u.Hash()}]; ok {
		return cachedResult
	}

	defer func() {
		uv.votingMemo[[2]ethereal.Hash{*uc.Hash(), *u.Hash()}] = result
	}()

	if r == firstVotingRound {
		return uv.initialVote(uc, u)
	}

	commonVote := uv.lazyCommonVote(uc, u.Level()-1)
	var lastVote *vote
	voteUsingPrimeAncestors(uc, u, uv.dag, func(uc, uPrA ethereal.Unit) (vote, bool) {
		result := uv.vote(uc, uPrA)
		if result == undecided {
			result = commonVote()
		}
		if lastVote != nil {
			if *lastVote != result {
				*lastVote = undecided
				return result, true
			}
		} else if result != undecided {
			lastVote = &result
		}
		return result, false
	})
	if lastVote == nil {
		return undecided
	}
	return *lastVote
}

func (uv *unanimousVoter) lazyCommonVote(uc ethereal.Unit, level int) func() vote {
	initialized := false
	var commonVoteValue vote
	return func() vote {
		if !initialized {
			commonVoteValue = uv.commonVote(uc, level)
			initialized = true
		}
		return commonVoteValue
	}
}

func (uv *unanimousVoter) initialVote(uc, u ethereal.Unit) vote {
	if ethereal.Above(u, uc) {
		return popular
	}
	return unpopular
}

// commonVote returns the free vote of the given round: within the deterministic
// prefix it is popular except for the single zero vote round, beyond the prefix it
// comes from a coin toss on the random source.
func (uv *unanimousVoter) commonVote(uc ethereal.Unit, level int) vote {
	if level <= uc.Level() {
		return undecided
	}
	round := level - uc.Level()
	if round <= firstVotingRound {
		// Default vote is asked on too low a level.
		return undecided
	}
	if round <= uv.popularityCap {
		if round == uv.zeroVoteRound {
			return unpopular
		}
		return popular
	}
	if coinToss(uc, level+1, uv.rs) {
		return popular
	}
	return unpopular
}

// coinToss returns a pseudorandom bit for the given level, derived from the random
// source. uc is used only to pick the process whose bytes are consulted, so that the
// result cannot be biased by a single fixed process.
func coinToss(uc ethereal.Unit, level int, rs ethereal.RandomSource) bool {
	randomBytes := rs.RandomBytes(uc.Creator(), level)
	if randomBytes == nil {
		return false
	}
	return randomBytes[0]&1 == 0
}

// superMajority returns the vote made by a quorum, or undecided if there is no quorum.
func superMajority(dag ethereal.Dag, votes votingResult) vote {
	if dag.IsQuorum(votes.popular) {
		return popular
	}
	if dag.IsQuorum(votes.unpopular) {
		return unpopular
	}
	return undecided
}

// voteUsingPrimeAncestors collects the votes of the prime units one level below u
// that are in u's past, calling voter for each of them.
func voteUsingPrimeAncestors(uc, u ethereal.Unit, dag ethereal.Dag, voter func(uc, u ethereal.Unit) (vote vote, finish bool)) (votesLevelBelow votingResult) {
	dag.PrimeUnits(u.Level() - 1).Iterate(func(primes []ethereal.Unit) bool {
		votesOne := false
		votesZero := false
		finish := false
		for _, v := range primes {
			if !ethereal.Above(u, v) {
				continue
			}
			vote := undecided
			vote, finish = voter(uc, v)
			switch vote {
			case popular:
				votesOne = true
			case unpopular:
				votesZero = true
			}
			if finish || (votesOne && votesZero) {
				break
			}
		}
		if votesOne {
			votesLevelBelow.popular++
		}
		if votesZero {
			votesLevelBelow.unpopular++
		}
		return !finish
	})
	return votesLevelBelow
}
