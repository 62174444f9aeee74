package swarm

import (
	"github.com/nexusswarm/nexus/pkg/models"
)

// ConsensusEngine resolves a round of votes under a strategy.
//
// The engine is stateless and pure: it never mutates its inputs, never
// retries, and returns a ConsensusResult synchronously. Abstentions are
// excluded from both the denominator and the weighted sums.
type ConsensusEngine struct{}

// NewConsensusEngine creates a consensus engine.
func NewConsensusEngine() *ConsensusEngine {
	return &ConsensusEngine{}
}

// Evaluate applies the strategy to the votes and produces the round result.
// A round with no cast votes (all abstained, or empty) is inconclusive, as
// is an exact weighted tie.
func (e *ConsensusEngine) Evaluate(votes []models.Vote, strategy models.ConsensusStrategy) models.ConsensusResult {
	tally := tallyVotes(votes)

	result := models.ConsensusResult{
		Strategy: strategy,
		Tally:    tally,
	}

	if tally.Cast() == 0 {
		result.Decision = models.DecisionInconclusive
		return result
	}

	switch strategy {
	case models.StrategyMajority:
		// Strictly greater than 50% of cast votes.
		if tally.Approve*2 > tally.Cast() {
			result.Decision = models.DecisionApproved
		} else {
			result.Decision = models.DecisionRejected
		}
	case models.StrategySupermajority:
		// At least two thirds, boundary inclusive. Integer arithmetic
		// keeps the 2/3 comparison exact.
		if tally.Approve*3 >= tally.Cast()*2 {
			result.Decision = models.DecisionApproved
		} else {
			result.Decision = models.DecisionRejected
		}
	case models.StrategyUnanimous:
		if tally.Reject == 0 && tally.Approve > 0 {
			result.Decision = models.DecisionApproved
		} else {
			result.Decision = models.DecisionRejected
		}
	case models.StrategyWeighted:
		switch {
		case tally.WeightApprove > tally.WeightReject:
			result.Decision = models.DecisionApproved
		case tally.WeightReject > tally.WeightApprove:
			result.Decision = models.DecisionRejected
		default:
			// An exact tie is surfaced, never broken arbitrarily.
			result.Decision = models.DecisionInconclusive
		}
	default:
		result.Decision = models.DecisionInconclusive
	}

	result.Dissenting = dissenters(votes, result.Decision)
	return result
}

// tallyVotes aggregates the round. Votes with an unknown decision are
// treated like abstentions. Confidence is clamped to [0, 1].
func tallyVotes(votes []models.Vote) models.Tally {
	var t models.Tally
	for _, v := range votes {
		switch v.Decision {
		case models.VoteApprove:
			t.Approve++
			t.WeightApprove += clampConfidence(v.Confidence)
		case models.VoteReject:
			t.Reject++
			t.WeightReject += clampConfidence(v.Confidence)
		default:
			t.Abstain++
		}
	}
	return t
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// dissenters returns the votes on the losing side of a resolved round.
func dissenters(votes []models.Vote, decision models.ConsensusDecision) []models.Vote {
	var losing models.VoteDecision
	switch decision {
	case models.DecisionApproved:
		losing = models.VoteReject
	case models.DecisionRejected:
		losing = models.VoteApprove
	default:
		return nil
	}

	var out []models.Vote
	for _, v := range votes {
		if v.Decision == losing {
			out = append(out, v)
		}
	}
	return out
}
