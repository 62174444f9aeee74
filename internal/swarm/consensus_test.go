package swarm

import (
	"testing"

	"github.com/nexusswarm/nexus/pkg/models"
)

func vote(agent string, d models.VoteDecision, confidence float64) models.Vote {
	return models.Vote{AgentID: agent, Decision: d, Confidence: confidence}
}

func TestConsensusTwoThirdsAcrossStrategies(t *testing.T) {
	votes := []models.Vote{
		vote("a1", models.VoteApprove, 0.8),
		vote("a2", models.VoteApprove, 0.7),
		vote("a3", models.VoteReject, 0.6),
	}
	engine := NewConsensusEngine()

	tests := []struct {
		strategy models.ConsensusStrategy
		want     models.ConsensusDecision
	}{
		{models.StrategyMajority, models.DecisionApproved},      // 2/3 > 50%
		{models.StrategySupermajority, models.DecisionApproved}, // 2/3 >= 66.7%, boundary inclusive
		{models.StrategyUnanimous, models.DecisionRejected},     // any dissent rejects
	}
	for _, tt := range tests {
		got := engine.Evaluate(votes, tt.strategy)
		if got.Decision != tt.want {
			t.Errorf("%s: decision = %s, want %s", tt.strategy, got.Decision, tt.want)
		}
	}
}

func TestConsensusMajorityExactHalfRejected(t *testing.T) {
	votes := []models.Vote{
		vote("a1", models.VoteApprove, 0.5),
		vote("a2", models.VoteReject, 0.5),
	}
	got := NewConsensusEngine().Evaluate(votes, models.StrategyMajority)
	if got.Decision != models.DecisionRejected {
		t.Errorf("50%% approval must not pass a strict majority, got %s", got.Decision)
	}
}

func TestConsensusWeightedHigherConfidenceWins(t *testing.T) {
	votes := []models.Vote{
		vote("a1", models.VoteApprove, 0.9),
		vote("a2", models.VoteReject, 0.95),
	}
	got := NewConsensusEngine().Evaluate(votes, models.StrategyWeighted)
	if got.Decision != models.DecisionRejected {
		t.Errorf("weighted: decision = %s, want rejected (0.95 > 0.9)", got.Decision)
	}
	if len(got.Dissenting) != 1 || got.Dissenting[0].AgentID != "a1" {
		t.Errorf("dissenting = %v, want the approve vote", got.Dissenting)
	}
}

func TestConsensusWeightedTieInconclusive(t *testing.T) {
	votes := []models.Vote{
		vote("a1", models.VoteApprove, 0.5),
		vote("a2", models.VoteApprove, 0.25),
		vote("a3", models.VoteReject, 0.75),
	}
	got := NewConsensusEngine().Evaluate(votes, models.StrategyWeighted)
	if got.Decision != models.DecisionInconclusive {
		t.Errorf("equal summed confidence must be inconclusive, got %s", got.Decision)
	}
	if got.Dissenting != nil {
		t.Errorf("inconclusive round has no losing side, got %v", got.Dissenting)
	}
}

func TestConsensusAbstentionsExcluded(t *testing.T) {
	votes := []models.Vote{
		vote("a1", models.VoteApprove, 0.9),
		vote("a2", models.VoteAbstain, 1.0),
		vote("a3", models.VoteAbstain, 1.0),
	}
	got := NewConsensusEngine().Evaluate(votes, models.StrategyMajority)
	if got.Decision != models.DecisionApproved {
		t.Errorf("abstentions must not dilute the denominator, got %s", got.Decision)
	}
	if got.Tally.Cast() != 1 || got.Tally.Abstain != 2 {
		t.Errorf("tally = %+v, want 1 cast and 2 abstain", got.Tally)
	}
	if got.Tally.WeightApprove != 0.9 {
		t.Errorf("abstain confidence leaked into weights: %v", got.Tally.WeightApprove)
	}
}

func TestConsensusOnlyAbstentionsInconclusive(t *testing.T) {
	votes := []models.Vote{
		vote("a1", models.VoteAbstain, 0.5),
		vote("a2", models.VoteAbstain, 0.5),
	}
	got := NewConsensusEngine().Evaluate(votes, models.StrategyUnanimous)
	if got.Decision != models.DecisionInconclusive {
		t.Errorf("all-abstain round must be inconclusive, got %s", got.Decision)
	}
}

func TestConsensusNoVotesInconclusive(t *testing.T) {
	got := NewConsensusEngine().Evaluate(nil, models.StrategyMajority)
	if got.Decision != models.DecisionInconclusive {
		t.Errorf("empty round must be inconclusive, got %s", got.Decision)
	}
}

func TestConsensusUnanimousAllApprove(t *testing.T) {
	votes := []models.Vote{
		vote("a1", models.VoteApprove, 0.6),
		vote("a2", models.VoteApprove, 0.7),
	}
	got := NewConsensusEngine().Evaluate(votes, models.StrategyUnanimous)
	if got.Decision != models.DecisionApproved {
		t.Errorf("unanimous approval should pass, got %s", got.Decision)
	}
	if got.Dissenting != nil {
		t.Errorf("no dissenters expected, got %v", got.Dissenting)
	}
}

func TestConsensusDoesNotMutateInput(t *testing.T) {
	votes := []models.Vote{
		vote("a1", models.VoteApprove, 2.5), // out of range, clamped in tally only
	}
	NewConsensusEngine().Evaluate(votes, models.StrategyWeighted)
	if votes[0].Confidence != 2.5 {
		t.Error("engine mutated its input votes")
	}
}
