package models

// VoteDecision is a single agent's position on a proposal.
type VoteDecision string

const (
	// VoteApprove accepts the proposal.
	VoteApprove VoteDecision = "approve"
	// VoteReject declines the proposal.
	VoteReject VoteDecision = "reject"
	// VoteAbstain opts out; abstentions count toward neither side nor
	// the denominator.
	VoteAbstain VoteDecision = "abstain"
)

// Valid returns true if the decision is a known value.
func (d VoteDecision) Valid() bool {
	switch d {
	case VoteApprove, VoteReject, VoteAbstain:
		return true
	default:
		return false
	}
}

// Vote is one agent's weighted decision in a consensus round.
// Votes are ephemeral; they are constructed per round and not persisted.
type Vote struct {
	// AgentID identifies the voting agent.
	AgentID string `json:"agent_id"`
	// Decision is the agent's position.
	Decision VoteDecision `json:"decision"`
	// Confidence is the agent's confidence in [0, 1]. Only the weighted
	// strategy reads it.
	Confidence float64 `json:"confidence"`
	// Reasoning is an optional free-form justification.
	Reasoning string `json:"reasoning,omitempty"`
}

// ConsensusStrategy selects the rule used to resolve a round of votes.
type ConsensusStrategy string

const (
	// StrategyMajority approves when strictly more than half of the cast
	// votes approve.
	StrategyMajority ConsensusStrategy = "majority"
	// StrategySupermajority approves when at least two thirds of the cast
	// votes approve. The boundary is inclusive.
	StrategySupermajority ConsensusStrategy = "supermajority"
	// StrategyUnanimous approves only when every cast vote approves.
	StrategyUnanimous ConsensusStrategy = "unanimous"
	// StrategyWeighted sums confidence per side; the heavier side wins.
	// An exact tie is inconclusive.
	StrategyWeighted ConsensusStrategy = "weighted"
)

// Valid returns true if the strategy is a known value.
func (s ConsensusStrategy) Valid() bool {
	switch s {
	case StrategyMajority, StrategySupermajority, StrategyUnanimous, StrategyWeighted:
		return true
	default:
		return false
	}
}

// ConsensusDecision is the outcome of a consensus round.
type ConsensusDecision string

const (
	// DecisionApproved means the strategy's threshold was met.
	DecisionApproved ConsensusDecision = "approved"
	// DecisionRejected means the threshold was not met.
	DecisionRejected ConsensusDecision = "rejected"
	// DecisionInconclusive means no threshold could be applied, such as a
	// weighted tie or a round with no cast votes. The caller decides the
	// fallback; the engine never picks arbitrarily.
	DecisionInconclusive ConsensusDecision = "inconclusive"
)

// Tally aggregates the votes of one consensus round.
type Tally struct {
	// Approve is the number of approve votes cast.
	Approve int `json:"approve"`
	// Reject is the number of reject votes cast.
	Reject int `json:"reject"`
	// Abstain is the number of abstentions, excluded from thresholds.
	Abstain int `json:"abstain"`
	// WeightApprove is the summed confidence of approve votes.
	WeightApprove float64 `json:"weight_approve"`
	// WeightReject is the summed confidence of reject votes.
	WeightReject float64 `json:"weight_reject"`
}

// Cast returns the number of non-abstaining votes.
func (t Tally) Cast() int {
	return t.Approve + t.Reject
}

// ConsensusResult is the immutable outcome of a consensus round.
type ConsensusResult struct {
	// Strategy is the rule that was applied.
	Strategy ConsensusStrategy `json:"strategy"`
	// Tally is the vote aggregate.
	Tally Tally `json:"tally"`
	// Decision is the final outcome.
	Decision ConsensusDecision `json:"decision"`
	// Dissenting lists the votes on the losing side.
	Dissenting []Vote `json:"dissenting,omitempty"`
}
