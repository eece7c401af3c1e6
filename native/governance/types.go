package governance

import "math/big"

// Index identifies a proposal by its dense insertion order in the Store.
type Index = uint64

// Proposal is one governance action. Its id is not a field: it equals the
// proposal's position in the Store, matching "Proposal ID is equal to its
// index" in original_source/rs/nx-gov-main/src/proposal.rs.
type Proposal struct {
	// ---- provided at submit time, immutable ----
	MetadataID  Index    `json:"metadataId"`
	PayloadID   Index    `json:"payloadId"`
	AutoExecute bool     `json:"autoExecute"`
	Activates   Schedule `json:"activates"`
	Expires     Schedule `json:"expires"`

	// ---- generated at submit time, immutable ----
	CreatedAt int64     `json:"createdAt"` // unix nanoseconds
	Proposer  Principal `json:"proposer"`

	// ---- set once by the Validator ----
	Validated        *bool                     `json:"validated,omitempty"`
	VotingEndTime    *int64                    `json:"votingEndTime,omitempty"` // unix nanoseconds
	PassingThreshold *ProposalPassingThreshold `json:"passingThreshold,omitempty"`

	// ---- owned by the state machine ----
	State ProposalState `json:"state"`

	// ---- incremental, owned by the Vote Manager ----
	VotesYes         *big.Int `json:"votesYes"`
	VotesNo          *big.Int `json:"votesNo"`
	VotesAbstain     *big.Int `json:"votesAbstain"`
	TotalVotingPower *big.Int `json:"totalVotingPower"`
}

// NewProposal constructs a freshly-submitted Proposal in the Submitted
// state. Mirrors Proposal::from_submit in proposal.rs.
func NewProposal(metadataID, payloadID Index, autoExecute bool, activates, expires Schedule, proposer Principal, nowUnixNano int64) Proposal {
	return Proposal{
		MetadataID:       metadataID,
		PayloadID:        payloadID,
		AutoExecute:      autoExecute,
		Activates:        activates,
		Expires:          expires,
		CreatedAt:        nowUnixNano,
		Proposer:         proposer,
		State:            stateSubmitted(),
		VotesYes:         big.NewInt(0),
		VotesNo:          big.NewInt(0),
		VotesAbstain:     big.NewInt(0),
		TotalVotingPower: big.NewInt(0),
	}
}

// IsVoteable reports state == Open and the voting window has not elapsed.
func (p *Proposal) IsVoteable(nowUnixNano int64) bool {
	return p.State.Kind == StateOpen && p.VotingEndTime != nil && *p.VotingEndTime > nowUnixNano
}

// IsExpired reports that the voting window has elapsed. A proposal with no
// voting_end_time set is never considered expired.
func (p *Proposal) IsExpired(nowUnixNano int64) bool {
	return p.VotingEndTime != nil && nowUnixNano > *p.VotingEndTime
}

// IsExecutable reports state == Accepted and both schedules are absolute
// and currently in force (activates <= now < expires).
func (p *Proposal) IsExecutable(nowUnixNano int64) bool {
	return p.State.Kind == StateAccepted && p.schedulesInForce(nowUnixNano)
}

// IsForceExecutable reports state == Open and both schedules are absolute
// and currently in force. Dependency gating still applies in
// Coordinator.ForceExecute; this check alone does not bypass it.
func (p *Proposal) IsForceExecutable(nowUnixNano int64) bool {
	return p.State.Kind == StateOpen && p.schedulesInForce(nowUnixNano)
}

func (p *Proposal) schedulesInForce(nowUnixNano int64) bool {
	activatesAt, ok := p.Activates.ToTimestamp()
	if !ok {
		return false
	}
	expiresAt, ok := p.Expires.ToTimestamp()
	if !ok {
		return false
	}
	return activatesAt <= nowUnixNano && nowUnixNano < expiresAt
}

// FinalizeActivation freezes Activates to absolute time if still relative.
func (p *Proposal) FinalizeActivation(nowUnixNano int64) {
	p.Activates = p.Activates.ConvertToAbsolute(nowUnixNano)
}

// FinalizeExpiration freezes Expires to absolute time if still relative.
func (p *Proposal) FinalizeExpiration(nowUnixNano int64) {
	p.Expires = p.Expires.ConvertToAbsolute(nowUnixNano)
}

// CurrentParticipationRate is (yes+no+abstain)/total. Votes of all three
// kinds count towards the quorum.
func (p *Proposal) CurrentParticipationRate() Percentage {
	total := new(big.Int).Add(p.VotesYes, p.VotesNo)
	total.Add(total, p.VotesAbstain)
	return rateToPercentage(total, p.TotalVotingPower)
}

// CurrentYesRate is yes/(yes+no). Only yes and no votes count towards the
// pass rate; abstentions are excluded from the denominator.
func (p *Proposal) CurrentYesRate() Percentage {
	denom := new(big.Int).Add(p.VotesYes, p.VotesNo)
	return rateToPercentage(p.VotesYes, denom)
}

func rateToPercentage(numerator, denominator *big.Int) Percentage {
	if denominator.Sign() <= 0 {
		return 0
	}
	num := new(big.Float).SetInt(numerator)
	den := new(big.Float).SetInt(denominator)
	rate, _ := new(big.Float).Quo(num, den).Float64()
	return PercentFromRate(rate)
}

// AbsoluteMajorityReached reports votes_yes*2 > total_voting_power.
func (p *Proposal) AbsoluteMajorityReached() bool {
	twiceYes := new(big.Int).Lsh(p.VotesYes, 1)
	return twiceYes.Cmp(p.TotalVotingPower) > 0
}

// ProposalMetadata holds the human-facing description of a proposal.
type ProposalMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Memo        []byte `json:"memo,omitempty"`
}

// IsValid reports that name and description are both non-empty.
func (m ProposalMetadata) IsValid() bool {
	return m.Name != "" && m.Description != ""
}

// PreValidateTarget is invoked before a message's main call; must return a
// boolean. Mirrors PreValidateTarget in original_source/.../execution.rs.
type PreValidateTarget struct {
	Target  Principal `json:"target"`
	Method  string    `json:"method"`
	Payload []byte    `json:"payload,omitempty"`
	Payment *big.Int  `json:"payment,omitempty"`
}

// PostValidateTarget is invoked after a message's main call; must return a
// boolean. Its payload is always the auto-constructed PostValidatePayload.
type PostValidateTarget struct {
	Target  Principal `json:"target"`
	Method  string    `json:"method"`
	Payment *big.Int  `json:"payment,omitempty"`
}

// PostValidatePayload is constructed by the Dispatcher and sent to a
// PostValidateTarget: the original call plus its response.
type PostValidatePayload struct {
	Target   Principal `json:"target"`
	Method   string    `json:"method"`
	Message  []byte    `json:"message,omitempty"`
	Response []byte    `json:"response,omitempty"`
}

// CanisterMessage is one outbound call within a proposal's payload, with
// optional pre/post validation hooks.
type CanisterMessage struct {
	Target       Principal            `json:"target"`
	Method       string               `json:"method"`
	Message      []byte               `json:"message,omitempty"`
	Payment      *big.Int             `json:"payment,omitempty"`
	PreValidate  *PreValidateTarget   `json:"preValidate,omitempty"`
	PostValidate *PostValidateTarget  `json:"postValidate,omitempty"`
}

// ProposalPayload is the ordered list of messages a proposal will execute
// if accepted, plus its declared predecessor proposals.
type ProposalPayload struct {
	DependsOn []Index           `json:"dependsOn,omitempty"`
	Messages  []CanisterMessage `json:"messages,omitempty"`
}

// IsValid reports that every message declares a non-empty method name.
func (p ProposalPayload) IsValid() bool {
	for _, m := range p.Messages {
		if m.Method == "" {
			return false
		}
	}
	return true
}

// MaxDependencyIndex returns the largest declared predecessor id and true,
// or (0, false) when depends_on is empty.
func (p ProposalPayload) MaxDependencyIndex() (Index, bool) {
	if len(p.DependsOn) == 0 {
		return 0, false
	}
	max := p.DependsOn[0]
	for _, idx := range p.DependsOn[1:] {
		if idx > max {
			max = idx
		}
	}
	return max, true
}

// ProposalRevoke records a Revoker's cancellation of an Open proposal.
type ProposalRevoke struct {
	ProposalID Index  `json:"proposalId"`
	Reason     string `json:"reason"`
	RevokedAt  int64  `json:"revokedAt"` // unix nanoseconds
}

// ExecResult is the outcome of fully attempting one CanisterMessage: either
// the raw response bytes, or a transport-level failure (code, message).
// Mirrors ExecResult in original_source/.../execution.rs, whose inner
// Result<RawBytes, (i32, String)> has no direct Go equivalent.
type ExecResult struct {
	OK       bool   `json:"ok"`
	Response []byte `json:"response,omitempty"`
	Code     int32  `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// SuccessResult builds an ExecResult carrying a successful response.
func SuccessResult(response []byte) ExecResult {
	return ExecResult{OK: true, Response: response}
}

// FailureResult builds an ExecResult carrying a transport-level failure.
func FailureResult(code int32, message string) ExecResult {
	return ExecResult{OK: false, Code: code, Message: message}
}

// ProposalExec is the ordered list of ExecResult entries accumulated while
// the Dispatcher runs a proposal's payload, one entry per fully-attempted
// message.
type ProposalExec struct {
	Results []ExecResult `json:"results,omitempty"`
}

// Config holds the coordinator's tunables: voting-window and threshold
// minimums, and optional hook targets. Mirrors Config in
// original_source/rs/nx-gov-main/src/types.rs.
type Config struct {
	Name                string                   `json:"name"`
	Description         string                   `json:"description"`
	Initialized         bool                     `json:"initialized"`
	MinVotingPeriod     int64                    `json:"minVotingPeriod"` // nanoseconds
	MinPassingThreshold ProposalPassingThreshold `json:"minPassingThreshold"`
	VotingMayEndEarly   bool                     `json:"votingMayEndEarly"`
	ValidatorHook       *Principal               `json:"validatorHook,omitempty"`
	VoteManagerHook     *Principal               `json:"voteManagerHook,omitempty"`
}

// Stats is the recovered introspection query (SPEC_FULL.md §9): a trimmed,
// wired version of the Stats struct left dead in
// original_source/rs/nx-gov-main/src/types.rs.
type Stats struct {
	Config            Config `json:"config"`
	Now               int64  `json:"now"`
	OpenProposals     uint64 `json:"openProposals"`
	TerminalProposals uint64 `json:"terminalProposals"`
	PendingHookTasks  uint64 `json:"pendingHookTasks"`
}
