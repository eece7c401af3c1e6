// Package rpc exposes the governance Coordinator over a JSON-RPC 2.0
// surface, following the teacher's RPCRequest/RPCResponse/RPCError
// envelope and gov_-prefixed method naming convention (rpc/http.go's
// moduleAndMethod split).
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"nxgov/native/governance"
)

// errMethodNotFound marks an unrecognized gov_* method name, distinct from
// the domain's own sentinel errors so classifyError can report it as
// codeMethodNotFound rather than a generic server error.
var errMethodNotFound = errors.New("rpc: method not found")

const jsonRPCVersion = "2.0"

const (
	codeParseError       = -32700
	codeInvalidRequest   = -32600
	codeMethodNotFound   = -32601
	codeInvalidParams    = -32602
	codeUnauthorized     = -32001
	codeServerError      = -32000
	codeIncorrectState   = -32010
	codeExpired          = -32011
	codeDependencyFailed = -32012
	codeRateLimited      = -32020
)

// RPCRequest mirrors the teacher's JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

// RPCResponse mirrors the teacher's JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError mirrors the teacher's error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// GovernanceServer handles the gov_* JSON-RPC method surface described in
// SPEC_FULL.md §10, recovering RoleGate's Unauthorized panic at this
// process boundary (spec.md §7, §9: "unauthorized calls must not produce a
// response the caller can observe as success-with-error") and reporting it
// distinctly from a normal error result.
type GovernanceServer struct {
	coordinator *governance.Coordinator
	store       governance.Store
}

// NewGovernanceServer constructs a handler over coordinator and store.
func NewGovernanceServer(coordinator *governance.Coordinator, store governance.Store) *GovernanceServer {
	return &GovernanceServer{coordinator: coordinator, store: store}
}

// ServeHTTP implements http.Handler for a single JSON-RPC request per POST
// body, mirroring the teacher's rpc/http.go single-request dispatch.
func (s *GovernanceServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, r, nil, codeInvalidRequest, "POST required")
		return
	}
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, nil, codeParseError, "parse error: "+err.Error())
		return
	}
	s.dispatch(w, r, req)
}

func (s *GovernanceServer) dispatch(w http.ResponseWriter, r *http.Request, req RPCRequest) {
	defer func() {
		if rec := recover(); rec != nil {
			if unauth, ok := rec.(governance.Unauthorized); ok {
				writeError(w, r, req.ID, codeUnauthorized, unauth.Error())
				return
			}
			writeError(w, r, req.ID, codeServerError, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	result, err := s.call(r.Context(), req)
	if err != nil {
		writeError(w, r, req.ID, classifyError(err), err.Error())
		return
	}
	writeResult(w, req.ID, result)
}

func classifyError(err error) int {
	switch {
	case errors.Is(err, errMethodNotFound):
		return codeMethodNotFound
	case errors.Is(err, governance.ErrInput):
		return codeInvalidParams
	case errors.Is(err, governance.ErrIncorrectProposalState):
		return codeIncorrectState
	case errors.Is(err, governance.ErrExpired):
		return codeExpired
	case errors.Is(err, governance.ErrDependentProposalNotSucceeded), errors.Is(err, governance.ErrDependentProposalNotReady):
		return codeDependencyFailed
	case errors.Is(err, governance.ErrNotFound):
		return codeInvalidParams
	default:
		return codeServerError
	}
}

func (s *GovernanceServer) call(ctx context.Context, req RPCRequest) (interface{}, error) {
	switch req.Method {
	// queries
	case "gov_getProposal":
		return s.getProposal(req.Params)
	case "gov_getProposalMetadata":
		return s.getProposalMetadata(req.Params)
	case "gov_getProposalPayload":
		return s.getProposalPayload(req.Params)
	case "gov_getProposalExec":
		return s.getProposalExec(req.Params)
	case "gov_getProposalRevoke":
		return s.getProposalRevoke(req.Params)
	case "gov_getNextProposalId":
		return s.store.NextProposalID()
	case "gov_getProposalStates":
		return s.getProposalStates(req.Params)
	case "gov_getOpenProposalIdsWithExpiration":
		return s.getOpenProposalIdsWithExpiration()
	case "gov_getSubmittedProposalIds":
		return s.getSubmittedProposalIds()
	case "gov_stats":
		return s.coordinator.Stats()

	// mutations
	case "gov_submitProposal":
		return s.submitProposal(req.Params)
	case "gov_validateProposal":
		return nil, s.validateProposal(req.Params)
	case "gov_updateVoteResult":
		return nil, s.updateVoteResult(req.Params)
	case "gov_updateTotalVotingPower":
		return nil, s.updateTotalVotingPower(req.Params)
	case "gov_updateVoteResultAndTotalVotingPower":
		return nil, s.updateVoteResultAndTotalVotingPower(req.Params)
	case "gov_finalizeVoteResult":
		return nil, s.finalizeVoteResult(req.Params)
	case "gov_revokeProposal":
		return nil, s.revokeProposal(req.Params)
	case "gov_executeProposal":
		return nil, s.executeProposal(ctx, req.Params)
	case "gov_forceExecuteProposal":
		return nil, s.forceExecuteProposal(ctx, req.Params)
	case "gov_addRole":
		return nil, s.addRole(req.Params)
	case "gov_removeRole":
		return nil, s.removeRole(req.Params)
	default:
		return nil, fmt.Errorf("%w: %s", errMethodNotFound, req.Method)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, id interface{}, code int, message string) {
	status := http.StatusOK
	if code == codeMethodNotFound {
		status = http.StatusNotFound
	} else if code == codeRateLimited {
		status = http.StatusTooManyRequests
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// --- param decoding helpers ---

func decodeParam[T any](params []json.RawMessage, index int, out *T) error {
	if index >= len(params) {
		return fmt.Errorf("missing parameter %d", index)
	}
	return json.Unmarshal(params[index], out)
}

// --- query handlers ---

func (s *GovernanceServer) getProposal(params []json.RawMessage) (*governance.Proposal, error) {
	var id governance.Index
	if err := decodeParam(params, 0, &id); err != nil {
		return nil, err
	}
	return s.store.GetProposal(id)
}

func (s *GovernanceServer) getProposalMetadata(params []json.RawMessage) (*governance.ProposalMetadata, error) {
	var id governance.Index
	if err := decodeParam(params, 0, &id); err != nil {
		return nil, err
	}
	return s.store.GetMetadata(id)
}

func (s *GovernanceServer) getProposalPayload(params []json.RawMessage) (*governance.ProposalPayload, error) {
	var id governance.Index
	if err := decodeParam(params, 0, &id); err != nil {
		return nil, err
	}
	return s.store.GetPayload(id)
}

func (s *GovernanceServer) getProposalExec(params []json.RawMessage) (*governance.ProposalExec, error) {
	var id governance.Index
	if err := decodeParam(params, 0, &id); err != nil {
		return nil, err
	}
	return s.store.GetExec(id)
}

func (s *GovernanceServer) getProposalRevoke(params []json.RawMessage) (*governance.ProposalRevoke, error) {
	var id governance.Index
	if err := decodeParam(params, 0, &id); err != nil {
		return nil, err
	}
	return s.store.GetRevoke(id)
}

// proposalIDRange returns [0, NextProposalID()), the full set of ids ever
// assigned. Store exposes no richer iteration primitive (SPEC_FULL.md §5:
// "callers address records by Index"), so the three scan queries below walk
// this range directly rather than requiring a secondary state index.
func (s *GovernanceServer) proposalIDRange() (governance.Index, error) {
	return s.store.NextProposalID()
}

// getProposalStates implements get_proposal_states(skip, take) (spec.md
// §6, §8 scenario 1): the ordered states of proposals [skip, skip+take),
// clamped to the current proposal count.
func (s *GovernanceServer) getProposalStates(params []json.RawMessage) ([]governance.ProposalState, error) {
	var skip, take uint64
	if err := decodeParam(params, 0, &skip); err != nil {
		return nil, err
	}
	if err := decodeParam(params, 1, &take); err != nil {
		return nil, err
	}
	count, err := s.proposalIDRange()
	if err != nil {
		return nil, err
	}
	out := make([]governance.ProposalState, 0, take)
	for id := governance.Index(skip); id < governance.Index(skip)+governance.Index(take) && id < count; id++ {
		p, err := s.store.GetProposal(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p.State)
	}
	return out, nil
}

type openProposalExpiration struct {
	ID      governance.Index    `json:"id"`
	Expires governance.Schedule `json:"expires"`
}

func (s *GovernanceServer) getOpenProposalIdsWithExpiration() ([]openProposalExpiration, error) {
	count, err := s.proposalIDRange()
	if err != nil {
		return nil, err
	}
	var out []openProposalExpiration
	for id := governance.Index(0); id < count; id++ {
		p, err := s.store.GetProposal(id)
		if err != nil {
			return nil, err
		}
		if p.State.Kind == governance.StateOpen {
			out = append(out, openProposalExpiration{ID: id, Expires: p.Expires})
		}
	}
	return out, nil
}

func (s *GovernanceServer) getSubmittedProposalIds() ([]governance.Index, error) {
	count, err := s.proposalIDRange()
	if err != nil {
		return nil, err
	}
	var out []governance.Index
	for id := governance.Index(0); id < count; id++ {
		p, err := s.store.GetProposal(id)
		if err != nil {
			return nil, err
		}
		if p.State.Kind == governance.StateSubmitted {
			out = append(out, id)
		}
	}
	return out, nil
}

// --- mutation param shapes ---

type submitProposalParams struct {
	Caller      string                      `json:"caller"`
	Metadata    governance.ProposalMetadata `json:"metadata"`
	Payload     governance.ProposalPayload  `json:"payload"`
	Activates   governance.Schedule         `json:"activates"`
	Expires     governance.Schedule         `json:"expires"`
	AutoExecute bool                        `json:"autoExecute"`
}

func (s *GovernanceServer) submitProposal(params []json.RawMessage) (governance.Index, error) {
	var p submitProposalParams
	if err := decodeParam(params, 0, &p); err != nil {
		return 0, err
	}
	caller, err := governance.DecodePrincipal(p.Caller)
	if err != nil {
		return 0, err
	}
	return s.coordinator.Submit(caller, p.Metadata, p.Payload, p.Activates, p.Expires, p.AutoExecute)
}

type validateProposalParams struct {
	Caller        string                              `json:"caller"`
	ID            governance.Index                     `json:"id"`
	VotingEndTime *int64                                `json:"votingEndTime,omitempty"`
	Threshold     *governance.ProposalPassingThreshold `json:"threshold,omitempty"`
	Validated     bool                                  `json:"validated"`
}

func (s *GovernanceServer) validateProposal(params []json.RawMessage) error {
	var p validateProposalParams
	if err := decodeParam(params, 0, &p); err != nil {
		return err
	}
	caller, err := governance.DecodePrincipal(p.Caller)
	if err != nil {
		return err
	}
	return s.coordinator.Validate(caller, p.ID, p.VotingEndTime, p.Threshold, p.Validated)
}

type voteDeltaParams struct {
	Caller       string            `json:"caller"`
	ID           governance.Index  `json:"id"`
	DeltaYes     *big.Int          `json:"deltaYes"`
	DeltaNo      *big.Int          `json:"deltaNo"`
	DeltaAbstain *big.Int          `json:"deltaAbstain"`
}

func (s *GovernanceServer) updateVoteResult(params []json.RawMessage) error {
	var p voteDeltaParams
	if err := decodeParam(params, 0, &p); err != nil {
		return err
	}
	caller, err := governance.DecodePrincipal(p.Caller)
	if err != nil {
		return err
	}
	return s.coordinator.UpdateVoteResult(caller, p.ID, p.DeltaYes, p.DeltaNo, p.DeltaAbstain)
}

type totalVotingPowerParams struct {
	Caller string           `json:"caller"`
	ID     governance.Index `json:"id"`
	Total  *big.Int         `json:"total"`
}

func (s *GovernanceServer) updateTotalVotingPower(params []json.RawMessage) error {
	var p totalVotingPowerParams
	if err := decodeParam(params, 0, &p); err != nil {
		return err
	}
	caller, err := governance.DecodePrincipal(p.Caller)
	if err != nil {
		return err
	}
	return s.coordinator.UpdateTotalVotingPower(caller, p.ID, p.Total)
}

type voteAndTotalParams struct {
	Caller       string           `json:"caller"`
	ID           governance.Index `json:"id"`
	DeltaYes     *big.Int         `json:"deltaYes"`
	DeltaNo      *big.Int         `json:"deltaNo"`
	DeltaAbstain *big.Int         `json:"deltaAbstain"`
	Total        *big.Int         `json:"total"`
}

func (s *GovernanceServer) updateVoteResultAndTotalVotingPower(params []json.RawMessage) error {
	var p voteAndTotalParams
	if err := decodeParam(params, 0, &p); err != nil {
		return err
	}
	caller, err := governance.DecodePrincipal(p.Caller)
	if err != nil {
		return err
	}
	return s.coordinator.UpdateVoteResultAndTotalVotingPower(caller, p.ID, p.DeltaYes, p.DeltaNo, p.DeltaAbstain, p.Total)
}

type proposalIDParams struct {
	Caller string           `json:"caller"`
	ID     governance.Index `json:"id"`
}

func (s *GovernanceServer) finalizeVoteResult(params []json.RawMessage) error {
	var p proposalIDParams
	if err := decodeParam(params, 0, &p); err != nil {
		return err
	}
	caller, err := governance.DecodePrincipal(p.Caller)
	if err != nil {
		return err
	}
	return s.coordinator.FinalizeVoteResult(caller, p.ID)
}

type revokeParams struct {
	Caller string           `json:"caller"`
	ID     governance.Index `json:"id"`
	Reason string           `json:"reason"`
}

func (s *GovernanceServer) revokeProposal(params []json.RawMessage) error {
	var p revokeParams
	if err := decodeParam(params, 0, &p); err != nil {
		return err
	}
	caller, err := governance.DecodePrincipal(p.Caller)
	if err != nil {
		return err
	}
	return s.coordinator.Revoke(caller, p.ID, p.Reason)
}

func (s *GovernanceServer) executeProposal(ctx context.Context, params []json.RawMessage) error {
	var p proposalIDParams
	if err := decodeParam(params, 0, &p); err != nil {
		return err
	}
	caller, err := governance.DecodePrincipal(p.Caller)
	if err != nil {
		return err
	}
	return s.coordinator.Execute(ctx, caller, p.ID)
}

func (s *GovernanceServer) forceExecuteProposal(ctx context.Context, params []json.RawMessage) error {
	var p proposalIDParams
	if err := decodeParam(params, 0, &p); err != nil {
		return err
	}
	caller, err := governance.DecodePrincipal(p.Caller)
	if err != nil {
		return err
	}
	return s.coordinator.ForceExecute(ctx, caller, p.ID)
}

type roleParams struct {
	Caller    string           `json:"caller"`
	Role      governance.Role  `json:"role"`
	Principal string           `json:"principal"`
}

func (s *GovernanceServer) addRole(params []json.RawMessage) error {
	var p roleParams
	if err := decodeParam(params, 0, &p); err != nil {
		return err
	}
	caller, err := governance.DecodePrincipal(p.Caller)
	if err != nil {
		return err
	}
	principal, err := governance.DecodePrincipal(p.Principal)
	if err != nil {
		return err
	}
	return s.coordinator.AddRole(caller, p.Role, principal)
}

func (s *GovernanceServer) removeRole(params []json.RawMessage) error {
	var p roleParams
	if err := decodeParam(params, 0, &p); err != nil {
		return err
	}
	caller, err := governance.DecodePrincipal(p.Caller)
	if err != nil {
		return err
	}
	principal, err := governance.DecodePrincipal(p.Principal)
	if err != nil {
		return err
	}
	return s.coordinator.RemoveRole(caller, p.Role, principal)
}
