package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"nxgov/native/governance"
	"nxgov/native/governance/memstore"
)

func newTestServer(t *testing.T, admin governance.Principal) *GovernanceServer {
	t.Helper()
	store := memstore.New()
	gate := governance.NewRoleGate(admin)
	hooks := governance.NewHookNotifier(store, nil, nil)
	dispatcher := governance.NewDispatcher(store, nil, nil)
	coordinator := governance.NewCoordinator(store, gate, hooks, dispatcher, governance.NoopEmitter{}, nil, func() int64 { return 0 })
	return NewGovernanceServer(coordinator, store)
}

func doRPC(t *testing.T, server *GovernanceServer, method string, params ...interface{}) RPCResponse {
	t.Helper()
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, ID: 1, Params: rawParams(t, params)})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	var resp RPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func rawParams(t *testing.T, params []interface{}) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		data, err := json.Marshal(p)
		require.NoError(t, err)
		out = append(out, data)
	}
	return out
}

func TestServeHTTPRejectsUnknownMethod(t *testing.T) {
	admin := governance.MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	server := newTestServer(t, admin)
	resp := doRPC(t, server, "gov_bogus")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestSubmitAndGetProposalRoundTrip(t *testing.T) {
	admin := governance.MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	proposer := governance.MustNewPrincipal(bytes.Repeat([]byte{2}, 20))
	server := newTestServer(t, admin)

	addRole := doRPC(t, server, "gov_addRole", map[string]interface{}{
		"caller": admin.String(), "role": governance.RoleProposer, "principal": proposer.String(),
	})
	require.Nil(t, addRole.Error)

	submit := doRPC(t, server, "gov_submitProposal", map[string]interface{}{
		"caller":      proposer.String(),
		"metadata":    map[string]interface{}{"name": "n", "description": "d"},
		"payload":     map[string]interface{}{},
		"activates":   map[string]interface{}{"absolute": false, "value": 0},
		"expires":     map[string]interface{}{"absolute": false, "value": 3600},
		"autoExecute": false,
	})
	require.Nil(t, submit.Error)

	var id uint64
	require.NoError(t, json.Unmarshal(mustMarshal(t, submit.Result), &id))

	get := doRPC(t, server, "gov_getProposal", id)
	require.Nil(t, get.Error)

	submitted := doRPC(t, server, "gov_getSubmittedProposalIds")
	require.Nil(t, submitted.Error)
	var ids []uint64
	require.NoError(t, json.Unmarshal(mustMarshal(t, submitted.Result), &ids))
	require.Equal(t, []uint64{id}, ids)
}

func TestUnauthorizedSubmitReportsDistinctCode(t *testing.T) {
	admin := governance.MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	stranger := governance.MustNewPrincipal(bytes.Repeat([]byte{9}, 20))
	server := newTestServer(t, admin)

	resp := doRPC(t, server, "gov_submitProposal", map[string]interface{}{
		"caller":      stranger.String(),
		"metadata":    map[string]interface{}{"name": "n", "description": "d"},
		"payload":     map[string]interface{}{},
		"activates":   map[string]interface{}{"absolute": false, "value": 0},
		"expires":     map[string]interface{}{"absolute": false, "value": 3600},
		"autoExecute": false,
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
