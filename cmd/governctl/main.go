// Command governctl is a thin JSON-RPC client for governd, mirroring the
// teacher's cmd/nhb-cli subcommand dispatch (flag.NewFlagSet per
// subcommand, a single shared RPC call helper, Error:/RPC error: output
// conventions).
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"nxgov/crypto"
	"nxgov/native/governance"
)

var rpcEndpoint = "http://localhost:8761"

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	if endpoint := strings.TrimSpace(os.Getenv("GOVERNCTL_RPC_URL")); endpoint != "" {
		rpcEndpoint = endpoint
	}
	switch args[0] {
	case "submit":
		return runSubmit(args[1:], stdout, stderr)
	case "validate":
		return runValidate(args[1:], stdout, stderr)
	case "vote":
		return runVote(args[1:], stdout, stderr)
	case "finalize":
		return runProposalIDCommand("gov_finalizeVoteResult", args[1:], stdout, stderr)
	case "revoke":
		return runRevoke(args[1:], stdout, stderr)
	case "execute":
		return runProposalIDCommand("gov_executeProposal", args[1:], stdout, stderr)
	case "force-execute":
		return runProposalIDCommand("gov_forceExecuteProposal", args[1:], stdout, stderr)
	case "show":
		return runShow(args[1:], stdout, stderr)
	case "stats":
		return runStats(stdout, stderr)
	case "add-role", "remove-role":
		return runRole(args[0], args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return `Usage: governctl <command> [flags]

Commands:
  submit         Submit a new proposal
  validate       Validate a submitted proposal
  vote           Update a proposal's vote tally
  finalize       Finalize an open proposal's vote result
  revoke         Revoke an open proposal
  execute        Execute an accepted proposal
  force-execute  Force-execute an open proposal, bypassing the vote
  show           Show a proposal's current state
  stats          Show coordinator-wide statistics
  add-role       Grant a role to a principal
  remove-role    Revoke a role from a principal`
}

// resolveCaller prefers a --keystore-derived principal over a raw --caller
// string, the teacher's cmd/nhb-cli convention of signing operators
// carrying a local encrypted key rather than typing a bech32 address by
// hand. keystorePath empty leaves caller untouched.
func resolveCaller(caller *string, keystorePath, passphrase string) error {
	if strings.TrimSpace(keystorePath) == "" {
		return nil
	}
	key, err := crypto.LoadFromKeystore(keystorePath, passphrase)
	if err != nil {
		return fmt.Errorf("load keystore: %w", err)
	}
	addr := key.PubKey().Address()
	principal, err := governance.NewPrincipal(addr.Bytes())
	if err != nil {
		return fmt.Errorf("derive principal: %w", err)
	}
	*caller = principal.String()
	return nil
}

func runSubmit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		caller      string
		keystore    string
		passphrase  string
		metadata    string
		payload     string
		activatesIn int64
		expiresIn   int64
		autoExecute bool
	)
	fs.StringVar(&caller, "caller", "", "proposer principal (bech32)")
	fs.StringVar(&keystore, "keystore", "", "path to a keystore file; overrides --caller with its derived principal")
	fs.StringVar(&passphrase, "passphrase", "", "passphrase for --keystore")
	fs.StringVar(&metadata, "metadata", "", "proposal metadata JSON or @path to file")
	fs.StringVar(&payload, "payload", "", "proposal payload JSON or @path to file")
	fs.Int64Var(&activatesIn, "activates-in", 0, "nanoseconds from now until the proposal may activate")
	fs.Int64Var(&expiresIn, "expires-in", int64(7*24*time.Hour), "nanoseconds from now until the proposal expires")
	fs.BoolVar(&autoExecute, "auto-execute", false, "execute automatically once accepted")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := resolveCaller(&caller, keystore, passphrase); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if strings.TrimSpace(caller) == "" {
		fmt.Fprintln(stderr, "Error: --caller or --keystore is required")
		return 1
	}
	metadataBody, err := readBody(metadata)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	payloadBody, err := readBody(payload)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	var metadataValue, payloadValue interface{}
	if err := json.Unmarshal([]byte(metadataBody), &metadataValue); err != nil {
		fmt.Fprintf(stderr, "Error: invalid --metadata JSON: %v\n", err)
		return 1
	}
	if err := json.Unmarshal([]byte(payloadBody), &payloadValue); err != nil {
		fmt.Fprintf(stderr, "Error: invalid --payload JSON: %v\n", err)
		return 1
	}
	params := map[string]interface{}{
		"caller":      caller,
		"metadata":    metadataValue,
		"payload":     payloadValue,
		"activates":   map[string]interface{}{"absolute": false, "value": activatesIn},
		"expires":     map[string]interface{}{"absolute": false, "value": expiresIn},
		"autoExecute": autoExecute,
	}
	return callAndPrint("gov_submitProposal", params, stdout, stderr)
}

func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		caller        string
		id            uint64
		votingEndIn   int64
		quorum        uint
		passThreshold uint
		validated     bool
	)
	fs.StringVar(&caller, "caller", "", "validator principal (bech32)")
	fs.Uint64Var(&id, "id", 0, "proposal identifier")
	fs.Int64Var(&votingEndIn, "voting-end-in", int64(3*24*time.Hour), "nanoseconds from now until voting ends")
	fs.UintVar(&quorum, "quorum-percent", 20, "quorum threshold, whole percent")
	fs.UintVar(&passThreshold, "pass-percent", 20, "passing threshold, whole percent")
	fs.BoolVar(&validated, "validated", true, "whether the proposal passes admissibility")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(caller) == "" {
		fmt.Fprintln(stderr, "Error: --caller is required")
		return 1
	}
	params := map[string]interface{}{
		"caller":    caller,
		"id":        id,
		"validated": validated,
	}
	if validated {
		params["votingEndTime"] = time.Now().UnixNano() + votingEndIn
		params["threshold"] = map[string]interface{}{
			"quorum":           quorum * 400,
			"passingThreshold": passThreshold * 400,
		}
	}
	return callAndPrint("gov_validateProposal", params, stdout, stderr)
}

func runVote(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		caller  string
		id      uint64
		yes     int64
		no      int64
		abstain int64
		total   int64
	)
	fs.StringVar(&caller, "caller", "", "vote manager principal (bech32)")
	fs.Uint64Var(&id, "id", 0, "proposal identifier")
	fs.Int64Var(&yes, "yes", 0, "delta yes votes")
	fs.Int64Var(&no, "no", 0, "delta no votes")
	fs.Int64Var(&abstain, "abstain", 0, "delta abstain votes")
	fs.Int64Var(&total, "total", -1, "new total voting power (omit to leave unchanged)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(caller) == "" {
		fmt.Fprintln(stderr, "Error: --caller is required")
		return 1
	}
	method := "gov_updateVoteResult"
	params := map[string]interface{}{
		"caller":       caller,
		"id":           id,
		"deltaYes":     yes,
		"deltaNo":      no,
		"deltaAbstain": abstain,
	}
	if total >= 0 {
		method = "gov_updateVoteResultAndTotalVotingPower"
		params["total"] = total
	}
	return callAndPrint(method, params, stdout, stderr)
}

func runRevoke(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		caller string
		id     uint64
		reason string
	)
	fs.StringVar(&caller, "caller", "", "revoker principal (bech32)")
	fs.Uint64Var(&id, "id", 0, "proposal identifier")
	fs.StringVar(&reason, "reason", "", "revocation reason")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(caller) == "" {
		fmt.Fprintln(stderr, "Error: --caller is required")
		return 1
	}
	params := map[string]interface{}{"caller": caller, "id": id, "reason": reason}
	return callAndPrint("gov_revokeProposal", params, stdout, stderr)
}

func runProposalIDCommand(method string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(method, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		caller string
		id     uint64
	)
	fs.StringVar(&caller, "caller", "", "calling principal (bech32)")
	fs.Uint64Var(&id, "id", 0, "proposal identifier")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(caller) == "" {
		fmt.Fprintln(stderr, "Error: --caller is required")
		return 1
	}
	params := map[string]interface{}{"caller": caller, "id": id}
	return callAndPrint(method, params, stdout, stderr)
}

func runShow(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var id uint64
	fs.Uint64Var(&id, "id", 0, "proposal identifier")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return callAndPrint("gov_getProposal", id, stdout, stderr)
}

func runStats(stdout, stderr io.Writer) int {
	return callAndPrint("gov_stats", nil, stdout, stderr)
}

func runRole(action string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(action, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		caller     string
		keystore   string
		passphrase string
		role       uint
		principal  string
	)
	fs.StringVar(&caller, "caller", "", "admin principal (bech32)")
	fs.StringVar(&keystore, "keystore", "", "path to a keystore file; overrides --caller with its derived principal")
	fs.StringVar(&passphrase, "passphrase", "", "passphrase for --keystore")
	fs.UintVar(&role, "role", 0, "role ordinal (0=Admin,1=Proposer,2=VoteManager,3=Revoker,4=Executor,5=ForceExecutor,6=Validator)")
	fs.StringVar(&principal, "principal", "", "target principal (bech32)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := resolveCaller(&caller, keystore, passphrase); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if strings.TrimSpace(caller) == "" || strings.TrimSpace(principal) == "" {
		fmt.Fprintln(stderr, "Error: --caller (or --keystore) and --principal are required")
		return 1
	}
	method := "gov_addRole"
	if action == "remove-role" {
		method = "gov_removeRole"
	}
	params := map[string]interface{}{"caller": caller, "role": role, "principal": principal}
	return callAndPrint(method, params, stdout, stderr)
}

func readBody(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(trimmed, "@"))
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return string(data), nil
	}
	if trimmed == "" {
		return "{}", nil
	}
	return trimmed, nil
}

func callAndPrint(method string, params interface{}, stdout, stderr io.Writer) int {
	result, rpcErr, err := callRPC(method, params)
	if err != nil {
		fmt.Fprintf(stderr, "RPC call failed: %v\n", err)
		return 1
	}
	if rpcErr != nil {
		fmt.Fprintf(stderr, "RPC error %d: %s\n", rpcErr.Code, rpcErr.Message)
		return 1
	}
	if len(result) == 0 {
		fmt.Fprintln(stdout, "null")
		return 0
	}
	if _, err := stdout.Write(result); err != nil {
		return 1
	}
	if result[len(result)-1] != '\n' {
		fmt.Fprintln(stdout)
	}
	return 0
}

func callRPC(method string, params interface{}) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(rpcEndpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to governd at %s: %w", rpcEndpoint, err)
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("decode RPC response: %w", err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}
