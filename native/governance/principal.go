package governance

import (
	"encoding/json"
	"fmt"

	"nxgov/crypto"
)

// GovPrefix is the bech32 human-readable prefix used for governance
// identities (proposers, role holders, call targets), mirroring the
// nhb/znhb prefixes crypto.Address supports for other NHB address spaces.
const GovPrefix crypto.AddressPrefix = "gov"

// Principal identifies a caller or a remote-call target: a proposer, a role
// holder, or a canister-equivalent destination for a CanisterMessage. It
// wraps crypto.Address rather than inventing a parallel identity type, since
// the teacher's address/bech32 idiom already covers "20 bytes + human
// readable prefix" identities.
type Principal struct {
	addr crypto.Address
}

// NewPrincipal wraps 20 raw identity bytes into a Principal.
func NewPrincipal(b []byte) (Principal, error) {
	addr, err := crypto.NewAddress(GovPrefix, b)
	if err != nil {
		return Principal{}, fmt.Errorf("governance: %w: %w", ErrInput, err)
	}
	return Principal{addr: addr}, nil
}

// MustNewPrincipal wraps NewPrincipal and panics on invalid input. Intended
// for tests and static bootstrap data (e.g. config-declared role holders),
// never for request-path input.
func MustNewPrincipal(b []byte) Principal {
	p, err := NewPrincipal(b)
	if err != nil {
		panic(err)
	}
	return p
}

// DecodePrincipal parses a bech32-encoded Principal string.
func DecodePrincipal(s string) (Principal, error) {
	addr, err := crypto.DecodeAddress(s)
	if err != nil {
		return Principal{}, fmt.Errorf("governance: %w: %w", ErrInput, err)
	}
	return Principal{addr: addr}, nil
}

// IsZero reports whether the Principal carries no identity bytes, the Go
// analogue of an absent candid::Principal field.
func (p Principal) IsZero() bool {
	return len(p.addr.Bytes()) == 0
}

// Bytes returns the raw identity bytes.
func (p Principal) Bytes() []byte {
	return p.addr.Bytes()
}

// Equal reports whether two Principals carry the same identity bytes.
func (p Principal) Equal(other Principal) bool {
	a, b := p.Bytes(), other.Bytes()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (p Principal) String() string {
	if p.IsZero() {
		return "gov1unset"
	}
	return p.addr.String()
}

// MarshalJSON renders the Principal as its bech32 text form.
func (p Principal) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses the Principal from its bech32 text form.
func (p *Principal) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" || s == "gov1unset" {
		*p = Principal{}
		return nil
	}
	decoded, err := DecodePrincipal(s)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

// GobEncode renders the Principal as its raw identity bytes, for the
// schema-tight gob framing used by proposals and payloads.
func (p Principal) GobEncode() ([]byte, error) {
	return append([]byte(nil), p.Bytes()...), nil
}

// GobDecode restores a Principal from raw identity bytes.
func (p *Principal) GobDecode(data []byte) error {
	if len(data) == 0 {
		*p = Principal{}
		return nil
	}
	decoded, err := NewPrincipal(data)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}
