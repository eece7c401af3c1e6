// Package grpcinvoker is the example production governance.CallInvoker: a
// gRPC-based implementation of the one transport seam the spec leaves out
// of scope (spec.md §1), grounded in the teacher's sdk/consensus.Client
// dial pattern (otelgrpc instrumentation; plaintext credentials unless the
// caller passes TLS ones to New) generalized from
// a single fixed service connection to a registry of per-target
// connections, since a CallInvoker must reach an arbitrary governance
// Principal rather than one well-known consensus endpoint.
package grpcinvoker

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"nxgov/native/governance"
)

// AddressResolver maps a governance Principal to the network address of the
// canister-equivalent service that owns it. The registry of dialed
// connections is keyed by the resolved address, not the Principal, so
// multiple proposals targeting the same service share one connection.
type AddressResolver func(target governance.Principal) (address string, err error)

// Invoker is a governance.CallInvoker backed by gRPC. Each Call dials (or
// reuses) a connection to the resolved address and issues a single
// generic RPC carrying the raw payload as a wrapperspb.BytesValue, since
// the payload format of an arbitrary CanisterMessage is opaque to this
// package.
type Invoker struct {
	resolver AddressResolver
	creds    credentials.TransportCredentials

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// New constructs an Invoker. creds defaults to insecure plaintext
// credentials when nil, matching the teacher's WithInsecure() dial option
// for local development; production deployments should pass TLS
// credentials built the way sdk/internal/dial.TLSCredentialsFromFiles
// does.
func New(resolver AddressResolver, creds credentials.TransportCredentials) *Invoker {
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	return &Invoker{resolver: resolver, creds: creds, conns: make(map[string]*grpc.ClientConn)}
}

// Call implements governance.CallInvoker.
func (inv *Invoker) Call(ctx context.Context, target governance.Principal, method string, payload []byte, paymentWei *big.Int) ([]byte, error) {
	addr, err := inv.resolver(target)
	if err != nil {
		return nil, fmt.Errorf("grpcinvoker: resolve %s: %w", target.String(), err)
	}
	conn, err := inv.connFor(addr)
	if err != nil {
		return nil, fmt.Errorf("grpcinvoker: dial %s: %w", addr, err)
	}

	if paymentWei != nil && paymentWei.Sign() != 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-governance-payment-wei", paymentWei.String())
	}

	req := wrapperspb.Bytes(payload)
	resp := new(wrapperspb.BytesValue)
	if err := conn.Invoke(ctx, method, req, resp); err != nil {
		return nil, fmt.Errorf("grpcinvoker: invoke %s at %s: %w", method, addr, err)
	}
	return resp.GetValue(), nil
}

func (inv *Invoker) connFor(addr string) (*grpc.ClientConn, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if conn, ok := inv.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(inv.creds),
		grpc.WithChainUnaryInterceptor(otelgrpc.UnaryClientInterceptor()),
	)
	if err != nil {
		return nil, err
	}
	inv.conns[addr] = conn
	return conn, nil
}

// Close releases every dialed connection.
func (inv *Invoker) Close() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var firstErr error
	for addr, conn := range inv.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("grpcinvoker: close %s: %w", addr, err)
		}
	}
	inv.conns = make(map[string]*grpc.ClientConn)
	return firstErr
}
