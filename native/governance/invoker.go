package governance

import (
	"context"
	"math/big"
)

// CallInvoker is the one transport seam the spec leaves out of scope
// (spec.md §1: "the transport layer (remote call mechanics, cycles/payment
// accounting)"). The Dispatcher depends only on this interface at each of
// its suspension points (pre-validate, main message, post-validate), and
// HookNotifier uses it for hook notification; native/governance/grpcinvoker
// provides the example
// production implementation, grounded in the teacher's sdk/consensus gRPC
// dial pattern.
type CallInvoker interface {
	Call(ctx context.Context, target Principal, method string, payload []byte, paymentWei *big.Int) ([]byte, error)
}
