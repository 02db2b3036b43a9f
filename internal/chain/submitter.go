package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// rpc is the slice of Client the submitter needs. Narrow on purpose so
// tests can substitute a mock the same way storage mocks do.
type rpc interface {
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, fn string, args []any) (uint64, error)
	Submit(ctx context.Context, fn string, args []any, gasLimit uint64, gasPrice *big.Int) (common.Hash, error)
}

// Submitter turns one business intent into an Outcome. It applies the
// policy that makes testnet submission reliable for a request/response
// API: overpay gas price by 20%, buffer the gas limit by 20%, fall
// back to fixed limits when estimation fails, and classify every
// error. It never retries: a blockchain retry risks double submission
// and must be nonce-aware, which is the caller's decision.
type Submitter struct {
	rpc rpc
}

func NewSubmitter(rpc rpc) *Submitter { return &Submitter{rpc: rpc} }

// Do submits one contract call. Exactly one Submit per invocation, and
// the returned Outcome is the only signal the reconciliation layer
// uses; raw transport errors never escape.
func (s *Submitter) Do(ctx context.Context, op Op, args ...string) Outcome {
	trimmed := make([]any, len(args))
	for i, a := range args {
		t := strings.TrimSpace(a)
		if t == "" {
			return Outcome{Failure: &Failure{
				Kind:    KindUnknown,
				Message: fmt.Sprintf("%s: argument %d is empty", op, i+1),
			}}
		}
		trimmed[i] = t
	}

	price, err := s.rpc.GasPrice(ctx)
	if err != nil {
		return Outcome{Failure: classify(err)}
	}
	price = inflatePrice(price)

	gas, err := s.rpc.EstimateGas(ctx, string(op), trimmed)
	if err != nil {
		slog.Warn("gas estimation failed, using default limit", "op", op, "default", defaultGasLimit[op], "err", err)
		gas = defaultGasLimit[op]
	}
	gas = inflateGas(gas)

	hash, err := s.rpc.Submit(ctx, string(op), trimmed, gas, price)
	if err != nil {
		f := classify(err)
		slog.Error("transaction submission failed", "op", op, "kind", f.Kind, "err", err)
		return Outcome{Failure: f}
	}

	return Outcome{TxHash: hash.Hex()}
}

// 1.2x, floored to an integer. The overpay avoids "replacement
// transaction underpriced" rejections on congested testnets; the limit
// buffer absorbs state-dependent cost drift between estimation and
// inclusion.
func inflatePrice(p *big.Int) *big.Int {
	out := new(big.Int).Mul(p, big.NewInt(12))
	return out.Div(out, big.NewInt(10))
}

func inflateGas(g uint64) uint64 { return g * 12 / 10 }
