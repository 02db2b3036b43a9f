package chain

import (
	"errors"
	"testing"
)

func TestClassify_KnownNodeErrors(t *testing.T) {
	cases := []struct {
		raw  string
		want Kind
	}{
		{"replacement transaction underpriced", KindUnderpriced},
		{"insufficient funds for gas * price + value", KindInsufficientFunds},
		{"nonce too low", KindNonceConflict},
		{"execution reverted: product exists", KindContractRejected},
		{"out of gas", KindCongested},
		{"intrinsic gas too low", KindCongested},
		{"connection refused", KindUnknown},
	}

	for _, c := range cases {
		f := classify(errors.New(c.raw))
		if f.Kind != c.want {
			t.Fatalf("classify(%q): expected kind=%s got=%s", c.raw, c.want, f.Kind)
		}
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	// "insufficient funds for gas" contains both "insufficient funds"
	// and "gas"; funds must win because it is evaluated first.
	f := classify(errors.New("insufficient funds for gas * price + value"))
	if f.Kind != KindInsufficientFunds {
		t.Fatalf("expected insufficient funds to outrank congested, got=%s", f.Kind)
	}

	// Same for nonce vs gas.
	f = classify(errors.New("nonce too high for gas estimation"))
	if f.Kind != KindNonceConflict {
		t.Fatalf("expected nonce to outrank congested, got=%s", f.Kind)
	}
}

func TestClassify_UnknownKeepsRawMessage(t *testing.T) {
	f := classify(errors.New("i/o timeout"))
	if f.Kind != KindUnknown {
		t.Fatalf("expected unknown kind, got=%s", f.Kind)
	}
	if f.Message != "i/o timeout" {
		t.Fatalf("expected raw message passthrough, got=%q", f.Message)
	}
}
