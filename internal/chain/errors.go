package chain

import "strings"

// Kind is the closed taxonomy of submission failures. Callers branch on
// it to decide whether a failure is retryable, fatal or just degraded.
type Kind string

const (
	KindUnderpriced       Kind = "underpriced"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindNonceConflict     Kind = "nonce_conflict"
	KindContractRejected  Kind = "contract_rejected"
	KindCongested         Kind = "congested"
	KindUnknown           Kind = "unknown"
)

// Failure is a classified submission error. It is a value carried in
// an Outcome, and also implements error for the paths that surface it.
type Failure struct {
	Kind    Kind
	Message string
}

func (f *Failure) Error() string { return f.Message }

// Outcome is the contract between the submitter and the reconciliation
// layer: either a transaction hash or a classified failure, never both.
type Outcome struct {
	TxHash  string
	Failure *Failure
}

func (o Outcome) OK() bool { return o.Failure == nil }

// classifiers map the heterogeneous transport error space onto the
// taxonomy. Evaluated in order; the first match wins, so the broad
// "gas" predicate must stay last before the fallback. Messages mirror
// what node implementations actually emit, and the list is unit-tested
// against known strings.
var classifiers = []struct {
	substr  string
	kind    Kind
	message string
}{
	{"replacement transaction underpriced", KindUnderpriced, "transaction gas price too low, please retry"},
	{"insufficient funds", KindInsufficientFunds, "insufficient funds for blockchain transaction"},
	{"nonce", KindNonceConflict, "transaction nonce error, please retry"},
	{"revert", KindContractRejected, "transaction rejected by smart contract, product may already exist"},
	{"gas", KindCongested, "gas estimation failed, network may be congested"},
}

// classify turns a raw submission error into a Failure. Unrecognized
// errors keep their original message so nothing is hidden.
func classify(err error) *Failure {
	msg := err.Error()
	for _, c := range classifiers {
		if strings.Contains(msg, c.substr) {
			return &Failure{Kind: c.kind, Message: c.message}
		}
	}
	return &Failure{Kind: KindUnknown, Message: msg}
}
