package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/pvzzle/tracechain/internal/secrets"
)

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	default:
		return "uninitialized"
	}
}

// lowBalanceWei is 0.001 ETH. Below it transactions are likely to fail
// for funds, so bootstrap logs a warning. Not a failure.
var lowBalanceWei = new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil)

// Bootstrap is the process-scoped chain integration state. It is built
// exactly once at startup and passed to every request handler, so the
// Ready/Degraded decision is a value, not module-level globals.
// Degraded is permanent for the process lifetime: clearing it needs new
// secrets or network conditions, which means a restart.
type Bootstrap struct {
	state  State
	client *Client
	reason string
}

func (b *Bootstrap) State() State    { return b.state }
func (b *Bootstrap) Ready() bool     { return b.state == StateReady }
func (b *Bootstrap) Client() *Client { return b.client }
func (b *Bootstrap) Reason() string  { return b.reason }

// NewDegraded is for callers that already know bootstrap cannot
// proceed, e.g. the secret fetch itself failed.
func NewDegraded(reason string) *Bootstrap {
	slog.Error("blockchain bootstrap degraded", "reason", reason)
	return &Bootstrap{state: StateDegraded, reason: reason}
}

// Init builds the chain client from the secret blob. It never returns
// an error: any failure transitions to Degraded with the cause logged,
// and the store-backed business logic keeps working without the chain.
func Init(ctx context.Context, blob secrets.Blob) *Bootstrap {
	if blob.InfuraAPIKey == "" || blob.PrivateKey == "" || blob.ContractAddress == "" {
		return NewDegraded("missing blockchain configuration fields")
	}

	url := fmt.Sprintf("https://sepolia.infura.io/v3/%s", blob.InfuraAPIKey)
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return NewDegraded(fmt.Sprintf("dial provider: %v", err))
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(blob.PrivateKey, "0x"))
	if err != nil {
		return NewDegraded(fmt.Sprintf("parse private key: %v", err))
	}

	if !common.IsHexAddress(blob.ContractAddress) {
		return NewDegraded("contract address is not a hex address")
	}
	contract := common.HexToAddress(blob.ContractAddress)

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return NewDegraded(fmt.Sprintf("probe chain id: %v", err))
	}

	client := NewClient(eth, chainID, key, contract)

	balance, err := client.Balance(ctx)
	if err != nil {
		return NewDegraded(fmt.Sprintf("probe balance: %v", err))
	}
	if balance.Cmp(lowBalanceWei) < 0 {
		slog.Warn("low account balance, transactions may fail",
			"account", client.From().Hex(), "balance_wei", balance.String())
	}

	slog.Info("blockchain initialized",
		"chain_id", chainID.String(),
		"account", client.From().Hex(),
		"contract", contract.Hex())

	return &Bootstrap{state: StateReady, client: client}
}
