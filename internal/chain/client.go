package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const receiptPollInterval = 2 * time.Second

// ProductState is the contract's current view of one product. The
// chain stores only the latest state, not history.
type ProductState struct {
	Name         string
	Batch        string
	Manufacturer string
	Status       string
	Timestamp    uint64
}

// Client is the single point of contact with the network. It owns the
// signing key and the contract binding; nothing else in the process
// talks JSON-RPC. One network round trip per operation, no caching of
// gas price or nonce across calls.
type Client struct {
	eth      *ethclient.Client
	chainID  *big.Int
	key      *ecdsa.PrivateKey
	from     common.Address
	contract common.Address
}

func NewClient(eth *ethclient.Client, chainID *big.Int, key *ecdsa.PrivateKey, contract common.Address) *Client {
	return &Client{
		eth:      eth,
		chainID:  chainID,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		contract: contract,
	}
}

func (c *Client) From() common.Address { return c.from }

func (c *Client) Contract() common.Address { return c.contract }

// GasPrice fetches the current network gas price. No retry; the caller
// decides what to do with a failure.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.eth.SuggestGasPrice(ctx)
}

func (c *Client) Balance(ctx context.Context) (*big.Int, error) {
	return c.eth.BalanceAt(ctx, c.from, nil)
}

// EstimateGas simulates the call against pending state. An error means
// the node could not simulate it (or the call would revert); the
// submitter falls back to a fixed limit in that case.
func (c *Client) EstimateGas(ctx context.Context, fn string, args []any) (uint64, error) {
	data, err := registryABI.Pack(fn, args...)
	if err != nil {
		return 0, fmt.Errorf("pack %s: %w", fn, err)
	}
	return c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.contract,
		Data: data,
	})
}

// Submit signs and broadcasts one contract call and blocks until the
// network reports inclusion. The nonce is fetched immediately before
// signing, never cached: concurrent instances share the account, and a
// stale nonce is worse than an extra round trip. A receipt with failed
// status is returned as a revert error so the classifier maps it to
// the contract-rejected kind.
func (c *Client) Submit(ctx context.Context, fn string, args []any, gasLimit uint64, gasPrice *big.Int) (common.Hash, error) {
	data, err := registryABI.Pack(fn, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack %s: %w", fn, err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}

	if err := c.waitMined(ctx, signed.Hash()); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) error {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return fmt.Errorf("transaction %s revert", hash.Hex())
			}
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for transaction %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// GetProduct reads current product state with eth_call. A missing or
// empty product is (nil, nil), not an error: the contract returns
// zero values for unknown ids and an empty name signals "not found".
func (c *Client) GetProduct(ctx context.Context, productID string) (*ProductState, error) {
	data, err := registryABI.Pack(fnGetProduct, productID)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", fnGetProduct, err)
	}

	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", fnGetProduct, err)
	}

	out, err := registryABI.Unpack(fnGetProduct, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", fnGetProduct, err)
	}
	if len(out) < 5 {
		return nil, nil
	}

	state := &ProductState{
		Name:         asString(out[0]),
		Batch:        asString(out[1]),
		Manufacturer: asString(out[2]),
		Status:       asString(out[3]),
	}
	if ts, ok := out[4].(*big.Int); ok && ts != nil {
		state.Timestamp = ts.Uint64()
	}
	if state.Name == "" {
		return nil, nil
	}
	if state.Status == "" {
		state.Status = "Created"
	}
	return state, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
