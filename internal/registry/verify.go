package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pvzzle/tracechain/internal/chain"
	"github.com/pvzzle/tracechain/internal/storage"
)

// VerifyResult merges the two sources of truth. The chain decides
// whether a product exists at all; the store is supplementary and may
// legitimately be missing the record.
type VerifyResult struct {
	Verified         bool                   `json:"verified"`
	ProductID        string                 `json:"productId"`
	BlockchainData   *chain.ProductState    `json:"blockchainData,omitempty"`
	DatabaseData     *storage.ProductRecord `json:"databaseData"`
	VerificationTime time.Time              `json:"verificationTime"`
	Note             string                 `json:"note,omitempty"`
	Message          string                 `json:"message,omitempty"`
}

func (s *Service) Verify(ctx context.Context, productID string) (VerifyResult, error) {
	if productID == "" {
		return VerifyResult{}, fmt.Errorf("product code is required")
	}

	result := VerifyResult{ProductID: productID, VerificationTime: time.Now().UTC()}

	if s.reader == nil {
		result.Message = "blockchain verification unavailable"
		return result, nil
	}

	state, err := s.reader.GetProduct(ctx, productID)
	if err != nil {
		slog.Warn("blockchain read failed during verification", "product_id", productID, "err", err)
		result.Message = "product could not be verified on blockchain"
		return result, nil
	}
	if state == nil {
		result.Message = "product not found on blockchain"
		return result, nil
	}

	result.Verified = true
	result.BlockchainData = state

	record, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		// Verified on chain but absent from the store: still a
		// positive verification, just partial data.
		result.Note = "product verified on blockchain but not found in database"
		return result, nil
	}
	result.DatabaseData = &record
	return result, nil
}

type TraceEntry struct {
	Stage            string    `json:"stage"`
	Company          string    `json:"company"`
	Location         string    `json:"location"`
	Details          string    `json:"details"`
	BlockchainTxHash string    `json:"blockchainTxHash,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

type TraceResult struct {
	ProductID           string       `json:"productId"`
	ProductName         string       `json:"productName"`
	Manufacturer        string       `json:"manufacturer"`
	Batch               string       `json:"batch"`
	CurrentStatus       string       `json:"currentStatus"`
	BlockchainVerified  bool         `json:"blockchainVerified"`
	BlockchainTimestamp uint64       `json:"blockchainTimestamp"`
	Trace               []TraceEntry `json:"trace"`
}

// Trace answers "what happened to this product". Top-level fields come
// from the chain (authoritative current state), the trace array from
// the store (the only multi-stage history). The store returns records
// ordered, but the ordering is re-derived here anyway rather than
// trusted blindly.
func (s *Service) Trace(ctx context.Context, productID string) (TraceResult, error) {
	verification, err := s.Verify(ctx, productID)
	if err != nil {
		return TraceResult{}, err
	}
	if !verification.Verified {
		return TraceResult{}, fmt.Errorf("trace %s: %w", productID, storage.ErrNotFound)
	}

	records, err := s.repo.ListTrace(ctx, productID)
	if err != nil {
		return TraceResult{}, fmt.Errorf("trace records: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	entries := make([]TraceEntry, 0, len(records))
	for _, r := range records {
		e := TraceEntry{
			Stage:     r.Stage,
			Company:   r.CompanyName,
			Location:  r.Location,
			Details:   fmt.Sprintf("%s - Quantity: %d", r.Stage, r.Quantity),
			Timestamp: r.Timestamp,
		}
		if r.BlockchainTxHash != nil {
			e.BlockchainTxHash = *r.BlockchainTxHash
		}
		entries = append(entries, e)
	}

	state := verification.BlockchainData
	return TraceResult{
		ProductID:           productID,
		ProductName:         state.Name,
		Manufacturer:        state.Manufacturer,
		Batch:               state.Batch,
		CurrentStatus:       state.Status,
		BlockchainVerified:  true,
		BlockchainTimestamp: state.Timestamp,
		Trace:               entries,
	}, nil
}
