//go:build integration

package pg_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pvzzle/tracechain/internal/storage"
	"github.com/pvzzle/tracechain/internal/storage/pg"
)

func testRepo(t *testing.T) *pg.Postgres {
	t.Helper()

	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		dsn = os.Getenv("PG_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_PG_DSN/PG_DSN is not set")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	repo := pg.New(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	_, _ = pool.Exec(ctx, "TRUNCATE inventory, trace_records, orders, products, users RESTART IDENTITY CASCADE")
	return repo
}

func TestRepo_ProductLifecycle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user := storage.UserRecord{
		UserID: "u1", Username: "acme", Name: "Acme Corp",
		Role: storage.RoleManufacturer, CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	hash := "0xabc"
	product := storage.ProductRecord{
		ProductID: "p1", Name: "Widget", Category: "tools", Batch: "B1",
		Quantity: 10, Price: 100, Manufacturer: "Acme Corp", ManufacturerID: "u1",
		BlockchainTxHash: &hash, BlockchainStatus: storage.StatusRegistered,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.InsertProduct(ctx, product); err != nil {
		t.Fatalf("InsertProduct: %v", err)
	}

	got, err := repo.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.BlockchainStatus != storage.StatusRegistered {
		t.Fatalf("expected status=registered got=%s", got.BlockchainStatus)
	}
	if got.BlockchainTxHash == nil || *got.BlockchainTxHash != hash {
		t.Fatalf("expected tx hash=%s got=%v", hash, got.BlockchainTxHash)
	}

	if err := repo.UpdateProductChainStatus(ctx, "p1", "Shipped", "0xdef"); err != nil {
		t.Fatalf("UpdateProductChainStatus: %v", err)
	}
	got, err = repo.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProduct after update: %v", err)
	}
	if got.LastBlockchainTxHash == nil || *got.LastBlockchainTxHash != "0xdef" {
		t.Fatalf("expected last tx hash=0xdef got=%v", got.LastBlockchainTxHash)
	}

	if err := repo.UpdateProductChainStatus(ctx, "missing", "Shipped", "0x0"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing product, got=%v", err)
	}

	// Delete is scoped to the owning manufacturer.
	if err := repo.DeleteProduct(ctx, "p1", "someone-else"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign delete, got=%v", err)
	}
	if err := repo.DeleteProduct(ctx, "p1", "u1"); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
}

func TestRepo_InventoryNeverGoesNegative(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	q, err := repo.AdjustInventory(ctx, "u1", "p1", 5)
	if err != nil {
		t.Fatalf("AdjustInventory +5: %v", err)
	}
	if q != 5 {
		t.Fatalf("expected quantity=5 got=%d", q)
	}

	q, err = repo.AdjustInventory(ctx, "u1", "p1", -3)
	if err != nil {
		t.Fatalf("AdjustInventory -3: %v", err)
	}
	if q != 2 {
		t.Fatalf("expected quantity=2 got=%d", q)
	}

	if _, err := repo.AdjustInventory(ctx, "u1", "p1", -10); !errors.Is(err, storage.ErrInsufficientQuantity) {
		t.Fatalf("expected ErrInsufficientQuantity, got=%v", err)
	}

	// Failed subtraction must not have touched the row.
	have, err := repo.GetInventoryQuantity(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("GetInventoryQuantity: %v", err)
	}
	if have != 2 {
		t.Fatalf("expected quantity unchanged at 2, got=%d", have)
	}
}

func TestRepo_TraceOrdering(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	hash := "0x111"
	records := []storage.TraceRecord{
		{TraceID: "t2", ProductID: "p1", Stage: "Imported", CompanyName: "Shop", Location: "Vietnam", Quantity: 4, OrderID: "o2", Timestamp: base.Add(time.Hour)},
		{TraceID: "t1", ProductID: "p1", Stage: "Exported", CompanyName: "Acme", Location: "Vietnam", BlockchainTxHash: &hash, Quantity: 4, OrderID: "o1", Timestamp: base},
	}
	for _, r := range records {
		if err := repo.AppendTrace(ctx, r); err != nil {
			t.Fatalf("AppendTrace %s: %v", r.TraceID, err)
		}
	}

	got, err := repo.ListTrace(ctx, "p1")
	if err != nil {
		t.Fatalf("ListTrace: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got=%d", len(got))
	}
	if got[0].Stage != "Exported" || got[1].Stage != "Imported" {
		t.Fatalf("expected ascending timestamp order, got=%s,%s", got[0].Stage, got[1].Stage)
	}
	if got[0].BlockchainTxHash == nil || *got[0].BlockchainTxHash != hash {
		t.Fatalf("expected tx hash on first record, got=%v", got[0].BlockchainTxHash)
	}
	if got[1].BlockchainTxHash != nil {
		t.Fatalf("expected nil tx hash on second record, got=%v", got[1].BlockchainTxHash)
	}
}

func TestRepo_OrdersScopedToCreator(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	order := storage.OrderRecord{
		OrderID: "o1", Type: storage.OrderExport, ProductID: "p1", ProductName: "Widget",
		Quantity: 4, Status: "pending", CreatedBy: "u1", CreatedByName: "Acme Corp",
		RecipientID: "u2", RecipientName: "Shop", CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.InsertOrder(ctx, order); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}

	if _, err := repo.GetOrder(ctx, "u2", "o1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign order read, got=%v", err)
	}

	got, err := repo.GetOrder(ctx, "u1", "o1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.RecipientName != "Shop" {
		t.Fatalf("expected recipient=Shop got=%s", got.RecipientName)
	}

	if err := repo.SetOrderStatus(ctx, "u1", "o1", "completed", true); err != nil {
		t.Fatalf("SetOrderStatus: %v", err)
	}
	got, err = repo.GetOrder(ctx, "u1", "o1")
	if err != nil {
		t.Fatalf("GetOrder after completion: %v", err)
	}
	if got.Status != "completed" {
		t.Fatalf("expected status=completed got=%s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
}
