package registry

import (
	"context"
	"fmt"

	"github.com/pvzzle/tracechain/internal/chain"
	"github.com/pvzzle/tracechain/internal/storage"
)

type mockSubmitter struct {
	outcome  chain.Outcome
	calls    int
	lastOp   chain.Op
	lastArgs []string
}

func (m *mockSubmitter) Do(ctx context.Context, op chain.Op, args ...string) chain.Outcome {
	m.calls++
	m.lastOp = op
	m.lastArgs = args
	return m.outcome
}

type mockReader struct {
	state *chain.ProductState
	err   error
}

func (m *mockReader) GetProduct(ctx context.Context, productID string) (*chain.ProductState, error) {
	return m.state, m.err
}

// mockRepo is an in-memory storage.Repository.
type mockRepo struct {
	users     map[string]storage.UserRecord
	products  map[string]storage.ProductRecord
	orders    map[string]storage.OrderRecord
	traces    []storage.TraceRecord
	inventory map[string]int

	chainStatusCalls int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		users:     make(map[string]storage.UserRecord),
		products:  make(map[string]storage.ProductRecord),
		orders:    make(map[string]storage.OrderRecord),
		inventory: make(map[string]int),
	}
}

func invKey(userID, productID string) string { return userID + "/" + productID }

func (m *mockRepo) EnsureSchema(ctx context.Context) error { return nil }

func (m *mockRepo) UpsertUser(ctx context.Context, u storage.UserRecord) error {
	m.users[u.UserID] = u
	return nil
}

func (m *mockRepo) GetUser(ctx context.Context, userID string) (storage.UserRecord, error) {
	u, ok := m.users[userID]
	if !ok {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) UpdateUserRole(ctx context.Context, userID string, role storage.Role) error {
	u, ok := m.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.Role = role
	m.users[userID] = u
	return nil
}

func (m *mockRepo) ListUsersByRole(ctx context.Context, role storage.Role) ([]storage.UserRecord, error) {
	var out []storage.UserRecord
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockRepo) CountProductsByManufacturer(ctx context.Context, userID string) (int, error) {
	n := 0
	for _, p := range m.products {
		if p.ManufacturerID == userID {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) InsertProduct(ctx context.Context, p storage.ProductRecord) error {
	m.products[p.ProductID] = p
	return nil
}

func (m *mockRepo) GetProduct(ctx context.Context, productID string) (storage.ProductRecord, error) {
	p, ok := m.products[productID]
	if !ok {
		return storage.ProductRecord{}, storage.ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) ListProducts(ctx context.Context) ([]storage.ProductRecord, error) {
	var out []storage.ProductRecord
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockRepo) ListProductsByManufacturer(ctx context.Context, userID string) ([]storage.ProductRecord, error) {
	var out []storage.ProductRecord
	for _, p := range m.products {
		if p.ManufacturerID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) UpdateProductChainStatus(ctx context.Context, productID, status, lastTxHash string) error {
	m.chainStatusCalls++
	p, ok := m.products[productID]
	if !ok {
		return storage.ErrNotFound
	}
	p.BlockchainStatus = storage.BlockchainStatus(status)
	p.LastBlockchainTxHash = &lastTxHash
	m.products[productID] = p
	return nil
}

func (m *mockRepo) DeleteProduct(ctx context.Context, productID, manufacturerID string) error {
	p, ok := m.products[productID]
	if !ok || p.ManufacturerID != manufacturerID {
		return storage.ErrNotFound
	}
	delete(m.products, productID)
	return nil
}

func (m *mockRepo) InsertOrder(ctx context.Context, o storage.OrderRecord) error {
	m.orders[o.OrderID] = o
	return nil
}

func (m *mockRepo) GetOrder(ctx context.Context, userID, orderID string) (storage.OrderRecord, error) {
	o, ok := m.orders[orderID]
	if !ok || o.CreatedBy != userID {
		return storage.OrderRecord{}, storage.ErrNotFound
	}
	return o, nil
}

func (m *mockRepo) ListOrdersByUser(ctx context.Context, userID string) ([]storage.OrderRecord, error) {
	var out []storage.OrderRecord
	for _, o := range m.orders {
		if o.CreatedBy == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockRepo) SetOrderStatus(ctx context.Context, userID, orderID, status string, completed bool) error {
	o, ok := m.orders[orderID]
	if !ok || o.CreatedBy != userID {
		return storage.ErrNotFound
	}
	o.Status = status
	m.orders[orderID] = o
	return nil
}

func (m *mockRepo) AppendTrace(ctx context.Context, t storage.TraceRecord) error {
	m.traces = append(m.traces, t)
	return nil
}

func (m *mockRepo) ListTrace(ctx context.Context, productID string) ([]storage.TraceRecord, error) {
	var out []storage.TraceRecord
	for _, t := range m.traces {
		if t.ProductID == productID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockRepo) AdjustInventory(ctx context.Context, userID, productID string, delta int) (int, error) {
	key := invKey(userID, productID)
	next := m.inventory[key] + delta
	if next < 0 {
		return 0, storage.ErrInsufficientQuantity
	}
	m.inventory[key] = next
	return next, nil
}

func (m *mockRepo) GetInventoryQuantity(ctx context.Context, userID, productID string) (int, error) {
	return m.inventory[invKey(userID, productID)], nil
}

func (m *mockRepo) ListInventory(ctx context.Context, userID string) ([]storage.InventoryItem, error) {
	var out []storage.InventoryItem
	for _, p := range m.products {
		key := invKey(userID, p.ProductID)
		if q, ok := m.inventory[key]; ok {
			out = append(out, storage.InventoryItem{UserID: userID, ProductID: p.ProductID, Quantity: q})
		}
	}
	return out, nil
}

var _ storage.Repository = (*mockRepo)(nil)

func failureOutcome(kind chain.Kind, msg string) chain.Outcome {
	return chain.Outcome{Failure: &chain.Failure{Kind: kind, Message: msg}}
}

func successOutcome(hash string) chain.Outcome {
	return chain.Outcome{TxHash: hash}
}

func (m *mockRepo) String() string { return fmt.Sprintf("mockrepo(%d products)", len(m.products)) }
