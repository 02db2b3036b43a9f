package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by conditional reads/updates when the target
// record does not exist. It always surfaces as a client error, never a
// silent retry.
var ErrNotFound = errors.New("record not found")

// ErrInsufficientQuantity is returned when an inventory adjustment
// would drive a quantity below zero.
var ErrInsufficientQuantity = errors.New("insufficient inventory quantity")

type Repository interface {
	EnsureSchema(ctx context.Context) error

	UpsertUser(ctx context.Context, u UserRecord) error
	GetUser(ctx context.Context, userID string) (UserRecord, error)
	UpdateUserRole(ctx context.Context, userID string, role Role) error
	ListUsersByRole(ctx context.Context, role Role) ([]UserRecord, error)
	CountProductsByManufacturer(ctx context.Context, userID string) (int, error)

	InsertProduct(ctx context.Context, p ProductRecord) error
	GetProduct(ctx context.Context, productID string) (ProductRecord, error)
	ListProducts(ctx context.Context) ([]ProductRecord, error)
	ListProductsByManufacturer(ctx context.Context, userID string) ([]ProductRecord, error)
	// UpdateProductChainStatus mirrors a chain-confirmed transition
	// into the product row. Missing row is ErrNotFound.
	UpdateProductChainStatus(ctx context.Context, productID, status, lastTxHash string) error
	DeleteProduct(ctx context.Context, productID, manufacturerID string) error

	InsertOrder(ctx context.Context, o OrderRecord) error
	GetOrder(ctx context.Context, userID, orderID string) (OrderRecord, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]OrderRecord, error)
	// SetOrderStatus is conditional on the order existing for that
	// user. completedAt is set only on completion.
	SetOrderStatus(ctx context.Context, userID, orderID, status string, completed bool) error

	AppendTrace(ctx context.Context, t TraceRecord) error
	// ListTrace returns records for one product ordered by timestamp
	// ascending.
	ListTrace(ctx context.Context, productID string) ([]TraceRecord, error)

	// AdjustInventory adds delta (may be negative) to the per-user
	// per-product quantity, creating the row if needed. Returns the
	// new quantity or ErrInsufficientQuantity.
	AdjustInventory(ctx context.Context, userID, productID string, delta int) (int, error)
	GetInventoryQuantity(ctx context.Context, userID, productID string) (int, error)
	ListInventory(ctx context.Context, userID string) ([]InventoryItem, error)
}
