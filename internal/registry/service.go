package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pvzzle/tracechain/internal/chain"
	"github.com/pvzzle/tracechain/internal/storage"
)

const defaultTraceLocation = "Vietnam"

const (
	stageExported = "Exported"
	stageImported = "Imported"
)

// TxSubmitter is the one integration point toward the chain write
// path. chain.Submitter implements it; tests substitute a mock.
type TxSubmitter interface {
	Do(ctx context.Context, op chain.Op, args ...string) chain.Outcome
}

// ChainReader is the read side, used by verification.
type ChainReader interface {
	GetProduct(ctx context.Context, productID string) (*chain.ProductState, error)
}

// Service is the reconciliation layer: every business write goes chain
// first, then store, and the store status tag is decided from the
// transaction outcome. A nil submitter/reader means degraded mode: the
// chain leg is skipped entirely and the store-backed business logic
// keeps working.
type Service struct {
	repo      storage.Repository
	submitter TxSubmitter
	reader    ChainReader
}

func NewService(repo storage.Repository, boot *chain.Bootstrap) *Service {
	s := &Service{repo: repo}
	if boot.Ready() {
		c := boot.Client()
		s.submitter = chain.NewSubmitter(c)
		s.reader = c
	}
	return s
}

type CreateProductInput struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Batch       string `json:"batch"`
	Quantity    int    `json:"quantity"`
	Price       int    `json:"price"`
}

type CreateProductResult struct {
	Message string                `json:"message"`
	Product storage.ProductRecord `json:"product"`
}

// CreateProduct registers a product on chain and persists it. The
// business operation never fails because of the chain leg: a failed or
// skipped registration still creates the store record, with the status
// tag naming the degraded state.
func (s *Service) CreateProduct(ctx context.Context, user storage.UserRecord, in CreateProductInput) (CreateProductResult, error) {
	if in.Name == "" || in.Category == "" || in.Batch == "" {
		return CreateProductResult{}, fmt.Errorf("product name, category and batch are required")
	}
	if in.Quantity < 0 {
		return CreateProductResult{}, fmt.Errorf("quantity must not be negative")
	}

	productID := uuid.NewString()
	manufacturer := user.DisplayName()

	status := storage.StatusPending
	var txHash *string

	if s.submitter == nil {
		slog.Warn("blockchain not initialized, creating product without registration", "product_id", productID)
		status = storage.StatusNotRegistered
	} else {
		out := s.submitter.Do(ctx, chain.OpRegisterProduct, productID, in.Name, in.Batch, manufacturer)
		if out.OK() {
			status = storage.StatusRegistered
			txHash = &out.TxHash
			slog.Info("product registered on blockchain", "product_id", productID, "tx", out.TxHash)
		} else {
			status = storage.StatusFailed
			slog.Error("blockchain registration failed, continuing with store-only product",
				"product_id", productID, "kind", out.Failure.Kind, "err", out.Failure.Message)
		}
	}

	now := time.Now().UTC()
	record := storage.ProductRecord{
		ProductID:        productID,
		Name:             in.Name,
		Category:         in.Category,
		Description:      in.Description,
		Batch:            in.Batch,
		Quantity:         in.Quantity,
		Price:            in.Price,
		Manufacturer:     manufacturer,
		ManufacturerID:   user.UserID,
		BlockchainTxHash: txHash,
		BlockchainStatus: status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.InsertProduct(ctx, record); err != nil {
		return CreateProductResult{}, fmt.Errorf("insert product: %w", err)
	}

	if _, err := s.repo.AdjustInventory(ctx, user.UserID, productID, in.Quantity); err != nil {
		slog.Error("initial inventory write failed", "product_id", productID, "err", err)
	}

	message := "product created and registered on blockchain"
	if txHash == nil {
		message = fmt.Sprintf("product created (blockchain status: %s)", status)
	}

	return CreateProductResult{Message: message, Product: record}, nil
}

type UpdateStatusResult struct {
	Message          string `json:"message"`
	BlockchainTxHash string `json:"blockchainTxHash"`
}

// UpdateProductStatus mirrors a chain-confirmed status transition into
// the store. Unlike creation, a chain failure aborts the store write:
// the product's chain status field tracks confirmed transitions only.
func (s *Service) UpdateProductStatus(ctx context.Context, productID, newStatus string) (UpdateStatusResult, error) {
	if productID == "" || newStatus == "" {
		return UpdateStatusResult{}, fmt.Errorf("product id and status are required")
	}
	if s.submitter == nil {
		return UpdateStatusResult{}, fmt.Errorf("blockchain unavailable, status update not possible")
	}

	out := s.submitter.Do(ctx, chain.OpUpdateStatus, productID, newStatus)
	if !out.OK() {
		return UpdateStatusResult{}, fmt.Errorf("update product status: %w", out.Failure)
	}

	if err := s.repo.UpdateProductChainStatus(ctx, productID, newStatus, out.TxHash); err != nil {
		return UpdateStatusResult{}, fmt.Errorf("store status update: %w", err)
	}

	return UpdateStatusResult{
		Message:          "product status updated on blockchain",
		BlockchainTxHash: out.TxHash,
	}, nil
}

type CreateOrderInput struct {
	Type          storage.OrderType `json:"type"`
	ProductID     string            `json:"productId"`
	Quantity      int               `json:"quantity"`
	RecipientID   string            `json:"recipientId"`
	RecipientName string            `json:"recipientName"`
	SupplierName  string            `json:"supplierName"`
	CustomerInfo  string            `json:"customerInfo"`
	Notes         string            `json:"notes"`
}

type CreateOrderResult struct {
	Message string              `json:"message"`
	Order   storage.OrderRecord `json:"order"`
}

func (s *Service) CreateOrder(ctx context.Context, user storage.UserRecord, in CreateOrderInput) (CreateOrderResult, error) {
	if in.ProductID == "" || in.Quantity <= 0 {
		return CreateOrderResult{}, fmt.Errorf("product id and a positive quantity are required")
	}
	switch in.Type {
	case storage.OrderExport, storage.OrderImport, storage.OrderSale:
	default:
		return CreateOrderResult{}, fmt.Errorf("unknown order type %q", in.Type)
	}

	product, err := s.repo.GetProduct(ctx, in.ProductID)
	if err != nil {
		return CreateOrderResult{}, fmt.Errorf("product lookup: %w", err)
	}

	if in.Type == storage.OrderSale {
		have, err := s.repo.GetInventoryQuantity(ctx, user.UserID, in.ProductID)
		if err != nil {
			return CreateOrderResult{}, fmt.Errorf("inventory lookup: %w", err)
		}
		if have < in.Quantity {
			return CreateOrderResult{}, fmt.Errorf("insufficient inventory: available %d, requested %d", have, in.Quantity)
		}
	}

	now := time.Now().UTC()
	order := storage.OrderRecord{
		OrderID:       uuid.NewString(),
		Type:          in.Type,
		ProductID:     in.ProductID,
		ProductName:   product.Name,
		Quantity:      in.Quantity,
		Status:        "pending",
		CreatedBy:     user.UserID,
		CreatedByName: user.DisplayName(),
		Notes:         in.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	switch in.Type {
	case storage.OrderExport:
		order.RecipientID = in.RecipientID
		order.RecipientName = firstNonEmpty(in.RecipientName, in.RecipientID)
	case storage.OrderImport:
		order.SupplierID = in.RecipientID
		order.SupplierName = firstNonEmpty(in.SupplierName, in.RecipientID)
	case storage.OrderSale:
		order.CustomerInfo = firstNonEmpty(in.CustomerInfo, in.RecipientID)
	}

	if err := s.repo.InsertOrder(ctx, order); err != nil {
		return CreateOrderResult{}, fmt.Errorf("insert order: %w", err)
	}

	return CreateOrderResult{Message: "order created", Order: order}, nil
}

type OrderStatusResult struct {
	Message          string  `json:"message"`
	TraceRecordAdded bool    `json:"traceRecordAdded"`
	BlockchainTxHash *string `json:"blockchainTxHash"`
}

// UpdateOrderStatus moves an order through its lifecycle. Completion
// of export/import orders moves inventory and appends a trace record;
// the on-chain trace append is best-effort and its failure is
// swallowed: completing an order must never fail because the chain is
// unavailable.
func (s *Service) UpdateOrderStatus(ctx context.Context, user storage.UserRecord, orderID, status string) (OrderStatusResult, error) {
	if status != "completed" {
		if err := s.repo.SetOrderStatus(ctx, user.UserID, orderID, status, false); err != nil {
			return OrderStatusResult{}, fmt.Errorf("order status update: %w", err)
		}
		return OrderStatusResult{Message: "order status updated"}, nil
	}

	order, err := s.repo.GetOrder(ctx, user.UserID, orderID)
	if err != nil {
		return OrderStatusResult{}, fmt.Errorf("order lookup: %w", err)
	}

	var txHash *string

	switch order.Type {
	case storage.OrderExport:
		if _, err := s.repo.AdjustInventory(ctx, user.UserID, order.ProductID, -order.Quantity); err != nil {
			slog.Error("inventory subtract failed on export completion", "order_id", orderID, "err", err)
		}
		txHash = s.appendTrace(ctx, order, stageExported)

	case storage.OrderImport:
		if _, err := s.repo.AdjustInventory(ctx, user.UserID, order.ProductID, order.Quantity); err != nil {
			slog.Error("inventory add failed on import completion", "order_id", orderID, "err", err)
		}
		txHash = s.appendTrace(ctx, order, stageImported)

	case storage.OrderSale:
		if _, err := s.repo.AdjustInventory(ctx, user.UserID, order.ProductID, -order.Quantity); err != nil {
			slog.Error("inventory subtract failed on sale completion", "order_id", orderID, "err", err)
		}
	}

	if err := s.repo.SetOrderStatus(ctx, user.UserID, orderID, "completed", true); err != nil {
		return OrderStatusResult{}, fmt.Errorf("order completion: %w", err)
	}

	return OrderStatusResult{
		Message:          "order completed",
		TraceRecordAdded: txHash != nil,
		BlockchainTxHash: txHash,
	}, nil
}

// appendTrace writes the store-side trace record and, when the chain
// is available, mirrors it on chain first. A chain failure leaves the
// record with a nil hash; partial on-chain coverage of history is
// expected.
func (s *Service) appendTrace(ctx context.Context, order storage.OrderRecord, stage string) *string {
	var txHash *string

	if s.submitter != nil {
		out := s.submitter.Do(ctx, chain.OpAddTraceRecord,
			order.ProductID, stage, order.CreatedByName, defaultTraceLocation)
		if out.OK() {
			txHash = &out.TxHash
		} else {
			slog.Error("on-chain trace append failed, keeping store record only",
				"product_id", order.ProductID, "stage", stage,
				"kind", out.Failure.Kind, "err", out.Failure.Message)
		}
	}

	record := storage.TraceRecord{
		TraceID:          uuid.NewString(),
		ProductID:        order.ProductID,
		Stage:            stage,
		CompanyName:      order.CreatedByName,
		Location:         defaultTraceLocation,
		BlockchainTxHash: txHash,
		Quantity:         order.Quantity,
		OrderID:          order.OrderID,
		Timestamp:        time.Now().UTC(),
	}

	if err := s.repo.AppendTrace(ctx, record); err != nil {
		slog.Error("trace record store write failed", "product_id", order.ProductID, "err", err)
	}
	return txHash
}

// GetOrCreateUser returns the stored profile or creates a default
// consumer profile on first sight of a new subject.
func (s *Service) GetOrCreateUser(ctx context.Context, userID string) (storage.UserRecord, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.UserRecord{}, err
	}

	short := userID
	if len(short) > 8 {
		short = short[:8]
	}
	now := time.Now().UTC()
	u = storage.UserRecord{
		UserID:    userID,
		Username:  "user_" + short,
		Role:      storage.RoleConsumer,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.UpsertUser(ctx, u); err != nil {
		return storage.UserRecord{}, fmt.Errorf("create default profile: %w", err)
	}
	return u, nil
}

func (s *Service) UpdateUserRole(ctx context.Context, userID string, role storage.Role) error {
	if !storage.ValidRole(role) {
		return fmt.Errorf("invalid role %q", role)
	}
	return s.repo.UpdateUserRole(ctx, userID, role)
}

type CompanyInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Products int    `json:"products"`
	Email    string `json:"email"`
}

func (s *Service) ListManufacturers(ctx context.Context) ([]CompanyInfo, error) {
	users, err := s.repo.ListUsersByRole(ctx, storage.RoleManufacturer)
	if err != nil {
		return nil, err
	}

	out := make([]CompanyInfo, 0, len(users))
	for _, u := range users {
		count, err := s.repo.CountProductsByManufacturer(ctx, u.UserID)
		if err != nil {
			slog.Warn("product count failed for manufacturer", "user_id", u.UserID, "err", err)
		}
		out = append(out, CompanyInfo{
			ID:       u.UserID,
			Name:     u.DisplayName(),
			Location: u.Location,
			Products: count,
			Email:    u.Email,
		})
	}
	return out, nil
}

func (s *Service) ListRetailers(ctx context.Context) ([]CompanyInfo, error) {
	users, err := s.repo.ListUsersByRole(ctx, storage.RoleRetailer)
	if err != nil {
		return nil, err
	}

	out := make([]CompanyInfo, 0, len(users))
	for _, u := range users {
		out = append(out, CompanyInfo{
			ID:       u.UserID,
			Name:     u.DisplayName(),
			Location: u.Location,
			Email:    u.Email,
		})
	}
	return out, nil
}

// ListProducts returns either the manufacturer's own products or the
// whole catalog. Retailers see their own inventory quantity instead of
// the manufacturer's.
func (s *Service) ListProducts(ctx context.Context, user storage.UserRecord, scope string) ([]storage.ProductRecord, error) {
	var (
		products []storage.ProductRecord
		err      error
	)
	if scope == "personal" && user.Role == storage.RoleManufacturer {
		products, err = s.repo.ListProductsByManufacturer(ctx, user.UserID)
	} else {
		products, err = s.repo.ListProducts(ctx)
	}
	if err != nil {
		return nil, err
	}

	if user.Role == storage.RoleRetailer {
		for i := range products {
			if products[i].ManufacturerID == user.UserID {
				continue
			}
			q, err := s.repo.GetInventoryQuantity(ctx, user.UserID, products[i].ProductID)
			if err != nil {
				return nil, err
			}
			products[i].Quantity = q
		}
	}
	return products, nil
}

type ProductView struct {
	storage.ProductRecord
	BlockchainData     *chain.ProductState `json:"blockchainData"`
	BlockchainVerified bool                `json:"blockchainVerified"`
}

// GetProduct returns the store record cross-checked against the chain.
// A chain read failure only clears the verified flag; the store data
// still renders.
func (s *Service) GetProduct(ctx context.Context, user storage.UserRecord, productID string) (ProductView, error) {
	record, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return ProductView{}, err
	}

	if user.Role == storage.RoleRetailer && record.ManufacturerID != user.UserID {
		q, err := s.repo.GetInventoryQuantity(ctx, user.UserID, productID)
		if err == nil {
			record.Quantity = q
		}
	}

	view := ProductView{ProductRecord: record}
	if s.reader != nil {
		state, err := s.reader.GetProduct(ctx, productID)
		if err != nil {
			slog.Warn("chain cross-check failed", "product_id", productID, "err", err)
		} else if state != nil {
			view.BlockchainData = state
			view.BlockchainVerified = true
		}
	}
	return view, nil
}

func (s *Service) DeleteProduct(ctx context.Context, user storage.UserRecord, productID string) error {
	return s.repo.DeleteProduct(ctx, productID, user.UserID)
}

func (s *Service) ListOrders(ctx context.Context, user storage.UserRecord) ([]storage.OrderRecord, error) {
	return s.repo.ListOrdersByUser(ctx, user.UserID)
}

type InventoryView struct {
	storage.InventoryItem
	ProductName  string `json:"productName"`
	Category     string `json:"category"`
	Manufacturer string `json:"manufacturer"`
}

type InventorySummary struct {
	Inventory     []InventoryView `json:"inventory"`
	TotalItems    int             `json:"totalItems"`
	TotalQuantity int             `json:"totalQuantity"`
}

func (s *Service) GetInventory(ctx context.Context, user storage.UserRecord) (InventorySummary, error) {
	items, err := s.repo.ListInventory(ctx, user.UserID)
	if err != nil {
		return InventorySummary{}, err
	}

	summary := InventorySummary{Inventory: make([]InventoryView, 0, len(items))}
	for _, it := range items {
		view := InventoryView{InventoryItem: it, ProductName: "Unknown Product"}
		if p, err := s.repo.GetProduct(ctx, it.ProductID); err == nil {
			view.ProductName = p.Name
			view.Category = p.Category
			view.Manufacturer = p.Manufacturer
		}
		summary.Inventory = append(summary.Inventory, view)
		summary.TotalItems++
		summary.TotalQuantity += it.Quantity
	}
	return summary, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
