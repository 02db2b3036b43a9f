package storage

import "time"

// BlockchainStatus is the store-side tag derived from the transaction
// outcome. "registered" implies a non-nil tx hash returned by a
// successful submission.
type BlockchainStatus string

const (
	StatusPending       BlockchainStatus = "pending"
	StatusRegistered    BlockchainStatus = "registered"
	StatusNotRegistered BlockchainStatus = "not_registered"
	StatusFailed        BlockchainStatus = "failed"
)

type Role string

const (
	RoleConsumer     Role = "consumer"
	RoleManufacturer Role = "manufacturer"
	RoleRetailer     Role = "retailer"
)

func ValidRole(r Role) bool {
	return r == RoleConsumer || r == RoleManufacturer || r == RoleRetailer
}

type OrderType string

const (
	OrderExport OrderType = "export"
	OrderImport OrderType = "import"
	OrderSale   OrderType = "sale"
)

type UserRecord struct {
	UserID    string
	Username  string
	Email     string
	Name      string
	Role      Role
	Location  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName is what goes on-chain as the manufacturer field and into
// trace records as the company name.
func (u UserRecord) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

type ProductRecord struct {
	ProductID      string
	Name           string
	Category       string
	Description    string
	Batch          string
	Quantity       int
	Price          int
	Manufacturer   string
	ManufacturerID string

	// Mutated only by the reconciliation layer after creation.
	BlockchainTxHash     *string
	BlockchainStatus     BlockchainStatus
	LastBlockchainTxHash *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderRecord struct {
	OrderID       string
	Type          OrderType
	ProductID     string
	ProductName   string
	Quantity      int
	Status        string
	CreatedBy     string
	CreatedByName string

	// Filled depending on Type: export has a recipient, import a
	// supplier, sale a free-form customer reference.
	RecipientID   string
	RecipientName string
	SupplierID    string
	SupplierName  string
	CustomerInfo  string

	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// TraceRecord is append-only. The store holds the full multi-stage
// history; the chain only ever knows the current state. Hash is nil
// when the on-chain append for that stage did not happen.
type TraceRecord struct {
	TraceID          string
	ProductID        string
	Stage            string
	CompanyName      string
	Location         string
	BlockchainTxHash *string
	Quantity         int
	OrderID          string
	Timestamp        time.Time
}

type InventoryItem struct {
	UserID    string
	ProductID string
	Quantity  int
	UpdatedAt time.Time
}
