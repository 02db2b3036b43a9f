package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pvzzle/tracechain/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const checkViolation = "23514"

type Postgres struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

func (r *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS users (
  user_id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  email    TEXT NOT NULL DEFAULT '',
  name     TEXT NOT NULL DEFAULT '',
  role     TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS users_role_idx ON users(role);

CREATE TABLE IF NOT EXISTS products (
  product_id TEXT PRIMARY KEY,
  name        TEXT NOT NULL,
  category    TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  batch       TEXT NOT NULL,
  quantity INT NOT NULL DEFAULT 0,
  price    INT NOT NULL DEFAULT 0,
  manufacturer    TEXT NOT NULL,
  manufacturer_id TEXT NOT NULL,

  blockchain_tx_hash      TEXT NULL,
  blockchain_status       TEXT NOT NULL,
  last_blockchain_tx_hash TEXT NULL,

  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS products_manufacturer_idx ON products(manufacturer_id);

CREATE TABLE IF NOT EXISTS orders (
  order_id   TEXT PRIMARY KEY,
  order_type TEXT NOT NULL, -- export|import|sale
  product_id   TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INT NOT NULL,
  status   TEXT NOT NULL,
  created_by      TEXT NOT NULL,
  created_by_name TEXT NOT NULL,
  recipient_id   TEXT NOT NULL DEFAULT '',
  recipient_name TEXT NOT NULL DEFAULT '',
  supplier_id    TEXT NOT NULL DEFAULT '',
  supplier_name  TEXT NOT NULL DEFAULT '',
  customer_info  TEXT NOT NULL DEFAULT '',
  notes          TEXT NOT NULL DEFAULT '',
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  completed_at TIMESTAMPTZ NULL
);

CREATE INDEX IF NOT EXISTS orders_user_created_idx ON orders(created_by, created_at DESC);

CREATE TABLE IF NOT EXISTS trace_records (
  trace_id   TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  stage        TEXT NOT NULL,
  company_name TEXT NOT NULL,
  location     TEXT NOT NULL DEFAULT '',
  blockchain_tx_hash TEXT NULL,
  quantity INT NOT NULL DEFAULT 0,
  order_id TEXT NOT NULL DEFAULT '',
  ts TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS trace_records_product_ts_idx ON trace_records(product_id, ts);

CREATE TABLE IF NOT EXISTS inventory (
  user_id    TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INT NOT NULL CHECK (quantity >= 0),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (user_id, product_id)
);
`
	_, err := r.pool.Exec(ctx, ddl)
	return err
}

func (r *Postgres) UpsertUser(ctx context.Context, u storage.UserRecord) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	q := `
INSERT INTO users(user_id, username, email, name, role, location)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT(user_id) DO UPDATE SET
  username = EXCLUDED.username,
  email    = EXCLUDED.email,
  name     = EXCLUDED.name,
  role     = EXCLUDED.role,
  location = EXCLUDED.location,
  updated_at = now()
`
	_, err := r.pool.Exec(cctx, q, u.UserID, u.Username, u.Email, u.Name, string(u.Role), u.Location)
	return err
}

func (r *Postgres) GetUser(ctx context.Context, userID string) (storage.UserRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	q := `
SELECT user_id, username, email, name, role, location, created_at, updated_at
FROM users WHERE user_id = $1
`
	var u storage.UserRecord
	var role string
	err := r.pool.QueryRow(cctx, q, userID).Scan(
		&u.UserID, &u.Username, &u.Email, &u.Name, &role, &u.Location, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.UserRecord{}, err
	}
	u.Role = storage.Role(role)
	return u, nil
}

func (r *Postgres) UpdateUserRole(ctx context.Context, userID string, role storage.Role) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(cctx,
		`UPDATE users SET role = $2, updated_at = now() WHERE user_id = $1`,
		userID, string(role),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Postgres) ListUsersByRole(ctx context.Context, role storage.Role) ([]storage.UserRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	q := `
SELECT user_id, username, email, name, role, location, created_at, updated_at
FROM users WHERE role = $1 ORDER BY username
`
	rows, err := r.pool.Query(cctx, q, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.UserRecord
	for rows.Next() {
		var u storage.UserRecord
		var rl string
		if err := rows.Scan(&u.UserID, &u.Username, &u.Email, &u.Name, &rl, &u.Location, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Role = storage.Role(rl)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Postgres) CountProductsByManufacturer(ctx context.Context, userID string) (int, error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var n int
	err := r.pool.QueryRow(cctx,
		`SELECT count(*) FROM products WHERE manufacturer_id = $1`, userID,
	).Scan(&n)
	return n, err
}

func (r *Postgres) InsertProduct(ctx context.Context, p storage.ProductRecord) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	q := `
INSERT INTO products(
  product_id, name, category, description, batch,
  quantity, price, manufacturer, manufacturer_id,
  blockchain_tx_hash, blockchain_status, last_blockchain_tx_hash
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`
	_, err := r.pool.Exec(cctx, q,
		p.ProductID, p.Name, p.Category, p.Description, p.Batch,
		p.Quantity, p.Price, p.Manufacturer, p.ManufacturerID,
		p.BlockchainTxHash, string(p.BlockchainStatus), p.LastBlockchainTxHash,
	)
	return err
}

const productColumns = `
  product_id, name, category, description, batch,
  quantity, price, manufacturer, manufacturer_id,
  blockchain_tx_hash, blockchain_status, last_blockchain_tx_hash,
  created_at, updated_at`

func scanProduct(row pgx.Row) (storage.ProductRecord, error) {
	var p storage.ProductRecord
	var status string
	err := row.Scan(
		&p.ProductID, &p.Name, &p.Category, &p.Description, &p.Batch,
		&p.Quantity, &p.Price, &p.Manufacturer, &p.ManufacturerID,
		&p.BlockchainTxHash, &status, &p.LastBlockchainTxHash,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return storage.ProductRecord{}, err
	}
	p.BlockchainStatus = storage.BlockchainStatus(status)
	return p, nil
}

func (r *Postgres) GetProduct(ctx context.Context, productID string) (storage.ProductRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	row := r.pool.QueryRow(cctx,
		`SELECT`+productColumns+` FROM products WHERE product_id = $1`, productID)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ProductRecord{}, storage.ErrNotFound
	}
	return p, err
}

func (r *Postgres) listProducts(ctx context.Context, q string, args ...any) ([]storage.ProductRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(cctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.ProductRecord
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Postgres) ListProducts(ctx context.Context) ([]storage.ProductRecord, error) {
	return r.listProducts(ctx,
		`SELECT`+productColumns+` FROM products ORDER BY created_at DESC`)
}

func (r *Postgres) ListProductsByManufacturer(ctx context.Context, userID string) ([]storage.ProductRecord, error) {
	return r.listProducts(ctx,
		`SELECT`+productColumns+` FROM products WHERE manufacturer_id = $1 ORDER BY created_at DESC`,
		userID)
}

func (r *Postgres) UpdateProductChainStatus(ctx context.Context, productID, status, lastTxHash string) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(cctx, `
UPDATE products SET
  blockchain_status = $2,
  last_blockchain_tx_hash = $3,
  updated_at = now()
WHERE product_id = $1
`, productID, status, lastTxHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Postgres) DeleteProduct(ctx context.Context, productID, manufacturerID string) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(cctx,
		`DELETE FROM products WHERE product_id = $1 AND manufacturer_id = $2`,
		productID, manufacturerID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Postgres) InsertOrder(ctx context.Context, o storage.OrderRecord) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	q := `
INSERT INTO orders(
  order_id, order_type, product_id, product_name, quantity, status,
  created_by, created_by_name,
  recipient_id, recipient_name, supplier_id, supplier_name, customer_info, notes
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`
	_, err := r.pool.Exec(cctx, q,
		o.OrderID, string(o.Type), o.ProductID, o.ProductName, o.Quantity, o.Status,
		o.CreatedBy, o.CreatedByName,
		o.RecipientID, o.RecipientName, o.SupplierID, o.SupplierName, o.CustomerInfo, o.Notes,
	)
	return err
}

const orderColumns = `
  order_id, order_type, product_id, product_name, quantity, status,
  created_by, created_by_name,
  recipient_id, recipient_name, supplier_id, supplier_name, customer_info, notes,
  created_at, updated_at, completed_at`

func scanOrder(row pgx.Row) (storage.OrderRecord, error) {
	var o storage.OrderRecord
	var typ string
	err := row.Scan(
		&o.OrderID, &typ, &o.ProductID, &o.ProductName, &o.Quantity, &o.Status,
		&o.CreatedBy, &o.CreatedByName,
		&o.RecipientID, &o.RecipientName, &o.SupplierID, &o.SupplierName, &o.CustomerInfo, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt, &o.CompletedAt,
	)
	if err != nil {
		return storage.OrderRecord{}, err
	}
	o.Type = storage.OrderType(typ)
	return o, nil
}

func (r *Postgres) GetOrder(ctx context.Context, userID, orderID string) (storage.OrderRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	row := r.pool.QueryRow(cctx,
		`SELECT`+orderColumns+` FROM orders WHERE order_id = $1 AND created_by = $2`,
		orderID, userID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.OrderRecord{}, storage.ErrNotFound
	}
	return o, err
}

func (r *Postgres) ListOrdersByUser(ctx context.Context, userID string) ([]storage.OrderRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(cctx,
		`SELECT`+orderColumns+` FROM orders WHERE created_by = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.OrderRecord
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Postgres) SetOrderStatus(ctx context.Context, userID, orderID, status string, completed bool) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	q := `UPDATE orders SET status = $3, updated_at = now() WHERE order_id = $1 AND created_by = $2`
	if completed {
		q = `UPDATE orders SET status = $3, updated_at = now(), completed_at = now() WHERE order_id = $1 AND created_by = $2`
	}

	tag, err := r.pool.Exec(cctx, q, orderID, userID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Postgres) AppendTrace(ctx context.Context, t storage.TraceRecord) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	q := `
INSERT INTO trace_records(
  trace_id, product_id, stage, company_name, location,
  blockchain_tx_hash, quantity, order_id, ts
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	_, err := r.pool.Exec(cctx, q,
		t.TraceID, t.ProductID, t.Stage, t.CompanyName, t.Location,
		t.BlockchainTxHash, t.Quantity, t.OrderID, t.Timestamp,
	)
	return err
}

func (r *Postgres) ListTrace(ctx context.Context, productID string) ([]storage.TraceRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	q := `
SELECT trace_id, product_id, stage, company_name, location,
       blockchain_tx_hash, quantity, order_id, ts
FROM trace_records WHERE product_id = $1 ORDER BY ts ASC
`
	rows, err := r.pool.Query(cctx, q, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.TraceRecord
	for rows.Next() {
		var t storage.TraceRecord
		if err := rows.Scan(
			&t.TraceID, &t.ProductID, &t.Stage, &t.CompanyName, &t.Location,
			&t.BlockchainTxHash, &t.Quantity, &t.OrderID, &t.Timestamp,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Postgres) AdjustInventory(ctx context.Context, userID, productID string, delta int) (int, error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	q := `
INSERT INTO inventory(user_id, product_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT(user_id, product_id) DO UPDATE SET
  quantity = inventory.quantity + EXCLUDED.quantity,
  updated_at = now()
RETURNING quantity
`
	var quantity int
	err := r.pool.QueryRow(cctx, q, userID, productID, delta).Scan(&quantity)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
			return 0, storage.ErrInsufficientQuantity
		}
		return 0, err
	}
	return quantity, nil
}

func (r *Postgres) GetInventoryQuantity(ctx context.Context, userID, productID string) (int, error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var quantity int
	err := r.pool.QueryRow(cctx,
		`SELECT quantity FROM inventory WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	).Scan(&quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return quantity, err
}

func (r *Postgres) ListInventory(ctx context.Context, userID string) ([]storage.InventoryItem, error) {
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(cctx,
		`SELECT user_id, product_id, quantity, updated_at FROM inventory WHERE user_id = $1 ORDER BY product_id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.InventoryItem
	for rows.Next() {
		var it storage.InventoryItem
		if err := rows.Scan(&it.UserID, &it.ProductID, &it.Quantity, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Postgres) String() string { return fmt.Sprintf("pgrepo(%p)", r.pool) }
