package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    full_name     TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('super_admin', 'admin', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS offices (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL,
    type        TEXT NOT NULL CHECK (type IN ('top_level', 'faculty', 'department', 'institute', 'section', 'office')),
    code        TEXT NOT NULL UNIQUE,
    parent_id   INTEGER REFERENCES offices(id),
    description TEXT NOT NULL DEFAULT '',
    order_index INTEGER NOT NULL DEFAULT 0,
    is_active   INTEGER NOT NULL DEFAULT 1,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS designations (
    id               INTEGER PRIMARY KEY,
    user_id          INTEGER NOT NULL REFERENCES users(id),
    office_id        INTEGER NOT NULL REFERENCES offices(id),
    title            TEXT NOT NULL,
    purchasing_power INTEGER NOT NULL DEFAULT 0,
    is_primary       INTEGER NOT NULL DEFAULT 0,
    is_active        INTEGER NOT NULL DEFAULT 1,
    assigned_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS employees (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    office_id  INTEGER REFERENCES offices(id),
    is_active  INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
    id          INTEGER PRIMARY KEY,
    code        TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    unit        TEXT NOT NULL DEFAULT '',
    quantity    INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    is_active   INTEGER NOT NULL DEFAULT 1,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS purchases (
    id             INTEGER PRIMARY KEY,
    vendor_name    TEXT NOT NULL DEFAULT '',
    vendor_contact TEXT NOT NULL DEFAULT '',
    purchase_date  DATETIME NOT NULL,
    invoice_number TEXT NOT NULL DEFAULT '',
    total_price    TEXT NOT NULL DEFAULT '0',
    remarks        TEXT NOT NULL DEFAULT '',
    office_id      INTEGER NOT NULL REFERENCES offices(id),
    purchased_by   INTEGER NOT NULL REFERENCES users(id),
    is_active      INTEGER NOT NULL DEFAULT 1,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS purchase_items (
    id          INTEGER PRIMARY KEY,
    purchase_id INTEGER NOT NULL REFERENCES purchases(id) ON DELETE CASCADE,
    item_id     INTEGER NOT NULL REFERENCES items(id),
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    unit_price  TEXT NOT NULL,
    total_price TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS office_inventory (
    office_id  INTEGER NOT NULL REFERENCES offices(id),
    item_id    INTEGER NOT NULL REFERENCES items(id),
    quantity   INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (office_id, item_id)
);

CREATE TABLE IF NOT EXISTS item_distributions (
    id             INTEGER PRIMARY KEY,
    item_id        INTEGER NOT NULL REFERENCES items(id),
    office_id      INTEGER NOT NULL REFERENCES offices(id),
    from_office_id INTEGER REFERENCES offices(id),
    to_office_id   INTEGER NOT NULL REFERENCES offices(id),
    employee_id    INTEGER REFERENCES employees(id),
    user_id        INTEGER REFERENCES users(id),
    quantity       INTEGER NOT NULL CHECK (quantity > 0),
    status         TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED')),
    transfer_type  TEXT NOT NULL CHECK (transfer_type IN ('ALLOCATION', 'TRANSFER', 'MOVEMENT', 'RETURN')),
    distributed_at DATETIME,
    remarks        TEXT NOT NULL DEFAULT '',
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS item_instances (
    id                       INTEGER PRIMARY KEY,
    item_id                  INTEGER NOT NULL REFERENCES items(id),
    purchase_id              INTEGER REFERENCES purchases(id),
    barcode                  TEXT NOT NULL UNIQUE,
    unit_price               TEXT NOT NULL DEFAULT '0',
    status                   TEXT NOT NULL DEFAULT 'IN_STOCK' CHECK (status IN ('IN_STOCK', 'DISTRIBUTED', 'DAMAGED', 'LOST')),
    distributed_to_office_id INTEGER REFERENCES offices(id),
    distributed_at           DATETIME,
    owner_id                 INTEGER REFERENCES users(id),
    distribution_id          INTEGER REFERENCES item_distributions(id) ON DELETE SET NULL,
    remarks                  TEXT NOT NULL DEFAULT '',
    created_at               DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS office_item_transactions (
    id               INTEGER PRIMARY KEY,
    item_id          INTEGER NOT NULL REFERENCES items(id),
    from_office_id   INTEGER NOT NULL REFERENCES offices(id),
    to_office_id     INTEGER NOT NULL REFERENCES offices(id),
    transaction_type TEXT NOT NULL CHECK (transaction_type IN ('DISTRIBUTION', 'RETURN', 'PURCHASE', 'ADJUSTMENT')),
    quantity         INTEGER NOT NULL CHECK (quantity <> 0),
    initiated_by     INTEGER NOT NULL REFERENCES users(id),
    approved_by      INTEGER REFERENCES users(id),
    status           TEXT NOT NULL CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED', 'COMPLETED', 'CANCELLED')),
    transaction_date DATETIME NOT NULL,
    approved_date    DATETIME,
    remarks          TEXT NOT NULL DEFAULT '',
    rejection_reason TEXT NOT NULL DEFAULT '',
    reference_number TEXT NOT NULL UNIQUE,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies the migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
