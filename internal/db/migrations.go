package db

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: at most one active primary designation per user.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_designations_primary
	     ON designations(user_id) WHERE is_primary = 1 AND is_active = 1`,

	// Migration 2: lookup indexes for the ledger and transfer queries.
	`CREATE INDEX IF NOT EXISTS idx_offices_parent ON offices(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_office_inventory_item ON office_inventory(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_instances_item_status ON item_instances(item_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_instances_office ON item_instances(distributed_to_office_id)`,
	`CREATE INDEX IF NOT EXISTS idx_instances_distribution ON item_instances(distribution_id)`,
	`CREATE INDEX IF NOT EXISTS idx_distributions_to ON item_distributions(to_office_id)`,
	`CREATE INDEX IF NOT EXISTS idx_distributions_from ON item_distributions(from_office_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_from ON office_item_transactions(from_office_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_to ON office_item_transactions(to_office_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_date ON office_item_transactions(transaction_date)`,
}
