package database

import (
	"fmt"

	"github.com/gocql/gocql"
)

// Keyspaces are provisioned by the operator with their roles; the tables
// inside them are created here when missing.

var productsTables = []string{
	`CREATE TABLE IF NOT EXISTS products (
		product_id uuid PRIMARY KEY,
		name text,
		price double,
		image text,
		quantity int,
		description text,
		short_description text,
		long_description text,
		created_at timestamp,
		updated_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS product_media (
		product_id uuid,
		media_id timeuuid,
		url text,
		path text,
		media_type text,
		position int,
		created_at timestamp,
		PRIMARY KEY (product_id, media_id)
	)`,
}

var ordersTables = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		order_id uuid PRIMARY KEY,
		user_id text,
		full_name text,
		phone_number text,
		address text,
		notes text,
		delivery_zone text,
		total_price double,
		status text,
		created_at timestamp,
		updated_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS orders_by_user (
		user_id text,
		created_at timestamp,
		order_id uuid,
		status text,
		total_price double,
		PRIMARY KEY (user_id, created_at, order_id)
	) WITH CLUSTERING ORDER BY (created_at DESC, order_id ASC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id uuid,
		item_id timeuuid,
		product_id uuid,
		quantity int,
		price double,
		PRIMARY KEY (order_id, item_id)
	)`,
}

var usersTables = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id uuid PRIMARY KEY,
		email text,
		name text,
		password text,
		created_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS users_by_email (
		email text PRIMARY KEY,
		user_id uuid
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id timeuuid PRIMARY KEY,
		actor text,
		action text,
		resource text,
		resource_id text,
		new_value text,
		ip_address text,
		user_agent text,
		success boolean,
		error_msg text,
		timestamp timestamp
	)`,
}

// EnsureSchema creates the tables of every keyspace when they are missing.
func (sm *ScyllaManager) EnsureSchema() error {
	steps := []struct {
		open   func() (*gocql.Session, error)
		tables []string
	}{
		{sm.ProductsSession, productsTables},
		{sm.OrdersSession, ordersTables},
		{sm.UsersSession, usersTables},
	}

	for _, step := range steps {
		session, err := step.open()
		if err != nil {
			return err
		}
		for _, stmt := range step.tables {
			if err := session.Query(stmt).Exec(); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
	}
	return nil
}
