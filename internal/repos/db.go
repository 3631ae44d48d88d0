package repos

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"gadgetshop/internal/domain"
)

const memoryDSN = ":memory:"

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, err
	}
	if dsn == memoryDSN {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	// Ensure categories and demo products exist (idempotent; safe to run every start)
	if err := seedCatalog(db); err != nil {
		return nil, err
	}
	// Ensure users exist (idempotent; safe to run every start)
	if err := seedUsers(db); err != nil {
		return nil, err
	}

	return db, nil
}

// withPragmas turns on foreign keys for every pooled connection, waits on
// locks instead of failing, and takes the write lock when a tx begins.
func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
-- Categories
CREATE TABLE IF NOT EXISTS categories(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

-- Products: shared fields of every variant, kind is the variant tag
CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL CHECK (kind IN ('notebook','smartphone','computer','monitor','tv','tablet')),
  category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE RESTRICT,
  title TEXT NOT NULL,
  description TEXT,
  image TEXT,
  price TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_kind       ON products(kind, created_at);
CREATE INDEX IF NOT EXISTS idx_products_category   ON products(category_id);
CREATE INDEX IF NOT EXISTS idx_products_title      ON products(LOWER(title));

CREATE TABLE IF NOT EXISTS notebooks(
  product_id TEXT PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
  diagonal TEXT NOT NULL DEFAULT '',
  display_type TEXT NOT NULL DEFAULT '',
  processor_freq TEXT NOT NULL DEFAULT '',
  ram TEXT NOT NULL DEFAULT '',
  video TEXT NOT NULL DEFAULT '',
  time_without_charge TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS smartphones(
  product_id TEXT PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
  diagonal TEXT NOT NULL DEFAULT '',
  display_type TEXT NOT NULL DEFAULT '',
  resolution TEXT NOT NULL DEFAULT '',
  accum_volume TEXT NOT NULL DEFAULT '',
  ram TEXT NOT NULL DEFAULT '',
  sd INTEGER NOT NULL DEFAULT 1,
  sd_volume_max TEXT NOT NULL DEFAULT '',
  main_cam_mp TEXT NOT NULL DEFAULT '',
  front_cam_mp TEXT NOT NULL DEFAULT ''
);

-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('USER','ADMIN')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- same value as the 'sid' cookie
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

-- Customers: one per user, kept after the user is deleted
CREATE TABLE IF NOT EXISTS customers(
  id TEXT PRIMARY KEY,
  user_id TEXT UNIQUE REFERENCES users(id) ON DELETE SET NULL,
  phone TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT ''
);

-- Carts
CREATE TABLE IF NOT EXISTS carts(
  id TEXT PRIMARY KEY,
  owner_id TEXT NULL REFERENCES customers(id) ON DELETE CASCADE,
  for_anonymous INTEGER NOT NULL DEFAULT 0,
  total_products INTEGER NOT NULL DEFAULT 0,
  final_price TEXT NOT NULL DEFAULT '0',
  in_order INTEGER NOT NULL DEFAULT 0,
  updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);
-- at most one open cart per customer and one open anonymous placeholder
CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_open_owner ON carts(owner_id) WHERE in_order = 0 AND owner_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_open_anon  ON carts(for_anonymous) WHERE for_anonymous = 1 AND in_order = 0;

CREATE TABLE IF NOT EXISTS cart_products(
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
  customer_id TEXT NULL REFERENCES customers(id) ON DELETE SET NULL,
  product_kind TEXT NOT NULL,
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
  qty INTEGER NOT NULL DEFAULT 1 CHECK (qty >= 1),
  final_price TEXT NOT NULL,
  UNIQUE (cart_id, product_kind, product_id)
);
CREATE INDEX IF NOT EXISTS idx_cart_products_cart ON cart_products(cart_id);

-- Orders
CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  cart_id TEXT NULL REFERENCES carts(id) ON DELETE SET NULL,
  customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE RESTRICT,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  phone TEXT NOT NULL,
  address TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'new' CHECK (status IN ('new','in_progress','ready','completed','paid')),
  fulfillment TEXT NOT NULL DEFAULT 'pickup' CHECK (fulfillment IN ('pickup','delivery')),
  comment TEXT NOT NULL DEFAULT '',
  total TEXT NOT NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  order_date TEXT NOT NULL,
  payment_intent_id TEXT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_cart ON orders(cart_id) WHERE cart_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id, created_at);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

-- Category features
CREATE TABLE IF NOT EXISTS category_features(
  id TEXT PRIMARY KEY,
  category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
  feature_name TEXT NOT NULL,
  filter_name TEXT NOT NULL,
  unit TEXT NOT NULL DEFAULT '',
  UNIQUE (category_id, feature_name, filter_name)
);

CREATE TABLE IF NOT EXISTS feature_validators(
  id TEXT PRIMARY KEY,
  feature_id TEXT NOT NULL REFERENCES category_features(id) ON DELETE CASCADE,
  value TEXT NOT NULL,
  UNIQUE (feature_id, value)
);

CREATE TABLE IF NOT EXISTS product_features(
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  feature_id TEXT NOT NULL REFERENCES category_features(id) ON DELETE CASCADE,
  value TEXT NOT NULL,
  PRIMARY KEY (product_id, feature_id)
);
`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	// databases created before online payments lack the intent column
	var hasIntent int
	if err := db.Get(&hasIntent, `SELECT COUNT(*) FROM pragma_table_info('orders') WHERE name = 'payment_intent_id'`); err != nil {
		return err
	}
	if hasIntent == 0 {
		if _, err := db.Exec(`ALTER TABLE orders ADD COLUMN payment_intent_id TEXT NULL`); err != nil {
			return err
		}
	}
	// one order per gateway payment
	_, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_payment_intent ON orders(payment_intent_id) WHERE payment_intent_id IS NOT NULL`)
	return err
}

// seedCatalog inserts the base categories and two demo products if they don't already exist.
// Safe to run on every startup (idempotent).
func seedCatalog(db *sqlx.DB) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO categories(id, name, slug) VALUES
		  ('cat-notebooks',   'Notebooks',   'notebooks'),
		  ('cat-smartphones', 'Smartphones', 'smartphones'),
		  ('cat-tablets',     'Tablets',     'tablets'),
		  ('cat-tvs',         'TVs',         'tvs'),
		  ('cat-monitors',    'Monitors',    'monitors'),
		  ('cat-computers',   'Computers',   'computers')
		ON CONFLICT DO NOTHING
	`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO products(id, kind, category_id, title, description, image, price, slug) VALUES
		  ('nb-honor-15', 'notebook', 'cat-notebooks', 'HONOR MagicBook 15 2021',
		   'Slim 15.6" notebook with an IPS display.', 'products/honor-magicbook-15.jpg', '2166.00', 'honor_magic_book_15_2021'),
		  ('sp-redmi-9', 'smartphone', 'cat-smartphones', 'Xiaomi Redmi 9',
		   'Budget smartphone with a large battery.', 'products/redmi-9.jpg', '500.00', 'xiaomi_redmi_9')
		ON CONFLICT DO NOTHING
	`); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO notebooks(product_id, diagonal, display_type, processor_freq, ram, video, time_without_charge)
		VALUES ('nb-honor-15', '15.6', 'IPS', '2.1 GHz', '8 GB', 'AMD Radeon', '10 h')
		ON CONFLICT DO NOTHING
	`); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO smartphones(product_id, diagonal, display_type, resolution, accum_volume, ram, sd, sd_volume_max, main_cam_mp, front_cam_mp)
		VALUES ('sp-redmi-9', '6.53', 'IPS', '2340x1080', '5020 mAh', '4 GB', 1, '512 GB', '13 MP', '8 MP')
		ON CONFLICT DO NOTHING
	`); err != nil {
		return err
	}

	return tx.Commit()
}

// seedUsers ensures one USER and one ADMIN exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, First, Last, Role, Hash string
	}
	mk := func(id, email, first, last, role, raw string) u {
		h, _ := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		return u{ID: id, Email: email, First: first, Last: last, Role: role, Hash: string(h)}
	}

	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM users`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	zap.L().Info("seed.users")

	users := []u{
		mk("u-alice", "alice@gadgetshop.test", "Alice", "Smith", domain.RoleUser, "Passw0rd!"),
		mk("u-admin", "admin@gadgetshop.test", "Admin", "", domain.RoleAdmin, "Passw0rd!"),
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,first_name,last_name,password_hash,role)
			VALUES(?,?,?,?,?,?)
			ON CONFLICT(email) DO NOTHING
		`, x.ID, x.Email, x.First, x.Last, x.Hash, x.Role); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// mapErr translates driver errors into domain sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return errors.Join(domain.ErrConflict, err)
		}
	}
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

// execer is the subset of *sqlx.DB and *sqlx.Tx the repos need.
type execer = sqlx.ExtContext

func get(ctx context.Context, q execer, dest any, query string, args ...any) error {
	return mapErr(sqlx.GetContext(ctx, q, dest, query, args...))
}

func sel(ctx context.Context, q execer, dest any, query string, args ...any) error {
	return mapErr(sqlx.SelectContext(ctx, q, dest, query, args...))
}
