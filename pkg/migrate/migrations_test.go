package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestOrdersMigrationEnforcesIdempotencyAndStatus(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")
	checks := []string{
		"CREATE TYPE order_status AS ENUM",
		"'pending'",
		"'refunded'",
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_payment_reference ON orders (payment_reference)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_order_number",
		"CREATE TABLE IF NOT EXISTS order_items",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS order_items",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCheckoutSessionsMigrationDeclaresStates(t *testing.T) {
	content := readMigration(t, "*_create_checkout_sessions.sql")
	for _, state := range []string{"'quoted'", "'awaiting_payment_confirmation'", "'committing'", "'committed'", "'failed'"} {
		if !strings.Contains(content, state) {
			t.Errorf("checkout_state enum missing %s", state)
		}
	}
	if !strings.Contains(content, "ux_checkout_sessions_gateway_order") {
		t.Error("gateway order id must be unique")
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Gift Cards!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_gift_cards.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	if err := migrate.ValidateFS(migrate.Embedded()); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	compiled, err := fs.Glob(migrate.Embedded(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(onDisk) != len(compiled) {
		t.Fatalf("expected %d embedded migrations, got %d", len(onDisk), len(compiled))
	}
}

func TestCreateSQLMigrationRefusesReusedName(t *testing.T) {
	dir := t.TempDir()
	if _, err := migrate.CreateSQLMigration(dir, "add_gift_cards"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "Add gift-cards"); err == nil {
		t.Fatal("expected reused name to be rejected")
	}
}

func TestValidateFSRejectsMalformedSections(t *testing.T) {
	cases := map[string]string{
		"down before up": "-- +goose Down\nDROP TABLE x;\n-- +goose Up\nCREATE TABLE x();\n",
		"unbalanced":     "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\nSELECT 1;\n",
		"missing down":   "-- +goose Up\nSELECT 1;\n",
	}
	for name, body := range cases {
		fsys := fstest.MapFS{"20261001090000_broken.sql": {Data: []byte(body)}}
		if err := migrate.ValidateFS(fsys); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	dup := fstest.MapFS{
		"20261001090000_add_index.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20261002090000_add_index.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	if err := migrate.ValidateFS(dup); err == nil {
		t.Error("expected duplicate migration name to be rejected")
	}
}
