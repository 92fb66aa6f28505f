package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestNullFloat(t *testing.T) {
	if v := nullFloat(nil); v != nil {
		t.Fatalf("nil pointer -> nil expected, got %v", v)
	}
	f := 55.75
	if v := nullFloat(&f); v != 55.75 {
		t.Fatalf("want 55.75, got %v", v)
	}
}

func TestFloatPtr(t *testing.T) {
	if p := floatPtr(sql.NullFloat64{}); p != nil {
		t.Fatalf("invalid -> nil expected")
	}
	p := floatPtr(sql.NullFloat64{Float64: 37.61, Valid: true})
	if p == nil || *p != 37.61 {
		t.Fatalf("want 37.61, got %v", p)
	}
}

func TestTimePtr(t *testing.T) {
	if timePtr(sql.NullTime{}) != nil {
		t.Fatal("invalid -> nil expected")
	}
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if p := timePtr(sql.NullTime{Time: ts, Valid: true}); p == nil || !p.Equal(ts) {
		t.Fatalf("want %v, got %v", ts, p)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(names) < 3 {
		t.Fatalf("expected at least 3 migrations, got %v", names)
	}
}

func TestForeignKeyNotFound(t *testing.T) {
	fk := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23503", ConstraintName: "menu_items_restaurant_id_fkey"})
	if err := foreignKeyNotFound(fk); !errors.Is(err, ErrNotFound) {
		t.Fatalf("fk violation should map to ErrNotFound, got %v", err)
	}
	other := &pgconn.PgError{Code: "23505"}
	if err := foreignKeyNotFound(other); err != other {
		t.Fatalf("other errors pass through, got %v", err)
	}
	if foreignKeyNotFound(nil) != nil {
		t.Fatal("nil stays nil")
	}
}
