package repo

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "no-such-dir", "zerohunger.db")
	if db, err := OpenSQLite(bad); err == nil || db != nil {
		t.Fatalf("expected error, got db=%v err=%v", db, err)
	}
}

func TestOpenSQLite_PragmasPoolAndSchema(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "zerohunger.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	pragmas := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"foreign_keys": "1",
		"busy_timeout": "5000",
	}
	for name, want := range pragmas {
		var got string
		if err := db.Raw("PRAGMA " + name).Row().Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", name, err)
		}
		if strings.ToLower(got) != want {
			t.Errorf("PRAGMA %s = %q; want %q", name, got, want)
		}
	}
	if n := sqlDB.Stats().MaxOpenConnections; n != 10 {
		t.Fatalf("MaxOpenConnections = %d", n)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, model := range []any{
		&domain.User{}, &domain.Listing{}, &domain.FoodRequest{}, &domain.DeliveryAssignment{},
		&domain.Session{}, &domain.StatusEvent{}, &domain.Idempotency{},
	} {
		if !db.Migrator().HasTable(model) {
			t.Errorf("no table for %T", model)
		}
	}

	now := time.Now().UTC()
	u := &domain.User{ID: "u1", Username: "asha", Email: "asha@example.org", PasswordHash: "h",
		CurrentRole: domain.RoleProvider, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}
	var got domain.User
	if err := db.Take(&got, "id = ?", "u1").Error; err != nil || got.CurrentRole != domain.RoleProvider {
		t.Fatalf("readback: %+v %v", got, err)
	}
}

func TestOpen_DriverSwitch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open.db")
	for _, driver := range []string{"", "SQLite", " sqlite "} {
		db, err := Open(driver, path, "")
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if _, err := Open("oracle", path, ""); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported driver error, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":        {nil, false},
		"translated": {gorm.ErrDuplicatedKey, true},
		"sqlite":     {errors.New("UNIQUE constraint failed: users.email"), true},
		"postgres":   {errors.New("ERROR: duplicate key value violates unique constraint"), true},
		"mysql":      {errors.New("Error 1062: Duplicate entry 'x' for key"), true},
		"other":      {errors.New("connection refused"), false},
	}
	for name, c := range cases {
		if got := IsUniqueViolation(c.err); got != c.want {
			t.Errorf("%s: IsUniqueViolation(%v) = %v", name, c.err, got)
		}
	}
}
