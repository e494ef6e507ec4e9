package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/foodmap/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// First call should generate a secret.
	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 == "" {
		t.Fatal("expected non-empty secret")
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	// Second call should return the same secret.
	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestSettings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, ok, err := GetSetting(ctx, database, "missing"); err != nil || ok {
		t.Fatalf("GetSetting(missing) = %v, %v", ok, err)
	}

	if err := SetSetting(ctx, database, "k", "one"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := SetSetting(ctx, database, "k", "two"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	value, ok, err := GetSetting(ctx, database, "k")
	if err != nil || !ok || value != "two" {
		t.Errorf("GetSetting = %q, %v, %v; want \"two\", true, nil", value, ok, err)
	}
}

func TestLastSweep(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	last, err := LastSweep(ctx, database)
	if err != nil {
		t.Fatalf("LastSweep: %v", err)
	}
	if !last.IsZero() {
		t.Errorf("expected zero time before the first sweep, got %v", last)
	}

	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	if err := RecordSweep(ctx, database, at); err != nil {
		t.Fatalf("RecordSweep: %v", err)
	}
	last, _ = LastSweep(ctx, database)
	if !last.Equal(at) {
		t.Errorf("LastSweep = %v, want %v", last, at)
	}
}
