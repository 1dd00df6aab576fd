package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/onnwee/thetaalert/db"
)

// SetupTestDB connects to TEST_PG_DSN, runs migrations and empties the settings tables.
// It skips the test if TEST_PG_DSN is not set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	ctx := context.Background()
	database, err := db.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.RunMigrations(database); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	for _, table := range []string{"global_settings", "guild_settings", "role_settings", "api_credentials"} {
		if _, err := database.ExecContext(ctx, "TRUNCATE "+table); err != nil {
			database.Close()
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}
