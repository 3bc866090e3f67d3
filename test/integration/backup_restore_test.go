// Package integration exercises a full Backup/Restore round trip against
// real PostgreSQL and MySQL servers, wiring the same components
// internal/app.Container assembles in production (schema engine,
// compressor, envelope, integrity, local storage) instead of the fakes
// internal/orchestrator's unit tests use.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/allisson/backydb/internal/compressor"
	"github.com/allisson/backydb/internal/envelope"
	"github.com/allisson/backydb/internal/integrity"
	"github.com/allisson/backydb/internal/orchestrator"
	"github.com/allisson/backydb/internal/schemaengine"
	"github.com/allisson/backydb/internal/storage"
	"github.com/allisson/backydb/internal/testutil"
)

// memoryKeyWrapper is an in-process stand-in for keyprovider.LocalVault: it
// XORs the data key with a fixed pad rather than doing RSA-OAEP, which is
// enough to exercise envelope.Encrypt/Decrypt's wrap/unwrap calls without
// paying for key generation on every test run.
type memoryKeyWrapper struct {
	pad []byte
}

func newMemoryKeyWrapper() *memoryKeyWrapper {
	pad := make([]byte, envelope.KeySize)
	for i := range pad {
		pad[i] = byte(i + 7)
	}
	return &memoryKeyWrapper{pad: pad}
}

func (w *memoryKeyWrapper) Wrap(dataKey []byte) ([]byte, error) {
	out := make([]byte, len(dataKey))
	for i, b := range dataKey {
		out[i] = b ^ w.pad[i%len(w.pad)]
	}
	return out, nil
}

func (w *memoryKeyWrapper) Unwrap(wrapped []byte) ([]byte, error) {
	return w.Wrap(wrapped)
}

// setupSourceSchema creates a small table with a foreign-key-linked child
// table and seeds both with data, returning a cleanup func that drops them.
func setupSourceSchema(t *testing.T, db *sql.DB, driver string) func() {
	t.Helper()

	var ddl []string
	switch driver {
	case "postgres":
		ddl = []string{
			`DROP TABLE IF EXISTS backy_it_orders`,
			`DROP TABLE IF EXISTS backy_it_customers`,
			`CREATE TABLE backy_it_customers (id SERIAL PRIMARY KEY, name TEXT NOT NULL)`,
			`CREATE TABLE backy_it_orders (id SERIAL PRIMARY KEY, customer_id INTEGER REFERENCES backy_it_customers(id), amount_cents INTEGER NOT NULL)`,
			`INSERT INTO backy_it_customers (name) VALUES ('ada'), ('grace')`,
			`INSERT INTO backy_it_orders (customer_id, amount_cents) VALUES (1, 1299), (1, 450), (2, 9900)`,
		}
	case "mysql":
		ddl = []string{
			`DROP TABLE IF EXISTS backy_it_orders`,
			`DROP TABLE IF EXISTS backy_it_customers`,
			`CREATE TABLE backy_it_customers (id INT AUTO_INCREMENT PRIMARY KEY, name VARCHAR(255) NOT NULL)`,
			`CREATE TABLE backy_it_orders (id INT AUTO_INCREMENT PRIMARY KEY, customer_id INT, amount_cents INT NOT NULL, FOREIGN KEY (customer_id) REFERENCES backy_it_customers(id))`,
			`INSERT INTO backy_it_customers (name) VALUES ('ada'), ('grace')`,
			`INSERT INTO backy_it_orders (customer_id, amount_cents) VALUES (1, 1299), (1, 450), (2, 9900)`,
		}
	default:
		t.Fatalf("unsupported driver %q", driver)
	}

	for _, stmt := range ddl {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "setup statement failed: %s", stmt)
	}

	return func() {
		_, _ = db.Exec(`DROP TABLE IF EXISTS backy_it_orders`)
		_, _ = db.Exec(`DROP TABLE IF EXISTS backy_it_customers`)
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// runRoundTrip backs up the current database's tables+data, drops the
// tables (simulating a disaster), restores from the backup, and asserts
// the row counts come back exactly as they were.
func runRoundTrip(t *testing.T, driver string, db *sql.DB, adapter schemaengine.Adapter) {
	t.Helper()

	cleanup := setupSourceSchema(t, db, driver)
	defer cleanup()

	tmpDir := t.TempDir()
	store, err := storage.OpenLocalStore(tmpDir)
	require.NoError(t, err, "open local store")

	wrapper := newMemoryKeyWrapper()
	integritySecret := []byte("integration-test-hmac-secret-32b")

	job := orchestrator.BackupJob{
		Features: schemaengine.Features{
			Tables: true,
			Data:   true,
		},
		MultipleFiles:  false,
		Compress:       true,
		CompressType:   compressor.Zip,
		Encrypt:        true,
		IntegrityCheck: true,
		IntegrityType:  integrity.HMAC,
		KeySize:        envelope.KeySize,
		StoragePrefix:  fmt.Sprintf("it-%s", driver),
	}

	deps := orchestrator.BackupDeps{
		Adapter:         adapter,
		KeyWrapper:      wrapper,
		KeyProviderName: "memory",
		EnvelopeAlg:     envelope.AESGCM,
		Store:           store,
		IntegritySecret: integritySecret,
		ToolVersion:     "it-test",
	}

	m, state, err := orchestrator.Backup(context.Background(), job, deps)
	require.NoError(t, err, "backup failed")
	require.Equal(t, orchestrator.StateDone, state)
	require.NotEmpty(t, m.ID)
	require.NotEmpty(t, m.Artifacts)

	// Simulate a disaster: the tables the backup just captured are gone.
	_, err = db.Exec(`DROP TABLE IF EXISTS backy_it_orders`)
	require.NoError(t, err)
	_, err = db.Exec(`DROP TABLE IF EXISTS backy_it_customers`)
	require.NoError(t, err)

	restoreJob := orchestrator.RestoreJob{
		BackupPath:      job.StoragePrefix,
		IntegritySecret: integritySecret,
	}
	restoreDeps := orchestrator.RestoreDeps{
		Adapter:         adapter,
		KeyWrapper:      wrapper,
		Store:           store,
		IntegritySecret: integritySecret,
		ToolVersion:     "it-test",
	}

	state, err = orchestrator.Restore(context.Background(), restoreJob, restoreDeps)
	require.NoError(t, err, "restore failed")
	require.Equal(t, orchestrator.StateDone, state)

	require.Equal(t, 2, countRows(t, db, "backy_it_customers"))
	require.Equal(t, 3, countRows(t, db, "backy_it_orders"))
}

func TestBackupRestoreRoundTrip_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testutil.SkipIfNoPostgres(t)

	dsn := testutil.GetPostgresTestDSN()
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	adapter := schemaengine.NewPostgresAdapter(db)
	runRoundTrip(t, "postgres", db, adapter)
}

func TestBackupRestoreRoundTrip_MySQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testutil.SkipIfNoMySQL(t)

	dsn := testutil.GetMySQLTestDSN()
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	defer db.Close()

	adapter := schemaengine.NewMySQLAdapter(db)
	runRoundTrip(t, "mysql", db, adapter)
}

// TestMain allows `go test -short` to bypass real-database requirements
// when running alongside the rest of the module's unit tests.
func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
