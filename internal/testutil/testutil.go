// Package testutil provides shared test helpers for setting up sandboxes and audit databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/fsgate/internal/audit"
	"github.com/starford/fsgate/internal/dispatch"
	"github.com/starford/fsgate/internal/gateway"
	"github.com/starford/fsgate/internal/sandbox"
	"github.com/starford/fsgate/internal/storage"
)

// TestAuditDB creates a temporary audit database that is automatically cleaned up.
func TestAuditDB(t *testing.T) *audit.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "fsgate-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := audit.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDispatcher creates a dispatcher confined to a fresh temporary root
// and returns it with the resolved root path. Extra options are applied
// after the sandbox policy.
func TestDispatcher(t *testing.T, opts ...dispatch.Option) (*dispatch.Dispatcher, string) {
	t.Helper()
	policy, err := sandbox.NewRoot(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]dispatch.Option{dispatch.WithPolicy(policy)}, opts...)
	return dispatch.New(gateway.New(storage.NewFS()), opts...), policy.Root()
}
