package tt_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"tt-go/internal/database/sqlc"
	"tt-go/internal/fs"
	"tt-go/internal/testutil"
	"tt-go/internal/transport"
	"tt-go/internal/tt"
)

const (
	destA int64 = -1001
	destB int64 = -1002
	destC int64 = -1003
)

// harness wires a Service over real files, an in-memory store and an
// in-memory transport wrapped for failure injection.
type harness struct {
	db       tt.Database
	remote   *transport.MemoryTransport
	flaky    *testutil.FlakyTransport
	fsmgr    tt.FilesystemManager
	svc      *tt.Service
	dir      string
	settings tt.Settings
}

func testSettings(t *testing.T) tt.Settings {
	t.Helper()
	return tt.Settings{
		ChunkSize:     1000,
		WorkDir:       filepath.Join(t.TempDir(), "work"),
		MaxNameLength: 60,
		AppVersion:    "test",
		Destinations:  map[int64]string{destA: "archive-a", destB: "archive-b"},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, testSettings(t), transport.NewMemoryTransport("memory"))
}

func newHarnessWith(t *testing.T, settings tt.Settings, remote *transport.MemoryTransport) *harness {
	t.Helper()
	h := &harness{
		db:       testutil.NewTestDatabase(t),
		remote:   remote,
		flaky:    testutil.NewFlakyTransport(remote),
		fsmgr:    fs.NewOSFilesystemManager(nil),
		dir:      t.TempDir(),
		settings: settings,
	}
	h.svc = tt.NewService(h.db, h.flaky, h.fsmgr, tt.NewNopLogger(),
		testutil.FixedClock(), testutil.NewStubIDGenerator(), settings)
	return h
}

// write creates a file below the harness directory and returns its path.
func (h *harness) write(t *testing.T, rel string, data []byte) string {
	t.Helper()
	return testutil.WriteFile(t, h.dir, rel, data)
}

func (h *harness) transfer(t *testing.T, path string, dest int64, policy tt.Policy, ask tt.AskFunc) *tt.TransferResult {
	t.Helper()
	res, err := h.svc.Transfer(context.Background(), path, dest, policy, ask)
	if err != nil {
		t.Fatalf("Transfer(%s, %d) error = %v", filepath.Base(path), dest, err)
	}
	return res
}

func (h *harness) placements(t *testing.T, contractID string) []*sqlc.Placement {
	t.Helper()
	ps, err := h.db.FindPlacements(contractID)
	if err != nil {
		t.Fatalf("FindPlacements() error = %v", err)
	}
	return ps
}

func (h *harness) contract(t *testing.T, id string) *sqlc.Contract {
	t.Helper()
	c, err := h.db.FindContractByID(id)
	if err != nil || c == nil {
		t.Fatalf("FindContractByID(%s) = %v, %v", id, c, err)
	}
	return c
}

// received concatenates the bodies a destination holds in message order.
func (h *harness) received(dest int64) []byte {
	var buf bytes.Buffer
	for _, ref := range h.remote.Messages(dest) {
		buf.Write(h.remote.Data(dest, ref.MessageID))
	}
	return buf.Bytes()
}

func answer(d tt.Decision) tt.AskFunc {
	return func(context.Context, *sqlc.Contract, *tt.Availability) (tt.Decision, error) {
		return d, nil
	}
}
