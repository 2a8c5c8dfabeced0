package tt_test

import (
	"context"
	"errors"
	"testing"

	"tt-go/internal/database/sqlc"
	"tt-go/internal/testutil"
	"tt-go/internal/tt"
)

// obtain registers path and returns its contract with dest, without transfer.
func (h *harness) obtain(t *testing.T, path string, dest int64) *sqlc.Contract {
	t.Helper()
	resolved, err := h.fsmgr.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve(%s) error = %v", path, err)
	}
	source, err := h.svc.RegisterSource(resolved)
	if err != nil {
		t.Fatalf("RegisterSource() error = %v", err)
	}
	c, err := h.svc.ObtainContract(source, dest)
	if err != nil {
		t.Fatalf("ObtainContract() error = %v", err)
	}
	return c
}

func (h *harness) discover(t *testing.T, c *sqlc.Contract) *tt.Availability {
	t.Helper()
	a, err := h.svc.Discovery().Discover(context.Background(), c)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	return a
}

// deleteSequence removes the message holding unit seq of contract remotely
// and drops any cached verdict for it.
func (h *harness) deleteSequence(t *testing.T, contractID string, seq int64) {
	t.Helper()
	for _, p := range h.placements(t, contractID) {
		if p.Sequence == seq {
			h.remote.DeleteMessages(context.Background(), p.DestinationID, []int64{p.MessageID})
			h.svc.Discovery().Forget(p.DestinationID, []int64{p.MessageID})
			return
		}
	}
	t.Fatalf("contract %s has no placement for sequence %d", contractID, seq)
}

func TestDiscovery_Discover(t *testing.T) {
	data := testutil.RandomBytes(2500, 7) // three units at 1000 bytes

	t.Run("unknown content is system-new", func(t *testing.T) {
		h := newHarness(t)
		c := h.obtain(t, h.write(t, "a.bin", data), destA)

		a := h.discover(t, c)
		if a.State != tt.StateSystemNew || len(a.Placements) != 0 {
			t.Errorf("Discover() = %+v, want system-new", a)
		}
	})

	t.Run("complete valid set at target is fulfilled", func(t *testing.T) {
		h := newHarness(t)
		path := h.write(t, "a.bin", data)
		res := h.transfer(t, path, destA, tt.PolicySmart, nil)

		a := h.discover(t, res.Contract)
		if a.State != tt.StateFulfilled {
			t.Fatalf("State = %s, want fulfilled", a.State)
		}
		if len(a.Placements) != 3 {
			t.Errorf("len(Placements) = %d, want 3", len(a.Placements))
		}
		for i, p := range a.Placements {
			if p.Sequence != int64(i) {
				t.Errorf("Placements[%d].Sequence = %d", i, p.Sequence)
			}
		}
	})

	t.Run("complete set elsewhere is a mirror", func(t *testing.T) {
		h := newHarness(t)
		path := h.write(t, "a.bin", data)
		h.transfer(t, path, destA, tt.PolicySmart, nil)

		c := h.obtain(t, path, destB)
		a := h.discover(t, c)
		if a.State != tt.StateRemoteMirror {
			t.Fatalf("State = %s, want remote-mirror", a.State)
		}
		if len(a.Donors) != 1 || a.Donors[0] != destA {
			t.Errorf("Donors = %v, want [%d]", a.Donors, destA)
		}
		if len(a.Placements) != 3 {
			t.Errorf("len(Placements) = %d, want 3", len(a.Placements))
		}
	})

	t.Run("pieces across destinations form a puzzle", func(t *testing.T) {
		h := newHarness(t)
		path := h.write(t, "a.bin", data)
		ra := h.transfer(t, path, destA, tt.PolicySmart, nil)
		rb := h.transfer(t, path, destB, tt.PolicyForce, nil)

		h.deleteSequence(t, ra.Contract.ID, 0)
		h.deleteSequence(t, rb.Contract.ID, 1)

		c := h.obtain(t, path, destC)
		a := h.discover(t, c)
		if a.State != tt.StateRemotePuzzle {
			t.Fatalf("State = %s, want remote-puzzle", a.State)
		}
		if len(a.Placements) != 3 {
			t.Fatalf("len(Placements) = %d, want 3", len(a.Placements))
		}
		if a.Placements[0].DestinationID != destB || a.Placements[1].DestinationID != destA {
			t.Errorf("puzzle picked %d/%d for sequences 0/1", a.Placements[0].DestinationID, a.Placements[1].DestinationID)
		}
		if len(a.Donors) != 2 {
			t.Errorf("Donors = %v, want two", a.Donors)
		}
	})

	t.Run("records without live messages are restricted", func(t *testing.T) {
		h := newHarness(t)
		path := h.write(t, "a.bin", data)
		res := h.transfer(t, path, destA, tt.PolicySmart, nil)
		for seq := int64(0); seq < 3; seq++ {
			h.deleteSequence(t, res.Contract.ID, seq)
		}

		a := h.discover(t, res.Contract)
		if a.State != tt.StateRemoteRestricted {
			t.Fatalf("State = %s, want remote-restricted", a.State)
		}
		if len(a.Stale) != 3 {
			t.Errorf("len(Stale) = %d, want 3", len(a.Stale))
		}
	})

	t.Run("transport errors count as unavailability", func(t *testing.T) {
		h := newHarness(t)
		path := h.write(t, "a.bin", data)
		h.transfer(t, path, destA, tt.PolicySmart, nil)

		h.flaky.FailGets = true
		c := h.obtain(t, path, destB)
		a := h.discover(t, c)
		if a.State != tt.StateRemoteRestricted {
			t.Errorf("State = %s, want remote-restricted", a.State)
		}
		if h.flaky.Gets() == 0 {
			t.Error("no re-validation call was made")
		}
	})

	t.Run("partial pieces only start over", func(t *testing.T) {
		h := newHarness(t)
		path := h.write(t, "a.bin", data)
		h.flaky.FailSend = 2
		if _, err := h.svc.Transfer(context.Background(), path, destA, tt.PolicySmart, nil); !errors.Is(err, tt.ErrTransportFailure) {
			t.Fatalf("Transfer() error = %v, want ErrTransportFailure", err)
		}

		c := h.obtain(t, path, destB)
		a := h.discover(t, c)
		if a.State != tt.StateSystemNew {
			t.Errorf("State = %s, want system-new", a.State)
		}
	})

	t.Run("verdicts are cached", func(t *testing.T) {
		h := newHarness(t)
		path := h.write(t, "a.bin", data)
		res := h.transfer(t, path, destA, tt.PolicySmart, nil)

		h.discover(t, res.Contract)
		before := h.flaky.Gets()
		h.discover(t, res.Contract)
		if h.flaky.Gets() != before {
			t.Errorf("Gets() = %d after cached discover, want %d", h.flaky.Gets(), before)
		}
	})
}
