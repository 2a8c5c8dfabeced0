package tt_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tt-go/internal/testutil"
	"tt-go/internal/tt"
)

func TestService_Status(t *testing.T) {
	data := testutil.RandomBytes(2500, 41)

	t.Run("unknown content is reported without being stored", func(t *testing.T) {
		h := newHarness(t)
		path := h.write(t, "a.bin", data)

		st, err := h.svc.Status(context.Background(), path, destA)
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if st.Known || st.Contract != nil || st.State != tt.StateSystemNew {
			t.Errorf("status = %+v, want unknown system-new", st)
		}
		if st.Checksum != testutil.SHA256Hex(data) || st.Expected != 3 {
			t.Errorf("Checksum/Expected = %s/%d", st.Checksum, st.Expected)
		}

		if src, _ := h.db.FindSourceContentByChecksum(st.Checksum); src != nil {
			t.Error("Status() stored the content")
		}
	})

	t.Run("placed content is fulfilled", func(t *testing.T) {
		h := newHarness(t)
		path := h.write(t, "a.bin", data)
		res := h.transfer(t, path, destA, tt.PolicySmart, nil)

		st, err := h.svc.Status(context.Background(), path, destA)
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if !st.Known || st.Contract == nil || st.Contract.ID != res.Contract.ID {
			t.Fatalf("status = %+v", st)
		}
		if st.Placed != 3 || st.Expected != 3 || st.State != tt.StateFulfilled {
			t.Errorf("Placed/Expected/State = %d/%d/%s", st.Placed, st.Expected, st.State)
		}
	})

	t.Run("other destinations see a mirror without a contract", func(t *testing.T) {
		h := newHarness(t)
		path := h.write(t, "a.bin", data)
		h.transfer(t, path, destA, tt.PolicySmart, nil)

		st, err := h.svc.Status(context.Background(), path, destB)
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if st.Contract != nil || st.State != tt.StateRemoteMirror {
			t.Errorf("status = %+v, want remote-mirror without contract", st)
		}
		src, _ := h.db.FindSourceContentByChecksum(st.Checksum)
		if src == nil {
			t.Fatal("source missing after transfer")
		}
		if c, _ := h.db.FindContract(src.ID, destB); c != nil {
			t.Error("Status() created a contract")
		}
	})

	t.Run("directories are measured", func(t *testing.T) {
		h := newHarness(t)
		h.write(t, "dir/x.txt", []byte("x"))

		st, err := h.svc.Status(context.Background(), filepath.Join(h.dir, "dir"), destA)
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if st.Kind != tt.KindDirectory || st.Size == 0 || st.Expected != tt.ChooseExpected(st.Size, 1000) {
			t.Errorf("status = %+v", st)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.svc.Status(context.Background(), filepath.Join(h.dir, "nope"), destA); !errors.Is(err, tt.ErrNotFound) {
			t.Errorf("Status() error = %v, want ErrNotFound", err)
		}
	})
}

func TestChooseExpected(t *testing.T) {
	tests := []struct {
		size, ceiling int64
		want          int
	}{
		{0, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{1000, 100, 10},
		{1001, 100, 11},
		{5000, 0, 1},
	}
	for _, tc := range tests {
		if got := tt.ChooseExpected(tc.size, tc.ceiling); got != tc.want {
			t.Errorf("ChooseExpected(%d, %d) = %d, want %d", tc.size, tc.ceiling, got, tc.want)
		}
	}
}

func TestService_ListContracts(t *testing.T) {
	h := newHarness(t)
	// Distinct creation times give the listing a stable order.
	clock := testutil.NewTickingClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), time.Second)
	h.svc = tt.NewService(h.db, h.flaky, h.fsmgr, tt.NewNopLogger(),
		clock, testutil.NewStubIDGenerator(), h.settings)

	h.transfer(t, h.write(t, "small.txt", []byte("tiny")), destA, tt.PolicySmart, nil)
	h.failSecondUnit(t, h.write(t, "big.bin", testutil.RandomBytes(2500, 42)))

	summaries, err := h.svc.ListContracts(10)
	if err != nil {
		t.Fatalf("ListContracts() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}

	if got := filepath.Base(summaries[0].Source.Path); got != "big.bin" {
		t.Errorf("first summary = %s, want the most recent contract big.bin", got)
	}

	byName := map[string]*tt.ContractSummary{}
	for _, s := range summaries {
		byName[filepath.Base(s.Source.Path)] = s
	}
	if s := byName["small.txt"]; s == nil || s.Placed != 1 || s.Expected != 1 {
		t.Errorf("small.txt summary = %+v", s)
	}
	if s := byName["big.bin"]; s == nil || s.Placed != 1 || s.Expected != 3 {
		t.Errorf("big.bin summary = %+v", s)
	}
}

func TestService_GetHistory(t *testing.T) {
	h := newHarness(t)
	op, err := h.db.CreateOperation("upload", `["a.bin"]`)
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if err := h.db.FinishOperation(op.ID, "success"); err != nil {
		t.Fatalf("FinishOperation() error = %v", err)
	}

	ops, err := h.svc.GetHistory(5)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Operation != "upload" || ops[0].Status != "success" {
		t.Errorf("GetHistory() = %+v", ops)
	}
}
