package splitter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fxsml/gosplit/exchange"
	"github.com/fxsml/gosplit/splitter"
)

func syncHarness(report bool) (*harness, splitter.Config) {
	h := newHarness()
	cfg := h.config()
	cfg.Synchronous = true
	cfg.ReportErrors = report
	cfg.Store = nil
	cfg.Locks = nil
	return h, cfg
}

// failAt makes the part with the given index fail with err.
func failAt(index int, err error) func(*exchange.Exchange) *exchange.Exchange {
	return func(part *exchange.Exchange) *exchange.Exchange {
		meta, _ := exchange.PartMetaOf(part)
		if meta.Index == index {
			part.Fail(err)
		} else {
			part.Done()
		}
		return part
	}
}

func indexes(t *testing.T, records []sendRecord) []int {
	t.Helper()
	var out []int
	for _, r := range records {
		meta, ok := exchange.PartMetaOf(r.ex)
		if !ok {
			t.Fatalf("record %s carries no part metadata", r.id)
		}
		out = append(out, meta.Index)
	}
	return out
}

func sentSync(ch *fakeChannel) []sendRecord {
	var out []sendRecord
	for _, r := range ch.snapshot() {
		if r.sync {
			out = append(out, r)
		}
	}
	return out
}

func TestProcessSync_AllPartsDone(t *testing.T) {
	h, cfg := syncHarness(false)
	s := mustNew(t, cfg)

	original := inbound(exchange.FireAndForget, "a,b,c")
	if err := s.Process(context.Background(), original); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	sent := sentSync(h.ch)
	if got := indexes(t, sent); len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("dispatch order = %v, want [0 1 2]", got)
	}
	for _, r := range sent {
		if r.ex.Endpoint != "target" {
			t.Errorf("part %s not resolved: endpoint %q", r.id, r.ex.Endpoint)
		}
	}

	replies := h.ch.replies(original.ID)
	if len(replies) != 1 || replies[0].status != exchange.Done {
		t.Fatalf("expected one Done reply, got %+v", replies)
	}
}

func TestProcessSync_FailureAbsorbed(t *testing.T) {
	h, cfg := syncHarness(false)
	s := mustNew(t, cfg)
	h.ch.respond = failAt(1, errors.New("bad record"))

	original := inbound(exchange.FireAndForget, "a,b,c")
	if err := s.Process(context.Background(), original); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if got := indexes(t, sentSync(h.ch)); len(got) != 3 {
		t.Fatalf("all parts must be dispatched, got %v", got)
	}
	if original.Status != exchange.Done || original.Error != nil {
		t.Errorf("original = %v (%v), want done", original, original.Error)
	}
}

func TestProcessSync_FailureReported(t *testing.T) {
	h, cfg := syncHarness(true)
	s := mustNew(t, cfg)
	cause := errors.New("bad record")
	h.ch.respond = failAt(1, cause)

	original := inbound(exchange.FireAndForget, "a,b,c,d")
	if err := s.Process(context.Background(), original); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if got := indexes(t, sentSync(h.ch)); len(got) != 2 || got[1] != 1 {
		t.Fatalf("dispatch must stop after the failed part, got %v", got)
	}
	if original.Status != exchange.Error || !errors.Is(original.Error, cause) {
		t.Fatalf("original = %v (%v), want error carrying cause", original, original.Error)
	}
	replies := h.ch.replies(original.ID)
	if len(replies) != 1 || replies[0].status != exchange.Error {
		t.Errorf("expected one Error reply, got %+v", replies)
	}
}

func TestProcessSync_Fault(t *testing.T) {
	fault := exchange.NewMessage([]byte("rejected"))
	faultAt := func(part *exchange.Exchange) *exchange.Exchange {
		if meta, _ := exchange.PartMetaOf(part); meta.Index == 0 {
			part.Fault = fault
		} else {
			part.Done()
		}
		return part
	}

	t.Run("reported", func(t *testing.T) {
		h, cfg := syncHarness(true)
		s := mustNew(t, cfg)
		h.ch.respond = faultAt

		original := inbound(exchange.FireAndForgetWithFault, "a,b")
		if err := s.Process(context.Background(), original); err != nil {
			t.Fatal(err)
		}
		if original.Fault != fault || original.Status != exchange.Active {
			t.Fatalf("original = %v, fault %v", original, original.Fault)
		}
		if n := len(sentSync(h.ch)); n != 1 {
			t.Errorf("expected 1 dispatched part, got %d", n)
		}
		if n := len(h.ch.closed()); n != 1 {
			t.Errorf("faulted part must be closed, got %d closures", n)
		}
	})

	t.Run("absorbed", func(t *testing.T) {
		h, cfg := syncHarness(false)
		s := mustNew(t, cfg)
		h.ch.respond = faultAt

		original := inbound(exchange.FireAndForgetWithFault, "a,b")
		if err := s.Process(context.Background(), original); err != nil {
			t.Fatal(err)
		}
		if original.Status != exchange.Done || original.Fault != nil {
			t.Fatalf("original = %v, fault %v", original, original.Fault)
		}
		if n := len(h.ch.closed()); n != 1 {
			t.Errorf("faulted part must be closed, got %d closures", n)
		}
	})

	t.Run("original cannot carry fault", func(t *testing.T) {
		h, cfg := syncHarness(true)
		cfg.PartPattern = exchange.FireAndForgetWithFault
		s := mustNew(t, cfg)
		h.ch.respond = faultAt

		original := inbound(exchange.FireAndForget, "a,b")
		if err := s.Process(context.Background(), original); err != nil {
			t.Fatal(err)
		}
		var fe *exchange.FaultError
		if original.Status != exchange.Error || !errors.As(original.Error, &fe) || fe.Fault != fault {
			t.Fatalf("original = %v (%v), want FaultError", original, original.Error)
		}
	})
}

func TestProcessSync_ZeroParts(t *testing.T) {
	h, cfg := syncHarness(true)
	s := mustNew(t, cfg)

	original := inbound(exchange.FireAndForget, "")
	if err := s.Process(context.Background(), original); err != nil {
		t.Fatal(err)
	}
	if len(sentSync(h.ch)) != 0 {
		t.Error("no part may be sent")
	}
	if original.Status != exchange.Done {
		t.Errorf("original = %v, want done", original)
	}
}

func TestProcessSync_ResolveFailure(t *testing.T) {
	h, cfg := syncHarness(false)
	boom := errors.New("no route")
	cfg.Resolver = splitter.ResolverFunc(func(context.Context, *exchange.Exchange, string) error { return boom })
	s := mustNew(t, cfg)

	err := s.Process(context.Background(), inbound(exchange.FireAndForget, "a,b"))
	if !errors.Is(err, splitter.ErrResolve) || !errors.Is(err, boom) {
		t.Fatalf("Process() error = %v, want ErrResolve", err)
	}
	if n := len(h.ch.snapshot()); n != 0 {
		t.Errorf("expected no sends, got %d", n)
	}
}

func TestProcessSync_IgnoresCallbacks(t *testing.T) {
	h, cfg := syncHarness(false)
	s := mustNew(t, cfg)

	part := exchange.New(exchange.FireAndForget)
	exchange.PartMeta{Count: 2, Index: 0, CorrelationID: "c"}.Apply(part.Properties())
	part.Done()
	if err := s.Process(context.Background(), part); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if n := len(h.ch.snapshot()); n != 0 {
		t.Errorf("expected no sends, got %d", n)
	}
}
