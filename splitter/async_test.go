package splitter_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/fxsml/gosplit/exchange"
	"github.com/fxsml/gosplit/splitter"
	storemem "github.com/fxsml/gosplit/store/memory"
)

// complete simulates the responder finishing a part and the bus handing it
// back to the splitter as originator.
func complete(t *testing.T, s *splitter.Splitter, part *exchange.Exchange, mutate func(*exchange.Exchange)) {
	t.Helper()
	mutate(part)
	part.Role = exchange.Originator
	if err := s.Process(context.Background(), part); err != nil {
		t.Fatalf("Process(callback %s) error = %v", part.ID, err)
	}
}

func markDone(ex *exchange.Exchange) { ex.Done() }

func permutations(n int) [][]int {
	var out [][]int
	var rec func(prefix []int, rest []int)
	rec = func(prefix, rest []int) {
		if len(rest) == 0 {
			out = append(out, append([]int(nil), prefix...))
			return
		}
		for i := range rest {
			next := append(append([]int(nil), rest[:i]...), rest[i+1:]...)
			rec(append(prefix, rest[i]), next)
		}
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rec(nil, idx)
	return out
}

func dispatch(t *testing.T, h *harness, s *splitter.Splitter, content string) (*exchange.Exchange, []*exchange.Exchange) {
	t.Helper()
	original := inbound(exchange.FireAndForgetWithFault, content)
	if err := s.Process(context.Background(), original); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return original, h.ch.parts()
}

func TestProcessAsync_Dispatch(t *testing.T) {
	h := newHarness()
	s := mustNew(t, h.config())

	original, parts := dispatch(t, h, s, "a,b,c")
	if len(parts) != 3 {
		t.Fatalf("expected 3 dispatched parts, got %d", len(parts))
	}
	for i, part := range parts {
		meta, _ := exchange.PartMetaOf(part)
		if meta.Index != i || meta.CorrelationID != original.ID {
			t.Errorf("part %d: metadata %+v", i, meta)
		}
		if part.Endpoint != "target" {
			t.Errorf("part %d not resolved", i)
		}
	}
	if len(h.ch.replies(original.ID)) != 0 {
		t.Error("original must not be answered before all parts return")
	}

	ctx := context.Background()
	raw, ok, err := h.store.Load(ctx, original.ID+".acks")
	if err != nil || !ok || string(raw) != "000" {
		t.Fatalf("acks = %q, %v, %v", raw, ok, err)
	}
	if _, ok, _ := h.store.Load(ctx, original.ID); !ok {
		t.Fatal("original must be persisted")
	}
}

func TestProcessAsync_CompletesInAnyOrder(t *testing.T) {
	for _, n := range []int{3, 4} {
		for _, order := range permutations(n) {
			t.Run(fmt.Sprintf("n=%d/%v", n, order), func(t *testing.T) {
				h := newHarness()
				s := mustNew(t, h.config())

				content := "a"
				for i := 1; i < n; i++ {
					content += ",x"
				}
				original, parts := dispatch(t, h, s, content)

				for k, i := range order {
					complete(t, s, parts[i], markDone)
					replies := h.ch.replies(original.ID)
					if k < n-1 && len(replies) != 0 {
						t.Fatalf("original finalized after %d of %d parts", k+1, n)
					}
				}

				replies := h.ch.replies(original.ID)
				if len(replies) != 1 || replies[0].status != exchange.Done {
					t.Fatalf("expected one Done reply, got %+v", replies)
				}
				if replies[0].role != exchange.Responder {
					t.Errorf("reply role = %v", replies[0].role)
				}
				if h.store.Len() != 0 {
					t.Errorf("store holds %d keys after finalization", h.store.Len())
				}
				if h.locks.Len() != 0 {
					t.Errorf("%d locks left after finalization", h.locks.Len())
				}
			})
		}
	}
}

func TestProcessAsync_ConcurrentCallbacksFinalizeOnce(t *testing.T) {
	h := newHarness()
	s := mustNew(t, h.config())

	original, parts := dispatch(t, h, s, "a,b,c,d,e,f,g,h,i,j,k,l,m,n,o,p")

	var wg sync.WaitGroup
	errs := make(chan error, len(parts))
	for _, part := range parts {
		wg.Add(1)
		go func(part *exchange.Exchange) {
			defer wg.Done()
			part.Done()
			part.Role = exchange.Originator
			errs <- s.Process(context.Background(), part)
		}(part)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}

	if n := len(h.ch.replies(original.ID)); n != 1 {
		t.Fatalf("original answered %d times", n)
	}
	if h.store.Len() != 0 {
		t.Errorf("store holds %d keys", h.store.Len())
	}
}

func TestProcessAsync_DuplicateCallbackIsNoop(t *testing.T) {
	h := newHarness()
	s := mustNew(t, h.config())

	original, parts := dispatch(t, h, s, "a,b")
	complete(t, s, parts[0], markDone)
	complete(t, s, parts[1], markDone)
	// late redelivery of a part after finalization
	complete(t, s, parts[1], markDone)

	if n := len(h.ch.replies(original.ID)); n != 1 {
		t.Fatalf("original answered %d times", n)
	}
	if h.locks.Len() != 0 {
		t.Errorf("%d locks left", h.locks.Len())
	}
}

func TestProcessAsync_DuplicateCallbackBeforeFinalization(t *testing.T) {
	h := newHarness()
	s := mustNew(t, h.config())

	original, parts := dispatch(t, h, s, "a,b,c")
	complete(t, s, parts[0], markDone)
	complete(t, s, parts[0], markDone)
	complete(t, s, parts[1], markDone)
	if n := len(h.ch.replies(original.ID)); n != 0 {
		t.Fatalf("redelivered part counted twice: %d replies", n)
	}

	raw, _, _ := h.store.Load(context.Background(), original.ID+".acks")
	if string(raw) != "110" {
		t.Errorf("acks = %q, want 110", raw)
	}

	complete(t, s, parts[2], markDone)
	if n := len(h.ch.replies(original.ID)); n != 1 {
		t.Fatalf("original answered %d times", n)
	}
}

func TestProcessAsync_ReportedErrorFinalizesEarly(t *testing.T) {
	h := newHarness()
	cfg := h.config()
	cfg.ReportErrors = true
	s := mustNew(t, cfg)

	original, parts := dispatch(t, h, s, "a,b")
	cause := errors.New("bad record")
	complete(t, s, parts[0], func(ex *exchange.Exchange) { ex.Fail(cause) })

	replies := h.ch.replies(original.ID)
	if len(replies) != 1 || replies[0].status != exchange.Error {
		t.Fatalf("expected one Error reply, got %+v", replies)
	}
	if !errors.Is(replies[0].ex.Error, cause) {
		t.Errorf("reply error = %v, want cause", replies[0].ex.Error)
	}
	if h.store.Len() != 0 {
		t.Errorf("store holds %d keys", h.store.Len())
	}

	complete(t, s, parts[1], markDone)
	if n := len(h.ch.replies(original.ID)); n != 1 {
		t.Errorf("late part re-finalized the original: %d replies", n)
	}
}

func TestProcessAsync_ErrorAbsorbed(t *testing.T) {
	h := newHarness()
	s := mustNew(t, h.config())

	original, parts := dispatch(t, h, s, "a,b")
	complete(t, s, parts[0], func(ex *exchange.Exchange) { ex.Fail(errors.New("bad record")) })
	if len(h.ch.replies(original.ID)) != 0 {
		t.Fatal("absorbed failure must not finalize early")
	}
	complete(t, s, parts[1], markDone)

	replies := h.ch.replies(original.ID)
	if len(replies) != 1 || replies[0].status != exchange.Done {
		t.Fatalf("expected one Done reply, got %+v", replies)
	}
}

func TestProcessAsync_Fault(t *testing.T) {
	fault := exchange.NewMessage([]byte("rejected"))
	withFault := func(ex *exchange.Exchange) { ex.Fault = fault }

	t.Run("reported", func(t *testing.T) {
		h := newHarness()
		cfg := h.config()
		cfg.ReportErrors = true
		s := mustNew(t, cfg)

		original, parts := dispatch(t, h, s, "a,b,c")
		complete(t, s, parts[2], withFault)

		replies := h.ch.replies(original.ID)
		if len(replies) != 1 || !replies[0].fault {
			t.Fatalf("expected faulted reply, got %+v", replies)
		}
		if got := string(replies[0].ex.Fault.Content); got != "rejected" {
			t.Errorf("fault content = %q", got)
		}
		closed := h.ch.closed()
		if len(closed) != 1 || closed[0].id != parts[2].ID {
			t.Errorf("faulted part must be closed, got %+v", closed)
		}
	})

	t.Run("counted as ack", func(t *testing.T) {
		h := newHarness()
		s := mustNew(t, h.config())

		original, parts := dispatch(t, h, s, "a,b")
		complete(t, s, parts[0], withFault)
		complete(t, s, parts[1], markDone)

		replies := h.ch.replies(original.ID)
		if len(replies) != 1 || replies[0].status != exchange.Done || replies[0].fault {
			t.Fatalf("expected Done reply, got %+v", replies)
		}
		if n := len(h.ch.closed()); n != 1 {
			t.Errorf("faulted part must be closed, got %d", n)
		}
	})

	t.Run("after finalization", func(t *testing.T) {
		h := newHarness()
		cfg := h.config()
		cfg.ReportErrors = true
		s := mustNew(t, cfg)

		_, parts := dispatch(t, h, s, "a,b")
		complete(t, s, parts[0], func(ex *exchange.Exchange) { ex.Fail(errors.New("x")) })
		complete(t, s, parts[1], withFault)

		closed := h.ch.closed()
		if len(closed) != 1 || closed[0].id != parts[1].ID {
			t.Errorf("late faulted part must still be closed, got %+v", closed)
		}
	})

	t.Run("inbound carries fault", func(t *testing.T) {
		h := newHarness()
		s := mustNew(t, h.config())

		original := inbound(exchange.FireAndForgetWithFault, "a,b")
		original.Fault = fault
		if err := s.Process(context.Background(), original); err != nil {
			t.Fatal(err)
		}
		if original.Status != exchange.Done {
			t.Errorf("original = %v, want done", original)
		}
		if len(h.ch.parts()) != 0 || h.splits.Load() != 0 {
			t.Error("faulted inbound must not be split")
		}
	})
}

func TestProcessAsync_NotCorrelated(t *testing.T) {
	h := newHarness()
	s := mustNew(t, h.config())

	ex := exchange.New(exchange.FireAndForget)
	ex.Done()
	err := s.Process(context.Background(), ex)
	if !errors.Is(err, splitter.ErrNotCorrelated) {
		t.Fatalf("Process() error = %v, want ErrNotCorrelated", err)
	}
}

func TestProcessAsync_CorruptCounter(t *testing.T) {
	h := newHarness()
	s := mustNew(t, h.config())

	original, parts := dispatch(t, h, s, "a,b")
	if err := h.store.Store(context.Background(), original.ID+".acks", []byte("many")); err != nil {
		t.Fatal(err)
	}
	parts[0].Done()
	parts[0].Role = exchange.Originator
	err := s.Process(context.Background(), parts[0])
	if !errors.Is(err, splitter.ErrRecordCorrupt) {
		t.Fatalf("Process() error = %v, want ErrRecordCorrupt", err)
	}
}

func TestProcessAsync_ZeroParts(t *testing.T) {
	h := newHarness()
	s := mustNew(t, h.config())

	original := inbound(exchange.FireAndForget, "")
	if err := s.Process(context.Background(), original); err != nil {
		t.Fatal(err)
	}
	if original.Status != exchange.Done {
		t.Errorf("original = %v, want done", original)
	}
	if h.store.Len() != 0 {
		t.Error("empty split must not persist a record")
	}
}

func TestProcessAsync_SurvivesRestart(t *testing.T) {
	h := newHarness()
	first := mustNew(t, h.config())
	original, parts := dispatch(t, h, first, "a,b,c")
	complete(t, first, parts[0], markDone)

	// a fresh instance over the same store picks up the correlation
	second := mustNew(t, h.config())
	complete(t, second, parts[1], markDone)
	complete(t, second, parts[2], markDone)

	replies := h.ch.replies(original.ID)
	if len(replies) != 1 || replies[0].status != exchange.Done {
		t.Fatalf("expected one Done reply, got %+v", replies)
	}
	restored := replies[0].ex
	if restored.Source != "client" || string(restored.Message.Content) != "a,b,c" {
		t.Errorf("restored original = %v source %q content %q", restored, restored.Source, restored.Message.Content)
	}
}

// failingAcks fails every write of an ack record.
type failingAcks struct {
	mem *storemem.Store
	err error
}

func (f failingAcks) Load(ctx context.Context, key string) ([]byte, bool, error) {
	return f.mem.Load(ctx, key)
}

func (f failingAcks) Store(ctx context.Context, key string, value []byte) error {
	if strings.HasSuffix(key, ".acks") {
		return f.err
	}
	return f.mem.Store(ctx, key, value)
}

func (f failingAcks) Delete(ctx context.Context, key string) error {
	return f.mem.Delete(ctx, key)
}

func TestProcessAsync_PersistAcksFailureDropsOriginal(t *testing.T) {
	h := newHarness()
	boom := errors.New("boom")
	cfg := h.config()
	cfg.Store = failingAcks{mem: h.store, err: boom}
	s := mustNew(t, cfg)

	err := s.Process(context.Background(), inbound(exchange.FireAndForget, "a,b"))
	if !errors.Is(err, boom) {
		t.Fatalf("Process() error = %v, want persist failure", err)
	}
	if h.store.Len() != 0 {
		t.Errorf("store holds %d keys after failed persist", h.store.Len())
	}
	if len(h.ch.snapshot()) != 0 {
		t.Error("no part may be sent when the record cannot be persisted")
	}
}

func TestProcessAsync_DispatchFailureDropsRecord(t *testing.T) {
	h := newHarness()
	s := mustNew(t, h.config())
	boom := errors.New("queue full")
	sent := 0
	h.ch.sendErr = func(*exchange.Exchange) error {
		sent++
		if sent == 2 {
			return boom
		}
		return nil
	}

	err := s.Process(context.Background(), inbound(exchange.FireAndForget, "a,b,c"))
	if !errors.Is(err, boom) {
		t.Fatalf("Process() error = %v, want dispatch failure", err)
	}
	if h.store.Len() != 0 {
		t.Errorf("store holds %d keys after abandoned dispatch", h.store.Len())
	}
	if h.locks.Len() != 0 {
		t.Errorf("%d locks left", h.locks.Len())
	}

	// the part that did go out is ignored when it returns
	parts := h.ch.parts()
	if len(parts) != 1 {
		t.Fatalf("expected 1 dispatched part, got %d", len(parts))
	}
	h.ch.sendErr = nil
	complete(t, s, parts[0], markDone)
	if n := len(h.ch.snapshot()); n != 1 {
		t.Errorf("callback after abandon must not reply, got %d sends", n)
	}
}

func TestProcessAsync_ResolveFailureLeavesNoRecord(t *testing.T) {
	h := newHarness()
	cfg := h.config()
	cfg.Resolver = splitter.ResolverFunc(func(context.Context, *exchange.Exchange, string) error {
		return errors.New("no route")
	})
	s := mustNew(t, cfg)

	err := s.Process(context.Background(), inbound(exchange.FireAndForget, "a,b"))
	if !errors.Is(err, splitter.ErrResolve) {
		t.Fatalf("Process() error = %v", err)
	}
	if h.store.Len() != 0 || len(h.ch.snapshot()) != 0 {
		t.Error("resolve failure must leave no record and send nothing")
	}
}
