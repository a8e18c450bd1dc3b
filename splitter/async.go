package splitter

import (
	"context"
	"fmt"

	"github.com/fxsml/gosplit/exchange"
)

const ackSuffix = ".acks"

func ackKey(correlationID string) string {
	return correlationID + ackSuffix
}

// processAsync persists the original and its ack record, then sends every
// part without waiting. Completion arrives later through handleCallback.
func (s *Splitter) processAsync(ctx context.Context, original *exchange.Exchange) error {
	if err := validatePattern(original); err != nil {
		return err
	}
	if original.Fault != nil {
		original.Done()
		return s.reply(ctx, original)
	}

	parts, err := s.CreateParts(original)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		original.Done()
		return s.reply(ctx, original)
	}
	for _, part := range parts {
		if err := s.resolve(ctx, part); err != nil {
			return err
		}
	}

	id := original.ID
	data, err := s.cfg.Codec.Marshal(original)
	if err != nil {
		return err
	}
	if err := s.cfg.Store.Store(ctx, id, data); err != nil {
		return fmt.Errorf("splitter: persist original %s: %w", id, err)
	}
	if err := s.cfg.Store.Store(ctx, ackKey(id), newAckSet(len(parts))); err != nil {
		if delErr := s.cfg.Store.Delete(ctx, id); delErr != nil {
			s.log.Warn("splitter: failed to remove original", "correlation_id", id, "error", delErr)
		}
		return fmt.Errorf("splitter: persist acks %s: %w", id, err)
	}

	for _, part := range parts {
		if err := s.cfg.Channel.Send(ctx, part); err != nil {
			s.abandon(ctx, id)
			return fmt.Errorf("splitter: dispatch part %s: %w", part.ID, err)
		}
	}
	s.log.Debug("splitter: parts dispatched", "correlation_id", id, "parts", len(parts))
	return nil
}

// handleCallback accounts for one returned part. Replies are sent after the
// correlation lock is released.
func (s *Splitter) handleCallback(ctx context.Context, part *exchange.Exchange) error {
	meta, ok := exchange.PartMetaOf(part)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotCorrelated, part.ID)
	}

	original, err := s.update(ctx, meta, part)
	s.closePart(ctx, part)
	if err != nil {
		return err
	}
	if original == nil {
		return nil
	}
	return s.reply(ctx, original)
}

// update is the critical section for one callback: load the ack set, apply
// the callback, store the ack set or finalize. It returns the finalized
// original, or nil if the correlation is still open or already gone.
func (s *Splitter) update(ctx context.Context, meta exchange.PartMeta, part *exchange.Exchange) (*exchange.Exchange, error) {
	id := meta.CorrelationID
	lock := s.cfg.Locks.GetLock(id)
	ok, err := lock.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLockNotAcquired, id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, id)
	}

	closed := false
	defer func() {
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("splitter: failed to release correlation lock", "correlation_id", id, "error", err)
		}
		if closed {
			s.cfg.Locks.RemoveLock(id)
		}
	}()

	acks, found, err := s.loadAcks(ctx, id, meta)
	if err != nil {
		return nil, err
	}
	if !found {
		closed = true
		s.log.Debug("splitter: ignoring callback for finalized correlation",
			"correlation_id", id, "exchange_id", part.ID, "part_index", meta.Index)
		return nil, nil
	}

	if !acks.mark(meta.Index) {
		s.log.Debug("splitter: ignoring duplicate callback",
			"correlation_id", id, "exchange_id", part.ID, "part_index", meta.Index)
		return nil, nil
	}

	o := classify(part)
	fin := finalization{outcome: outcomeDone}
	if o != outcomeDone && s.cfg.ReportErrors {
		fin = finalization{outcome: o, cause: part}
	} else if n := acks.count(); n < meta.Count {
		if err := s.cfg.Store.Store(ctx, ackKey(id), acks); err != nil {
			return nil, fmt.Errorf("splitter: persist acks %s: %w", id, err)
		}
		s.log.Debug("splitter: part acknowledged",
			"correlation_id", id, "part_index", meta.Index, "outcome", o, "acks", n, "parts", meta.Count)
		return nil, nil
	}

	original, err := s.loadOriginal(ctx, id)
	if err != nil {
		return nil, err
	}
	fin.apply(original)
	if err := s.removeRecord(ctx, id); err != nil {
		return nil, err
	}
	closed = true

	s.log.Info("splitter: correlation finalized",
		"correlation_id", id, "status", original.Status, "fault", original.Fault != nil, "acks", acks.count())
	return original, nil
}

func (s *Splitter) loadAcks(ctx context.Context, id string, meta exchange.PartMeta) (ackSet, bool, error) {
	raw, ok, err := s.cfg.Store.Load(ctx, ackKey(id))
	if err != nil {
		return nil, false, fmt.Errorf("splitter: load acks %s: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}
	acks, err := parseAckSet(raw, meta.Count)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrRecordCorrupt, id, err)
	}
	if meta.Index < 0 || meta.Index >= meta.Count {
		return nil, false, fmt.Errorf("%w: %s: part index %d of %d", ErrRecordCorrupt, id, meta.Index, meta.Count)
	}
	return acks, true, nil
}

func (s *Splitter) loadOriginal(ctx context.Context, id string) (*exchange.Exchange, error) {
	raw, ok, err := s.cfg.Store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("splitter: load original %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s: original exchange missing", ErrRecordCorrupt, id)
	}
	original, err := s.cfg.Codec.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRecordCorrupt, id, err)
	}
	return original, nil
}

// removeRecord deletes the ack record first: once it is gone every later
// callback is a no-op, even if deleting the original fails.
func (s *Splitter) removeRecord(ctx context.Context, id string) error {
	if err := s.cfg.Store.Delete(ctx, ackKey(id)); err != nil {
		return fmt.Errorf("splitter: remove acks %s: %w", id, err)
	}
	if err := s.cfg.Store.Delete(ctx, id); err != nil {
		s.log.Warn("splitter: failed to remove original", "correlation_id", id, "error", err)
	}
	return nil
}

// abandon drops the record of a split whose dispatch failed, so callbacks
// of parts that did go out are ignored.
func (s *Splitter) abandon(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)
	lock := s.cfg.Locks.GetLock(id)
	ok, err := lock.TryLock(ctx)
	if err != nil || !ok {
		s.log.Error("splitter: cannot lock abandoned correlation", "correlation_id", id, "error", err)
		return
	}
	defer func() {
		if err := lock.Unlock(ctx); err != nil {
			s.log.Warn("splitter: failed to release correlation lock", "correlation_id", id, "error", err)
		}
		s.cfg.Locks.RemoveLock(id)
	}()
	if err := s.removeRecord(ctx, id); err != nil {
		s.log.Error("splitter: cannot remove abandoned correlation", "correlation_id", id, "error", err)
	}
}
