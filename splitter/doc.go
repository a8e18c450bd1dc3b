// Package splitter fans one exchange out into ordered child exchanges and
// resynchronizes their completion into a single outcome for the original.
//
// A [Splitter] is an endpoint. It receives an original exchange as the
// responder, splits its content with a [Strategy], builds one child exchange
// per part, resolves each child against the configured target with a
// [Resolver] and dispatches it over a [Channel]. The original is finalized
// exactly once: Done when every part succeeded (or failures are absorbed),
// Error or fault when the first reported part failure arrives.
//
// # Dispatch modes
//
// In synchronous mode the calling goroutine sends each part in index order
// and waits for it. The call stack is the correlation mechanism; no store or
// lock is touched.
//
// In asynchronous mode parts are sent without waiting. The original exchange
// and an acknowledgment record with one entry per part index are persisted
// in a [Store], so a redelivered callback is counted once. Each completion
// callback updates the record inside a critical section guarded by a named
// [Lock] from a [LockManager], so callbacks for one correlation id are
// serialized while callbacks for different ids run in parallel. The store is
// the only source of truth across callbacks, which lets a restarted process
// finish a split begun by another one.
//
// # Error reporting
//
// With ReportErrors disabled, failed or faulted parts are absorbed and
// counted as completed. With ReportErrors enabled, the first failure decides
// the outcome of the original and later callbacks for the same correlation
// become no-ops.
package splitter
