// Package core implements the cognitive core: a multi-stream competitive
// cognition runtime driven by a fixed-timing cycle, bounded working memory,
// an immutable Law gate, and two-tier long-term memory.
//
// # Core Types
//
// The package is built around the following concepts:
//
//   - [Cycle] - The mutable carrier that flows through one cognitive cycle's
//     five stages (Trigger, Autoflow, Selection, Assembly, Anchor)
//   - [Thought] - The immutable entity produced by a winning cycle
//   - [StreamEntry] - One candidate appended to a working stream
//   - [Window] / [WindowSet] - Bounded working-memory accumulators (I1)
//   - [Memory] - A conscious or unconscious long-term memory record
//   - [Association] - A typed, weighted edge in the association graph
//
// # Running Cycles
//
// [NewCycleDriver] wires the Selector, Assembler, Consolidator, Continuity
// manager, and Law gate into a driver that runs one cycle per [CycleDriver.Run] call:
//
//	driver := core.NewCycleDriver(cfg, selector, assembler, consolidator, continuity, gate, clock, logger)
//	result, err := driver.Run(ctx)
//
// # Selection ("the I")
//
// [Selector] reduces one cycle's candidates to a single winner by total
// salience score (composite score plus connection boost), tie-broken by (stream_priority, stream_id, entry_id) per
// I4. Losing candidates below the forget threshold are archived via
// [Forgetter]; the rest are retained in their stream.
//
// # The Law Gate
//
// [LawGate] ("THE BOX") is an immutable invariant checker: its law set is
// fixed at construction (I3) and has no runtime mutation API. [Assembler]
// consults it before returning a [Thought]; a rejected Thought is marked
// Suppressed rather than dropped, so callers can audit the rejection.
//
// # Long-Term Memory
//
// [LongTermStore] has two concrete implementations: [SoyStore] persists to
// PostgreSQL with pgvector similarity search via soy, and [SQLiteStore] is
// a development fallback. [Consolidator] promotes high-salience entries to
// the conscious collection and [Forgetter] archives low-salience ones to
// unconscious, preserving semantic content before the stream entry is
// deleted (I5).
//
// # Pipeline Helpers
//
// The package wraps pipz connectors for Cycle processing, for callers
// building custom stage internals:
//
//   - [Sequence] - Sequential execution
//   - [Filter] - Conditional execution
//   - [Switch] - Route to different processors
//   - [Fallback] - Try alternatives on failure
//   - [Retry] - Retry on failure
//   - [Backoff] - Retry with exponential backoff
//   - [Timeout] - Enforce time limits
//   - [Concurrent] - Run processors in parallel
//   - [Race] - Return first successful result
//
// # Continuity
//
// [ContinuityManager] persists lifetime identity across restarts, flushing
// at most every FLUSH_N thoughts or FLUSH_SECONDS, whichever comes first
// (I6: at most one flush window of loss).
//
// # Observability
//
// The core emits capitan signals throughout execution; see signals.go for
// the complete list. [NewLogBridge] subscribes them to a zerolog process
// logger, and [NewMetrics] registers the prometheus counters, gauges, and
// histograms listed in the external interfaces.
package core
