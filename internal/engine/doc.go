// Package engine implements the sweep traversal engine.
//
// A traversal visits the elements of a collection (Sequence, Mapping,
// KeyStore or Source), runs a filter chain on each, invokes a callback on
// the selected ones and hands the results to an Aggregator. Options select
// the window, order, counters and mode of the traversal.
//
// ARCHITECTURE:
//
// Resolve -> Planner.Build -> Plan.execute
//
// Resolve merges engine defaults and per-call options into one Config.
// Its ir.Shape is fingerprinted; the Planner keeps one Plan per
// fingerprint, and the Plan carries the per-kind algorithm chosen for that
// shape (live sequence, snapshot, own-key fast path, drained key store...).
// Executing a plan drives a Context through one or more passes.
//
// Cooperative Scheduling:
// Traversals configured with Async or Cooperative become Tasks of the
// engine's Scheduler. Each task runs on its own goroutine, but a single
// driver hands a baton to one task at a time, so cooperative traversals
// share one logical thread. A task gives the baton back when it suspends
// (Suspend, Sleep, awaiting a Future, draining AwaitLimit futures) or when
// its priority tier's time slice is spent.
//
// Ordering:
// Within one traversal, elements are visited strictly in plan order and
// the callback runs at most once per element visit. Nothing orders two
// independent traversals beyond their priorities and suspensions.
//
// Events from every traversal carry a seq from the engine's logical Clock.
package engine
