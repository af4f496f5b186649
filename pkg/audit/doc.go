// Package audit mirrors every management write (flag creation, updates,
// override changes, kill-switch activity) into a durable log sink.
//
// Recording is asynchronous: Record enqueues onto a buffered channel that a
// background worker drains into the sink, so the management write path never
// blocks on audit I/O. If the buffer fills, events are dropped and counted
// rather than applying backpressure to flag writes.
//
// Two sinks are provided: a SQLite-backed sink for durability and an
// in-memory sink for tests.
package audit
