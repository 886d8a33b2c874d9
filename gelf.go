/*
Package gelf provides a reliable, backpressure-aware GELF transport in Go,
shipping application log records to a Graylog-compatible collector over TCP,
TLS, or UDP:

  - `gelf.Transport` - manages the connection lifecycle, the bounded message
    queue, and flush synchronization
  - `gelf.Format` - derives a GELF wire message from an arbitrary log record
  - `gelf.Message` - the flat JSON wire message, with NUL framing for the
    stream transports

The transport never blocks the producing application: `Send` formats and
enqueues (or writes) without waiting on the network, and all delivery
failures are funneled to a single error handler instead of surfacing on the
hot path. `Flush` is the one suspending operation, letting a caller wait,
bounded by a timeout, for the queue and in-flight writes to drain; it is
what `Shutdown` uses to avoid losing records submitted concurrently with
process exit.

Delivery semantics:

  - records are delivered in Send order as long as no overflow drop occurred
  - a disconnect preserves the queue; reconnection drains previously queued
    records before anything accepted afterwards
  - queue overflow is bounded and accounted: the configured policy decides
    whether the newest or the oldest record is dropped, and the dropped
    count is observable at any time
*/
package gelf
