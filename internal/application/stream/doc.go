// Package stream bridges asynchronous graph execution to a
// synchronous consumer. The Bridge drives the runtime on its own
// goroutine, the Formatter normalizes every raw execution event into
// client-facing payloads, and the resulting FIFO channel preserves
// emission order and always terminates with an end payload.
package stream
