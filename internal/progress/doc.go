// Package progress carries conversion progress away from workers without ever
// blocking them. It has two halves:
//
//   - Notifier and Mailbox deliver (current, total) pairs to the caller that
//     started a run, in submission order, dropping silently once the caller is
//     gone.
//   - Hub batches run lifecycle events on a background goroutine and fans them
//     out to pluggable sinks such as Prometheus metrics, logs, or the run store.
package progress
