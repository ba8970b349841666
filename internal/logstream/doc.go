// Package logstream turns the service's zap output into an explicit, typed
// broadcast. A zapcore.Core teed into the root logger publishes every entry to
// a Broadcaster; subscribers register a filter predicate and a handler and see
// only the events their filter accepts.
//
// Events are attributed to a worker execution through a Tag carried as a zap
// field, so a logger bound with Bind stamps every line it writes.
package logstream
