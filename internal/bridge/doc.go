// Package bridge connects a blocking, log-only conversion routine to callers
// that want incremental progress.
//
// The routine's only progress signal is the text it logs. A Dispatcher hands
// the routine to a worker, and the worker binds a job-scoped Interceptor to
// its own execution tag before calling it. The Interceptor watches the shared
// log stream, keeps the lines stamped with that tag, counts the ones carrying
// a "(n/m)" marker, and forwards the clamped count to the caller's Notifier.
// Every run detaches its Interceptor before the Dispatcher returns, whether
// the routine succeeded, failed, or panicked.
package bridge
