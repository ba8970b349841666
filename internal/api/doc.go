// Package api hosts the HTTP server, middleware, and REST handlers for the
// conversion tools. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/tools lists the tool descriptors.
//   - POST /v1/tools/convert and /v1/tools/get_info invoke the tools; convert
//     streams progress as server-sent events when the client asks for
//     text/event-stream.
//   - GET /v1/runs and /v1/runs/{run_id} report recorded conversion runs via
//     the RunRepository interface.
package api
