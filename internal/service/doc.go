// Package service implements the convert and get_info tools on top of the
// progress bridge. Transports (HTTP, CLI) decode requests into the types
// defined here and render the responses as-is.
package service
