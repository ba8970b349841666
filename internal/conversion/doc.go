// Package conversion defines the request/response types, domain errors, and
// collaborator interfaces shared by the tool service, the progress bridge,
// and the PDF backends.
package conversion
