// Package ctxkey defines the typed context keys shared across layers.
package ctxkey

type key string

// RequestID carries the per-request correlation id.
const RequestID key = "request_id"
