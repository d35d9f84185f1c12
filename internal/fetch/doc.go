// Package fetch provides the HTTP snapshot client used by the fallback
// polling path.
//
// The snapshot endpoint returns every update newer than a given sequence
// number:
//
//	GET {base_url}/snapshot?since_seq=N
//
// The client serves only this endpoint. Transient failures (5xx, 429) are
// retried with jittered backoff inside Snapshot; non-2xx responses surface
// as APIError carrying the sync API's error code and message when the body
// provides them.
package fetch
