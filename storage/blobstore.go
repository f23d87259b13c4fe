package storage

import (
	"context"
	"errors"
)

// Blob store failure classes. Callers branch on these with errors.Is;
// the wrapped detail is for logs only and never reaches response bodies.
var (
	// ErrUpstreamUnavailable covers transport failures and timeouts talking to the backing store.
	ErrUpstreamUnavailable = errors.New("backing store unavailable")
	// ErrUpstreamRejected means the backing store answered but refused the request.
	ErrUpstreamRejected = errors.New("backing store rejected request")
	// ErrUpstreamProtocol means the backing store answered success but the payload
	// was missing fields the upstream contract promises.
	ErrUpstreamProtocol = errors.New("backing store protocol violation")
	// ErrHandleNotFound means the backing store no longer knows the handle.
	ErrHandleNotFound = errors.New("backing store handle not found")
)

// BlobStore is the backing store capability: persist bytes for an opaque
// handle, and turn a handle back into a short-lived download location.
// The returned location expires upstream and must never be persisted.
type BlobStore interface {
	// Store uploads the blob and returns the opaque handle identifying it.
	Store(ctx context.Context, data []byte, filename string) (string, error)
	// Resolve returns a fresh temporary URL for a previously stored handle.
	Resolve(ctx context.Context, handle string) (string, error)
}
