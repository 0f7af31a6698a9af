package store

import (
	"context"
	"errors"
)

// DocumentKey is the key under which the application document is stored.
const DocumentKey = "heristone_app_data"

// ErrNotFound is returned by Get when the key has never been written or was
// deleted.
var ErrNotFound = errors.New("blob not found")

// Ports for persistence adapters.
type (
	// BlobStore keeps opaque documents by key. Every Put bumps the version
	// of the key; versions start at 1.
	BlobStore interface {
		Get(ctx context.Context, key string) (body []byte, version int64, err error)
		Put(ctx context.Context, key string, body []byte) (version int64, err error)
		Delete(ctx context.Context, key string) error
	}

	// Pinger is implemented by stores backed by an external resource.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
