// Package store keeps the pending submissions that were forwarded to the
// reviewer chat, keyed by the id of the forwarded message. Entries live
// from a successful forward until the matching reply is delivered.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/lawrelay/lawyer-bot/internal/models"
)

var ErrClosed = errors.New("store is closed")

// Store is the durable pending-submission index.
//
// Put must be durable when it returns nil. Get reports a missing key with
// ok=false and a nil error. Delete of a missing key is a no-op.
type Store interface {
	Put(ctx context.Context, sub models.Submission) error
	Get(ctx context.Context, forwardID string) (sub models.Submission, ok bool, err error)
	Delete(ctx context.Context, forwardID string) error
	LoadAll(ctx context.Context) (map[string]models.Submission, error)
	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the backend named by kind, rooted at path.
func Open(ctx context.Context, kind, path string) (Store, error) {
	switch kind {
	case BackendFile, "":
		return OpenFile(ctx, path)
	case BackendSQLite:
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}

func validate(sub models.Submission) error {
	if sub.ForwardID == "" {
		return errors.New("submission has no forward id")
	}
	return nil
}
