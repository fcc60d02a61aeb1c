// Package collab declares the external collaborators this core calls
// but does not own. Implementations live in the host application; tests
// use the fakes in internal/testutil.
package collab

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRecord is the slice of the external profile store this core needs.
type UserRecord struct {
	ID       primitive.ObjectID
	FullName string
	Email    string
	Verified bool
}

// IdentityDirectory is the generic user/profile store. FindUser is the
// plain existence lookup submission needs (applicants are not yet
// verified); FindVerifiedUser additionally requires verified identity
// and returns nil when the user exists but is unverified.
type IdentityDirectory interface {
	FindUser(ctx context.Context, id primitive.ObjectID) (*UserRecord, error)
	FindVerifiedUser(ctx context.Context, id primitive.ObjectID) (*UserRecord, error)
	MarkVerified(ctx context.Context, id primitive.ObjectID, number string) error
	MarkRejected(ctx context.Context, id primitive.ObjectID) error
}

// DocumentStore owns the objects behind the document URLs stored on
// bearer, member, and application records. Discard is best-effort:
// failures are logged by callers and never fail the primary mutation.
type DocumentStore interface {
	Discard(ctx context.Context, url string) error
}

// NotificationSink receives fire-and-forget signals. Errors are logged
// and swallowed by callers.
type NotificationSink interface {
	ApplicationSubmitted(ctx context.Context, applicationID primitive.ObjectID) error
	ApplicationReviewed(ctx context.Context, applicationID primitive.ObjectID, decision string) error
}
