package testutil

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sanghsetu/sanghsetu/internal/app/collab"
)

// FakeDirectory is an in-memory collab.IdentityDirectory.
type FakeDirectory struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*collab.UserRecord

	// Numbers records the verification number given to each user on
	// MarkVerified.
	Numbers map[primitive.ObjectID]string
}

func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{
		users:   make(map[primitive.ObjectID]*collab.UserRecord),
		Numbers: make(map[primitive.ObjectID]string),
	}
}

// AddUser registers a user and returns its generated ID.
func (d *FakeDirectory) AddUser(fullName, email string, verified bool) primitive.ObjectID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := primitive.NewObjectID()
	d.users[id] = &collab.UserRecord{ID: id, FullName: fullName, Email: email, Verified: verified}
	return id
}

func (d *FakeDirectory) FindUser(ctx context.Context, id primitive.ObjectID) (*collab.UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (d *FakeDirectory) FindVerifiedUser(ctx context.Context, id primitive.ObjectID) (*collab.UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok || !u.Verified {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (d *FakeDirectory) MarkVerified(ctx context.Context, id primitive.ObjectID, number string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[id]; ok {
		u.Verified = true
	}
	d.Numbers[id] = number
	return nil
}

func (d *FakeDirectory) MarkRejected(ctx context.Context, id primitive.ObjectID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[id]; ok {
		u.Verified = false
	}
	delete(d.Numbers, id)
	return nil
}

// FakeDocs records discarded document URLs.
type FakeDocs struct {
	mu        sync.Mutex
	Discarded []string
}

func (d *FakeDocs) Discard(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Discarded = append(d.Discarded, url)
	return nil
}

// FakeNotifier records notification signals.
type FakeNotifier struct {
	mu        sync.Mutex
	Submitted []primitive.ObjectID
	Reviewed  []string // "<id>:<decision>"
}

func (n *FakeNotifier) ApplicationSubmitted(ctx context.Context, applicationID primitive.ObjectID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Submitted = append(n.Submitted, applicationID)
	return nil
}

func (n *FakeNotifier) ApplicationReviewed(ctx context.Context, applicationID primitive.ObjectID, decision string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Reviewed = append(n.Reviewed, applicationID.Hex()+":"+decision)
	return nil
}
