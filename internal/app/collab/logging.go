package collab

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// LogDocumentStore records discard requests in the log. Stands in until
// a real object store owns the document URLs.
type LogDocumentStore struct {
	Log *zap.Logger
}

func (s LogDocumentStore) Discard(ctx context.Context, url string) error {
	s.Log.Info("document discarded", zap.String("url", url))
	return nil
}

// LogNotifier writes notification signals to the log instead of a
// delivery channel.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) ApplicationSubmitted(ctx context.Context, applicationID primitive.ObjectID) error {
	n.Log.Info("notify: application submitted", zap.String("application_id", applicationID.Hex()))
	return nil
}

func (n LogNotifier) ApplicationReviewed(ctx context.Context, applicationID primitive.ObjectID, decision string) error {
	n.Log.Info("notify: application reviewed",
		zap.String("application_id", applicationID.Hex()),
		zap.String("decision", decision))
	return nil
}
