package store

import (
	"context"
	"encoding/json"
)

// Store is the document persistence capability consumed by the marketplace
// services. Every operation is atomic for a single document; nothing here
// spans collections, which is why multi-collection writes are compensated
// sagas at the service layer.
type Store interface {
	// Insert adds a document and returns its generated id. A non-empty
	// uniqueKey is enforced unique within the collection; a second insert
	// with the same key fails with ErrDuplicateKey.
	Insert(ctx context.Context, collection, uniqueKey string, doc interface{}) (string, error)

	// FindOne returns the document with the given id, or ErrNotFound.
	FindOne(ctx context.Context, collection, id string) (Document, error)

	// FindByKey returns the document with the given unique key, or ErrNotFound.
	FindByKey(ctx context.Context, collection, uniqueKey string) (Document, error)

	// FindAll returns every document in a collection in insertion order.
	FindAll(ctx context.Context, collection string) ([]Document, error)

	// UpdateOne applies field patches (dotted paths) to one document and
	// reports how many documents were modified (0 or 1).
	UpdateOne(ctx context.Context, collection, id string, patch map[string]interface{}) (int64, error)

	// DeleteOne removes one document and reports how many were deleted.
	DeleteOne(ctx context.Context, collection, id string) (int64, error)

	// IncrementField atomically adds delta to a numeric field.
	IncrementField(ctx context.Context, collection, id, path string, delta float64) error

	// PushArray atomically appends values onto an array field, preserving
	// order and duplicates.
	PushArray(ctx context.Context, collection, id, path string, values ...interface{}) error

	// PullArray atomically removes every element equal to value from an
	// array field and reports how many were removed.
	PullArray(ctx context.Context, collection, id, path string, value interface{}) (int, error)

	// Mutate applies an arbitrary read-modify-write to one document under
	// the same single-document atomicity as the field mutators. The apply
	// callback receives the decoded body and edits it in place.
	Mutate(ctx context.Context, collection, id string, apply func(map[string]interface{}) error) error
}

// DecodeBody unmarshals a document body into out.
func DecodeBody(doc Document, out interface{}) error {
	return json.Unmarshal(doc.Body, out)
}
