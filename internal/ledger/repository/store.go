package repository

import "context"

// DocumentStore persists the ledger document as a single unit.
type DocumentStore interface {
	// Load returns the persisted document, or an empty one if nothing has
	// been saved yet.
	Load(ctx context.Context) (Document, error)
	// Save replaces the persisted document. It returns only once the write
	// is durable.
	Save(ctx context.Context, doc Document) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
