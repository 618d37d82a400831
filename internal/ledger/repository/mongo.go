package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	ledgererrors "interviewdesk/internal/ledger/errors"
	"interviewdesk/pkg/config"
	"interviewdesk/pkg/logger"
	"interviewdesk/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	CollectionName = "Ledger"
	// CorruptCollectionName keeps ledger documents that could not be decoded.
	CorruptCollectionName = "Ledger_corrupt"

	ledgerDocumentID = "bookings"
)

type mongoLedgerEntry struct {
	Date   string              `bson:"date"`
	Time   string              `bson:"time"`
	Record model.BookingRecord `bson:",inline"`
}

type mongoLedgerDocument struct {
	ID        string             `bson:"_id"`
	Entries   []mongoLedgerEntry `bson:"entries"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

type mongoDocumentStore struct {
	collection   *mongo.Collection
	corrupt      *mongo.Collection
	readTimeout  time.Duration
	writeTimeout time.Duration
	log          *logger.Logger

	find       func(ctx context.Context) (bson.Raw, error)
	quarantine func(ctx context.Context, raw bson.Raw) (string, error)
}

// NewMongoDocumentStore keeps the ledger as one document in the Ledger
// collection, replaced whole on every save. A stored document that cannot be
// decoded is copied to Ledger_corrupt and the ledger starts empty.
func NewMongoDocumentStore(cfg *config.Config) DocumentStore {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return newMongoDocumentStore(
		db.Collection(CollectionName),
		db.Collection(CorruptCollectionName),
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.Log.Component("ledger"),
	)
}

func newMongoDocumentStore(collection, corrupt *mongo.Collection, readTimeout, writeTimeout time.Duration, log *logger.Logger) *mongoDocumentStore {
	s := &mongoDocumentStore{
		collection:   collection,
		corrupt:      corrupt,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		log:          log,
	}
	s.find = s.findLedger
	s.quarantine = s.copyToCorrupt
	return s
}

// withTimeout bounds ctx by timeout without extending an earlier deadline.
func (s *mongoDocumentStore) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *mongoDocumentStore) Load(ctx context.Context) (Document, error) {
	ctx, cancel := s.withTimeout(ctx, s.readTimeout)
	defer cancel()

	raw, err := s.find(ctx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("failed to load ledger document: %w", err)
	}

	doc, err := documentFromRaw(raw)
	if err != nil {
		backupID, backupErr := s.quarantine(ctx, raw)
		if backupErr != nil {
			return nil, fmt.Errorf("%w: %v (backup failed: %v)", ledgererrors.ErrCorruptDocument, err, backupErr)
		}
		s.log.Warn("Ledger document is corrupt, starting empty",
			"collection", CorruptCollectionName,
			"backup_id", backupID,
			"error", err,
		)
		return NewDocument(), nil
	}
	return doc, nil
}

func (s *mongoDocumentStore) findLedger(ctx context.Context) (bson.Raw, error) {
	return s.collection.FindOne(ctx, bson.M{"_id": ledgerDocumentID}).Raw()
}

// copyToCorrupt stores raw under a fresh id in the corrupt collection, which
// has no schema validator.
func (s *mongoDocumentStore) copyToCorrupt(ctx context.Context, raw bson.Raw) (string, error) {
	id := fmt.Sprintf("%s-%d", ledgerDocumentID, time.Now().UnixNano())
	_, err := s.corrupt.InsertOne(ctx, bson.M{
		"_id":         id,
		"document":    raw,
		"detected_at": time.Now().UTC(),
	})
	return id, err
}

func documentFromRaw(raw bson.Raw) (Document, error) {
	var stored mongoLedgerDocument
	if err := bson.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	doc := NewDocument()
	for _, entry := range stored.Entries {
		if entry.Date == "" || entry.Time == "" {
			return nil, fmt.Errorf("ledger entry without slot key: %q %q", entry.Date, entry.Time)
		}
		doc.put(model.SlotKey{Date: entry.Date, Time: entry.Time}, entry.Record)
	}
	return doc, nil
}

func (s *mongoDocumentStore) Save(ctx context.Context, doc Document) error {
	ctx, cancel := s.withTimeout(ctx, s.writeTimeout)
	defer cancel()

	stored := mongoLedgerDocument{
		ID:        ledgerDocumentID,
		Entries:   make([]mongoLedgerEntry, 0, doc.len()),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	for _, entry := range doc.entries() {
		stored.Entries = append(stored.Entries, mongoLedgerEntry{
			Date:   entry.Key.Date,
			Time:   entry.Key.Time,
			Record: entry.Record,
		})
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": ledgerDocumentID}, stored, opts); err != nil {
		return fmt.Errorf("failed to save ledger document: %w", err)
	}
	return nil
}

func (s *mongoDocumentStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx, s.readTimeout)
	defer cancel()
	return s.collection.Database().Client().Ping(ctx, readpref.Primary())
}

// Close is a no-op: the mongo client is shared and disconnected by its owner.
func (s *mongoDocumentStore) Close(context.Context) error {
	return nil
}
