// Package mongo stores the vendor approval audit trail in MongoDB.
package mongo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/marketplace/internal/domain/account"
)

var _ account.AuditLog = (*AuditLog)(nil)

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "ping mongodb")
	}
	return client, nil
}

type auditDoc struct {
	ID        string    `bson:"_id"`
	VendorID  string    `bson:"vendor_id"`
	AdminID   string    `bson:"admin_id"`
	From      string    `bson:"from"`
	To        string    `bson:"to"`
	CreatedAt time.Time `bson:"created_at"`
}

// AuditLog implements account.AuditLog on a MongoDB collection.
type AuditLog struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewAuditLog returns an AuditLog writing to database.collection.
func NewAuditLog(client *mongo.Client, database, collection string) *AuditLog {
	return &AuditLog{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}
}

// EnsureIndexes creates the (vendor_id, created_at) index used by List.
func (a *AuditLog) EnsureIndexes(ctx context.Context) error {
	_, err := a.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "vendor_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return errors.Wrap(err, "create audit index")
	}
	return nil
}

func (a *AuditLog) Record(ctx context.Context, e *account.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := a.coll.InsertOne(ctx, auditDoc{
		ID:        e.ID,
		VendorID:  e.VendorID,
		AdminID:   e.AdminID,
		From:      string(e.From),
		To:        string(e.To),
		CreatedAt: e.CreatedAt,
	})
	if err != nil {
		return errors.Wrap(err, "insert audit entry")
	}
	return nil
}

func (a *AuditLog) List(ctx context.Context, vendorID string, limit int64) ([]account.AuditEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := a.coll.Find(ctx, bson.M{"vendor_id": vendorID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find audit entries")
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []auditDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode audit entries")
	}

	out := make([]account.AuditEntry, len(docs))
	for i, d := range docs {
		out[i] = account.AuditEntry{
			ID:        d.ID,
			VendorID:  d.VendorID,
			AdminID:   d.AdminID,
			From:      account.VendorStatus(d.From),
			To:        account.VendorStatus(d.To),
			CreatedAt: d.CreatedAt,
		}
	}
	return out, nil
}

// Ping reports whether MongoDB is reachable. It backs the readiness check.
func (a *AuditLog) Ping(ctx context.Context) error {
	return a.client.Ping(ctx, nil)
}
