package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	// ErrRenewConflict means the predecessor was renewed by a concurrent
	// request between the eligibility check and the write.
	ErrRenewConflict = errors.New("document already renewed")
)

// MongoDocumentCollection implements DocumentCollection for MongoDB.
type MongoDocumentCollection struct {
	Collection *mongo.Collection
}

// InsertDocument inserts a compliance document into the collection.
func (c *MongoDocumentCollection) InsertDocument(ctx context.Context, doc *models.Document) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()
	_, err := c.Collection.InsertOne(ctx, doc)
	return err
}

// FindDocumentByID finds one document scoped to its owner.
func (c *MongoDocumentCollection) FindDocumentByID(ctx context.Context, ownerID, id string) (*models.Document, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid document ID: %w", err)
	}

	var doc models.Document
	err = c.Collection.FindOne(ctx, bson.M{"_id": objectID, "owner_id": ownerID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// FindDocuments lists documents for one owner, newest window first.
func (c *MongoDocumentCollection) FindDocuments(ctx context.Context, q DocumentQuery) ([]models.Document, error) {
	// An empty OwnerID means an unscoped listing; only backend jobs such as
	// the expiry reminder scan use it.
	filter := bson.M{}
	if q.OwnerID != "" {
		filter["owner_id"] = q.OwnerID
	}
	if q.Type != "" {
		filter["document_type"] = q.Type
	}
	if q.VehicleNumber != "" {
		filter["vehicle_number"] = bson.M{"$regex": "^" + models.NormalizeVehicleNumber(q.VehicleNumber)}
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if q.Skip > 0 {
		findOptions.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		findOptions.SetLimit(q.Limit)
	}

	cursor, err := c.Collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateDocument replaces a document by its ID, scoped to its owner.
func (c *MongoDocumentCollection) UpdateDocument(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now()
	result, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": doc.ID, "owner_id": doc.OwnerID},
		bson.M{"$set": doc})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteDocument deletes a document by its ID, scoped to its owner.
func (c *MongoDocumentCollection) DeleteDocument(ctx context.Context, ownerID, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid document ID: %w", err)
	}
	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": objectID, "owner_id": ownerID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// RenewDocument inserts the successor and flags the predecessor inside one
// session transaction. The predecessor update is conditional on
// is_renewed=false, so a concurrent renewal of the same predecessor aborts
// the whole transaction instead of creating duplicate successors.
func (c *MongoDocumentCollection) RenewDocument(ctx context.Context, predecessor, successor *models.Document) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}

	session, err := c.Collection.Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	if successor.ID.IsZero() {
		successor.ID = primitive.NewObjectID()
	}
	now := time.Now()
	successor.CreatedAt = now
	successor.UpdatedAt = now

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := c.Collection.InsertOne(sc, successor); err != nil {
			return nil, err
		}
		result, err := c.Collection.UpdateOne(sc,
			bson.M{"_id": predecessor.ID, "owner_id": predecessor.OwnerID, "is_renewed": false},
			bson.M{"$set": bson.M{
				"is_renewed":      true,
				"renewed_into_id": successor.ID,
				"updated_at":      now,
			}})
		if err != nil {
			return nil, err
		}
		if result.MatchedCount == 0 {
			return nil, ErrRenewConflict
		}
		return nil, nil
	})
	return err
}
