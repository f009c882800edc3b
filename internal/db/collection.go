package db

import (
	"context"

	"github.com/ukydev/fleet-compliance/internal/models"
)

// DocumentQuery narrows a document listing. Zero values mean "no filter".
// All listings are scoped to one owner.
type DocumentQuery struct {
	OwnerID       string
	Type          models.DocumentType
	VehicleNumber string // prefix match on the normalized registration number
	Skip          int64
	Limit         int64
}

// DocumentCollection defines the interface for compliance document storage.
type DocumentCollection interface {
	InsertDocument(ctx context.Context, doc *models.Document) error
	FindDocumentByID(ctx context.Context, ownerID, id string) (*models.Document, error)
	FindDocuments(ctx context.Context, q DocumentQuery) ([]models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	DeleteDocument(ctx context.Context, ownerID, id string) error
	// RenewDocument persists a renewal: the successor is inserted and the
	// predecessor flagged as renewed in a single transaction, so no reader
	// ever observes one without the other.
	RenewDocument(ctx context.Context, predecessor, successor *models.Document) error
}
