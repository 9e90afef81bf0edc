package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
)

const (
	collectionLoginEntries = "login_entries"
	collectionCropHistory  = "crop_history"
	collectionSoilHistory  = "soil_history"
)

// Firestore holds the client shared by the login sink and the history tables
type Firestore struct {
	client *firestore.Client
}

// New creates a Firestore backed repository
func New(ctx context.Context, projectID, databaseID string, opts ...option.ClientOption) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("project is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID),
		)
	}

	return &Firestore{client: client}, nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

type loginEntryDoc struct {
	FullName  string    `firestore:"full_name"`
	Email     string    `firestore:"email"`
	Timestamp time.Time `firestore:"timestamp"`
}

// RecordLogin appends a row to the login_entries collection
func (r *Firestore) RecordLogin(ctx context.Context, entry *model.LoginEntry) error {
	doc := loginEntryDoc{
		FullName:  entry.FullName,
		Email:     entry.Email,
		Timestamp: entry.Timestamp,
	}

	if _, err := r.client.Collection(collectionLoginEntries).Doc(string(entry.ID)).Create(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to record login entry", goerr.V("entry_id", entry.ID))
	}
	return nil
}

func historyCollection(kind model.Kind) string {
	if kind == model.KindSoil {
		return collectionSoilHistory
	}
	return collectionCropHistory
}
