package repository

import (
	"context"
	"io"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/adapter"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreHistory stores records of one kind in its own collection
type FirestoreHistory[R any] struct {
	client     *firestore.Client
	kind       model.Kind
	collection string
	images     adapter.Storage
}

// HistoryOption is a functional option for FirestoreHistory
type HistoryOption func(*historyOptions)

type historyOptions struct {
	images adapter.Storage
}

// WithImageStorage keeps image payloads in object storage and only their
// key in the document. Without it the image is stored inline as a data
// URL, which is bounded by the Firestore document size limit.
func WithImageStorage(images adapter.Storage) HistoryOption {
	return func(o *historyOptions) {
		o.images = images
	}
}

// NewFirestoreHistory creates the history table for kind
func NewFirestoreHistory[R any](r *Firestore, kind model.Kind, opts ...HistoryOption) *FirestoreHistory[R] {
	var o historyOptions
	for _, opt := range opts {
		opt(&o)
	}

	return &FirestoreHistory[R]{
		client:     r.client,
		kind:       kind,
		collection: historyCollection(kind),
		images:     o.images,
	}
}

type historyDoc[R any] struct {
	ScopeKey  string    `firestore:"scope_key"`
	CreatedAt time.Time `firestore:"created_at,serverTimestamp"`
	Image     string    `firestore:"image,omitempty"`
	ImageKey  string    `firestore:"image_key,omitempty"`
	MIMEType  string    `firestore:"mime_type,omitempty"`
	Moisture  *int      `firestore:"moisture,omitempty"`
	Result    R         `firestore:"result"`
}

func (h *FirestoreHistory[R]) col() *firestore.CollectionRef {
	return h.client.Collection(h.collection)
}

func (h *FirestoreHistory[R]) imageKey(id model.RecordID) string {
	return "images/" + string(h.kind) + "/" + string(id)
}

func (h *FirestoreHistory[R]) List(ctx context.Context, scope model.ScopeKey, limit int) ([]*model.Record[R], error) {
	q := h.col().Where("scope_key", "==", string(scope)).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*model.Record[R]
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list history",
				goerr.V("collection", h.collection),
				goerr.V("scope", scope),
			)
		}

		rec, err := h.decode(ctx, snap)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, nil
}

func (h *FirestoreHistory[R]) Get(ctx context.Context, id model.RecordID) (*model.Record[R], error) {
	snap, err := h.col().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrRecordNotFound, "history record not found",
				goerr.V("collection", h.collection),
				goerr.V("id", id),
			)
		}
		return nil, goerr.Wrap(err, "failed to get history record", goerr.V("id", id))
	}

	return h.decode(ctx, snap)
}

func (h *FirestoreHistory[R]) Insert(ctx context.Context, record *model.Record[R]) error {
	ref := h.col().NewDoc()
	id := model.RecordID(ref.ID)

	doc := historyDoc[R]{
		ScopeKey: string(record.ScopeKey),
		Moisture: record.Moisture,
		Result:   record.Result,
	}

	if h.images != nil {
		key := h.imageKey(id)
		if err := h.putImage(ctx, key, record.Image); err != nil {
			return err
		}
		doc.ImageKey = key
		doc.MIMEType = record.Image.MIMEType
	} else {
		doc.Image = record.Image.DataURL()
	}

	wr, err := ref.Create(ctx, doc)
	if err != nil {
		return goerr.Wrap(err, "failed to insert history record",
			goerr.V("collection", h.collection),
			goerr.V("scope", record.ScopeKey),
		)
	}

	record.ID = id
	record.CreatedAt = wr.UpdateTime
	return nil
}

func (h *FirestoreHistory[R]) DeleteOne(ctx context.Context, id model.RecordID) error {
	ref := h.col().Doc(string(id))

	if h.images != nil {
		if err := h.images.Delete(ctx, h.imageKey(id)); err != nil {
			logging.From(ctx).Warn("failed to delete history image", "error", err, "id", id)
		}
	}

	// Deleting a missing document succeeds without a precondition.
	if _, err := ref.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete history record",
			goerr.V("collection", h.collection),
			goerr.V("id", id),
		)
	}
	return nil
}

func (h *FirestoreHistory[R]) DeleteAll(ctx context.Context, scope model.ScopeKey) error {
	iter := h.col().Where("scope_key", "==", string(scope)).Documents(ctx)
	defer iter.Stop()

	bw := h.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	var imageKeys []string

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to query history for deletion",
				goerr.V("collection", h.collection),
				goerr.V("scope", scope),
			)
		}

		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue history deletion", goerr.V("id", snap.Ref.ID))
		}
		jobs = append(jobs, job)

		if key, ok := snap.Data()["image_key"].(string); ok && key != "" {
			imageKeys = append(imageKeys, key)
		}
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to delete history record",
				goerr.V("collection", h.collection),
				goerr.V("scope", scope),
			)
		}
	}

	if h.images != nil {
		for _, key := range imageKeys {
			if err := h.images.Delete(ctx, key); err != nil {
				logging.From(ctx).Warn("failed to delete history image", "error", err, "key", key)
			}
		}
	}

	return nil
}

// Subscribe listens to the scope with a query snapshot listener. The
// listener starts asynchronously, so the first snapshot fires onChange once
// to cover writes made before it was attached. Every change of a later
// snapshot fires onChange once.
func (h *FirestoreHistory[R]) Subscribe(ctx context.Context, scope model.ScopeKey, onChange func()) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)
	it := h.col().Where("scope_key", "==", string(scope)).Snapshots(ctx)

	go func() {
		defer close(sub.done)
		defer it.Stop()

		first := true
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled {
					logging.From(ctx).Warn("history subscription stopped",
						"error", err,
						"collection", h.collection,
						"scope", scope,
					)
				}
				return
			}

			if first {
				first = false
				onChange()
				continue
			}

			for range snap.Changes {
				onChange()
			}
		}
	}()

	return sub, nil
}

func (h *FirestoreHistory[R]) decode(ctx context.Context, snap *firestore.DocumentSnapshot) (*model.Record[R], error) {
	var doc historyDoc[R]
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode history record", goerr.V("id", snap.Ref.ID))
	}

	rec := &model.Record[R]{
		ID:        model.RecordID(snap.Ref.ID),
		ScopeKey:  model.ScopeKey(doc.ScopeKey),
		CreatedAt: doc.CreatedAt,
		Moisture:  doc.Moisture,
		Result:    doc.Result,
	}

	rec.Image = h.loadImage(ctx, rec.ID, &doc)
	return rec, nil
}

// loadImage resolves the stored image of a document. A missing or broken
// image must not hide the rest of the history, so failures leave it empty.
func (h *FirestoreHistory[R]) loadImage(ctx context.Context, id model.RecordID, doc *historyDoc[R]) model.Image {
	switch {
	case doc.ImageKey != "" && h.images != nil:
		img, err := h.getImage(ctx, doc.ImageKey, doc.MIMEType)
		if err != nil {
			logging.From(ctx).Warn("failed to load history image", "error", err, "id", id, "key", doc.ImageKey)
			return model.Image{}
		}
		return img

	case doc.Image != "":
		img, err := model.ParseDataURL(doc.Image)
		if err != nil {
			logging.From(ctx).Warn("failed to decode history image", "error", err, "id", id)
			return model.Image{}
		}
		return img
	}

	return model.Image{}
}

func (h *FirestoreHistory[R]) putImage(ctx context.Context, key string, img model.Image) error {
	// Cancelling the writer context aborts the upload instead of committing
	// a partial object.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := h.images.Put(ctx, key, img.MIMEType)
	if err != nil {
		return goerr.Wrap(err, "failed to create image writer", goerr.V("key", key))
	}

	if _, err := w.Write(img.Data); err != nil {
		cancel()
		return goerr.Wrap(err, "failed to write image", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to close image writer", goerr.V("key", key))
	}
	return nil
}

func (h *FirestoreHistory[R]) getImage(ctx context.Context, key, mimeType string) (model.Image, error) {
	r, err := h.images.Get(ctx, key)
	if err != nil {
		return model.Image{}, goerr.Wrap(err, "failed to open image", goerr.V("key", key))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return model.Image{}, goerr.Wrap(err, "failed to read image", goerr.V("key", key))
	}

	if mimeType == "" {
		return model.NewImage(data), nil
	}
	return model.Image{MIMEType: mimeType, Data: data}, nil
}
