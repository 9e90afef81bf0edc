package adapter

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
)

const DefaultLoginTable = "login_entries"

// BigQueryLoginSink appends login events to a BigQuery table with the
// streaming inserter. The table is append-only; rows are never read back.
type BigQueryLoginSink struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// BigQueryOption is a functional option for BigQueryLoginSink
type BigQueryOption func(*BigQueryLoginSink)

// WithLoginTable overrides the destination table name
func WithLoginTable(table string) BigQueryOption {
	return func(s *BigQueryLoginSink) {
		if table != "" {
			s.table = table
		}
	}
}

// NewBigQueryLoginSink creates a login sink writing to project.dataset.table
func NewBigQueryLoginSink(ctx context.Context, projectID, dataset string, opts []BigQueryOption, clientOpts ...option.ClientOption) (*BigQueryLoginSink, error) {
	if projectID == "" {
		return nil, goerr.New("bigquery project is required")
	}
	if dataset == "" {
		return nil, goerr.New("bigquery dataset is required")
	}

	client, err := bigquery.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client", goerr.V("project", projectID))
	}

	s := &BigQueryLoginSink{
		client:  client,
		dataset: dataset,
		table:   DefaultLoginTable,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

type loginRow struct {
	ID        string    `bigquery:"id"`
	FullName  string    `bigquery:"full_name"`
	Email     string    `bigquery:"email"`
	Timestamp time.Time `bigquery:"timestamp"`
}

// RecordLogin streams one login row into the table
func (s *BigQueryLoginSink) RecordLogin(ctx context.Context, entry *model.LoginEntry) error {
	row := &loginRow{
		ID:        string(entry.ID),
		FullName:  entry.FullName,
		Email:     entry.Email,
		Timestamp: entry.Timestamp,
	}

	inserter := s.client.Dataset(s.dataset).Table(s.table).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return goerr.Wrap(err, "failed to insert login entry",
			goerr.V("dataset", s.dataset),
			goerr.V("table", s.table),
		)
	}
	return nil
}

func (s *BigQueryLoginSink) Close() error {
	return s.client.Close()
}
