package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/adapter"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/repository"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/usecase/auth"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

const (
	backendFirestore = "firestore"
	backendMemory    = "memory"

	sinkFirestore = "firestore"
	sinkBigQuery  = "bigquery"
	sinkNone      = "none"
)

// dependencies carries process wide collaborators. Tests replace the
// inference client and share one in-memory backend across invocations.
type dependencies struct {
	stdin         io.ReadCloser
	gemini        adapter.Gemini
	memory        *memoryBackend
	clientOptions []option.ClientOption
}

type memoryBackend struct {
	crop *repository.MemoryHistory[model.CropResult]
	soil *repository.MemoryHistory[model.SoilResult]
	sink *repository.MemoryLoginSink
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		crop: repository.NewMemoryHistory[model.CropResult](),
		soil: repository.NewMemoryHistory[model.SoilResult](),
		sink: &repository.MemoryLoginSink{},
	}
}

// config holds configuration values
type config struct {
	deps *dependencies

	// Logging
	logLevel  string
	logFormat string

	// Local session
	sessionDB string

	// Repository
	project     string
	database    string
	credentials string
	backend     string
	imageBucket string

	// Login sink
	loginSink       string
	bigqueryDataset string
	bigqueryTable   string

	// Inference
	geminiAPIKey   string
	geminiProject  string
	geminiLocation string
	geminiModel    string

	closers []io.Closer
}

func newConfig(d *dependencies) *config {
	return &config{deps: d}
}

func defaultSessionDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "agritech", "session.db")
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("AGRITECH_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       logging.FormatConsole,
			Sources:     cli.EnvVars("AGRITECH_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "session-db",
			Usage:       "Path of the local session database",
			Value:       defaultSessionDB(),
			Sources:     cli.EnvVars("AGRITECH_SESSION_DB"),
			Destination: &cfg.sessionDB,
		},
	}
}

// backendFlags returns flags for the remote history and login tables
func backendFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "History backend (firestore, memory)",
			Value:       backendFirestore,
			Sources:     cli.EnvVars("AGRITECH_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "credentials",
			Usage:       "Path to a service account key file",
			Sources:     cli.EnvVars("GOOGLE_APPLICATION_CREDENTIALS"),
			Destination: &cfg.credentials,
		},
		&cli.StringFlag{
			Name:        "image-bucket",
			Usage:       "Cloud Storage bucket for uploaded images. Images are stored inline when empty",
			Sources:     cli.EnvVars("AGRITECH_IMAGE_BUCKET"),
			Destination: &cfg.imageBucket,
		},
	}
}

// sinkFlags returns flags selecting where login events are recorded
func sinkFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "login-sink",
			Usage:       "Login event sink (firestore, bigquery, none)",
			Value:       sinkFirestore,
			Sources:     cli.EnvVars("AGRITECH_LOGIN_SINK"),
			Destination: &cfg.loginSink,
		},
		&cli.StringFlag{
			Name:        "bigquery-dataset",
			Usage:       "BigQuery dataset for login events",
			Sources:     cli.EnvVars("AGRITECH_BIGQUERY_DATASET"),
			Destination: &cfg.bigqueryDataset,
		},
		&cli.StringFlag{
			Name:        "bigquery-table",
			Usage:       "BigQuery table for login events",
			Value:       adapter.DefaultLoginTable,
			Sources:     cli.EnvVars("AGRITECH_BIGQUERY_TABLE"),
			Destination: &cfg.bigqueryTable,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini on Vertex AI",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name",
			Value:       adapter.DefaultGenerativeModel,
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// setup configures the logger and returns the context carrying it
func (cfg *config) setup(ctx context.Context, c *cli.Command) context.Context {
	logger := logging.New(cfg.logLevel, c.Root().ErrWriter, logging.WithFormat(cfg.logFormat))
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// Close releases every client opened through cfg
func (cfg *config) Close() {
	for i := len(cfg.closers) - 1; i >= 0; i-- {
		_ = cfg.closers[i].Close()
	}
	cfg.closers = nil
}

func (cfg *config) clientOptions() []option.ClientOption {
	opts := append([]option.ClientOption(nil), cfg.deps.clientOptions...)
	if cfg.credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.credentials))
	}
	return opts
}

func (cfg *config) newAuth(ctx context.Context, sink repository.LoginSink) (*auth.UseCase, error) {
	storage, err := adapter.NewLocalStorage(ctx, cfg.sessionDB)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open session store")
	}
	cfg.closers = append(cfg.closers, storage)

	return auth.New(auth.NewSessionStore(storage), sink), nil
}

// requireSession returns the stored session or model.ErrNotLoggedIn
func (cfg *config) requireSession(ctx context.Context) (*auth.Session, error) {
	uc, err := cfg.newAuth(ctx, nil)
	if err != nil {
		return nil, err
	}
	return uc.Require(ctx)
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.deps.gemini != nil {
		return cfg.deps.gemini, nil
	}

	opts := []adapter.GeminiOption{adapter.WithGenerativeModel(cfg.geminiModel)}
	switch {
	case cfg.geminiAPIKey != "":
		opts = append(opts, adapter.WithAPIKey(cfg.geminiAPIKey))
	case cfg.geminiProject != "":
		opts = append(opts, adapter.WithVertexAI(cfg.geminiProject, cfg.geminiLocation))
	default:
		return nil, goerr.New("gemini-api-key or gemini-project is required")
	}

	return adapter.NewGemini(ctx, opts...)
}

// newFirestore creates the Firestore repository
func (cfg *config) newFirestore(ctx context.Context) (*repository.Firestore, error) {
	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.New(ctx, cfg.project, cfg.database, cfg.clientOptions()...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	cfg.closers = append(cfg.closers, repo)
	return repo, nil
}

// newImageStorage returns nil when no bucket is configured
func (cfg *config) newImageStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.imageBucket == "" {
		return nil, nil
	}

	storage, err := adapter.NewStorage(ctx, cfg.imageBucket, cfg.clientOptions()...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage", goerr.V("bucket", cfg.imageBucket))
	}
	cfg.closers = append(cfg.closers, storage)
	return storage, nil
}

// newLoginSink creates the configured login event sink
func (cfg *config) newLoginSink(ctx context.Context) (repository.LoginSink, error) {
	if cfg.backend == backendMemory {
		return cfg.deps.memory.sink, nil
	}

	switch cfg.loginSink {
	case sinkNone:
		return repository.NopLoginSink{}, nil

	case sinkBigQuery:
		sink, err := adapter.NewBigQueryLoginSink(ctx, cfg.project, cfg.bigqueryDataset,
			[]adapter.BigQueryOption{adapter.WithLoginTable(cfg.bigqueryTable)},
			cfg.clientOptions()...,
		)
		if err != nil {
			return nil, err
		}
		cfg.closers = append(cfg.closers, sink)
		return sink, nil

	case sinkFirestore:
		return cfg.newFirestore(ctx)

	default:
		return nil, goerr.New("unsupported login sink", goerr.V("sink", cfg.loginSink))
	}
}

// newHistory creates the history table for the kind of R on the configured backend
func newHistory[R any](ctx context.Context, cfg *config, kind model.Kind, memory repository.History[R]) (repository.History[R], error) {
	switch cfg.backend {
	case backendMemory:
		return memory, nil

	case backendFirestore:
		repo, err := cfg.newFirestore(ctx)
		if err != nil {
			return nil, err
		}

		var opts []repository.HistoryOption
		images, err := cfg.newImageStorage(ctx)
		if err != nil {
			return nil, err
		}
		if images != nil {
			opts = append(opts, repository.WithImageStorage(images))
		}
		return repository.NewFirestoreHistory[R](repo, kind, opts...), nil

	default:
		return nil, goerr.New("unsupported backend", goerr.V("backend", cfg.backend))
	}
}
