package workflow

import (
	"context"
	"sync"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/repository"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/usecase/auth"
	"github.com/m-mizutani/goerr/v2"
)

// Phase is the display state of a controller
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBusy
	PhaseDisplaying
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBusy:
		return "busy"
	case PhaseDisplaying:
		return "displaying"
	default:
		return "unknown"
	}
}

// Analyzer produces a structured result for one upload
type Analyzer[R any] interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) (*R, error)
}

// Confirmer asks the user to approve a destructive action
type Confirmer func(ctx context.Context, prompt string) (bool, error)

// State is a snapshot of what a view displays. Error is set only in the
// idle phase after a failed analysis.
type State[R any] struct {
	Phase         Phase
	Result        *R
	Image         *model.Image
	Moisture      *int
	Error         string
	History       []*model.Record[R]
	HistoryLoaded bool
}

const (
	cropFailureMessage = "Analysis failed. Please try a clearer image."
	soilFailureMessage = "Soil analysis failed. Try again with a clearer photo."

	cropClearPrompt = "Permanently delete all crop scans from your cloud history?"
	soilClearPrompt = "Wipe all cloud soil logs? This action is permanent."
)

// DefaultFailureMessage is the user facing message for a failed analysis
func DefaultFailureMessage(kind model.Kind) string {
	if kind == model.KindSoil {
		return soilFailureMessage
	}
	return cropFailureMessage
}

// DefaultClearPrompt is the confirmation question asked before clearing history
func DefaultClearPrompt(kind model.Kind) string {
	if kind == model.KindSoil {
		return soilClearPrompt
	}
	return cropClearPrompt
}

// Controller coordinates upload, analysis, persistence and history display
// for one task kind and one session.
type Controller[R any] struct {
	kind     model.Kind
	session  *auth.Session
	analyzer Analyzer[R]
	history  repository.History[R]

	limit          int
	observer       func(State[R])
	failureMessage string
	clearPrompt    string

	mu    sync.Mutex
	state State[R]
	// generation is bumped by every upload and selection. Only the holder of
	// the current generation may write the display.
	generation uint64
	refreshSeq uint64
	appliedSeq uint64

	sub repository.Subscription
}

// Option is a functional option for Controller
type Option[R any] func(*Controller[R])

// WithLimit sets the number of history records kept in the state
func WithLimit[R any](limit int) Option[R] {
	return func(c *Controller[R]) {
		c.limit = limit
	}
}

// WithObserver registers a callback receiving every state change. It is
// called without the controller lock held, possibly from the goroutine
// delivering history notifications.
func WithObserver[R any](fn func(State[R])) Option[R] {
	return func(c *Controller[R]) {
		c.observer = fn
	}
}

func WithFailureMessage[R any](msg string) Option[R] {
	return func(c *Controller[R]) {
		c.failureMessage = msg
	}
}

func WithClearPrompt[R any](prompt string) Option[R] {
	return func(c *Controller[R]) {
		c.clearPrompt = prompt
	}
}

// New creates a controller in the idle phase
func New[R any](kind model.Kind, session *auth.Session, analyzer Analyzer[R], history repository.History[R], opts ...Option[R]) (*Controller[R], error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if session == nil {
		return nil, goerr.Wrap(model.ErrNotLoggedIn, "workflow requires a session", goerr.V("kind", kind))
	}

	c := &Controller[R]{
		kind:           kind,
		session:        session,
		analyzer:       analyzer,
		history:        history,
		limit:          repository.DefaultLimit(kind),
		failureMessage: DefaultFailureMessage(kind),
		clearPrompt:    DefaultClearPrompt(kind),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Controller[R]) Kind() model.Kind { return c.kind }

// State returns a snapshot of the current state
func (c *Controller[R]) State() State[R] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller[R]) snapshotLocked() State[R] {
	s := c.state
	s.History = append([]*model.Record[R](nil), c.state.History...)
	return s
}

// update applies fn under the lock and publishes the resulting state
func (c *Controller[R]) update(fn func() bool) {
	c.mu.Lock()
	changed := fn()
	s := c.snapshotLocked()
	c.mu.Unlock()

	if changed && c.observer != nil {
		c.observer(s)
	}
}
