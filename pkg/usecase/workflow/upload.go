package workflow

import (
	"context"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// UploadOutcome describes a finished upload. Stale is set when a newer
// upload or selection took over the display while this one was running;
// its record is still stored. PersistErr is set when storing the record
// failed, which does not undo the display.
type UploadOutcome[R any] struct {
	Result     *R
	Record     *model.Record[R]
	Stale      bool
	PersistErr error
}

// Upload clears the display, runs the analyzer and, on success, displays
// and stores the result. An analysis failure leaves the controller idle
// with the failure message and nothing is stored.
func (c *Controller[R]) Upload(ctx context.Context, req model.AnalysisRequest) (*UploadOutcome[R], error) {
	var moisture *int
	if c.kind.HasMoisture() {
		if err := model.ValidateMoisture(req.Moisture); err != nil {
			return nil, err
		}
		m := req.Moisture
		moisture = &m
	}

	var gen uint64
	c.update(func() bool {
		c.generation++
		gen = c.generation
		c.state.Phase = PhaseBusy
		c.state.Result = nil
		c.state.Image = nil
		c.state.Moisture = nil
		c.state.Error = ""
		return true
	})

	logger := logging.From(ctx).With("kind", c.kind, "generation", gen)

	result, err := c.analyzer.Analyze(ctx, req)
	if err != nil {
		var stale bool
		c.update(func() bool {
			stale = gen != c.generation
			if stale {
				return false
			}
			c.state.Phase = PhaseIdle
			c.state.Error = c.failureMessage
			return true
		})
		logger.Warn("analysis failed", "error", err, "stale", stale)

		return nil, goerr.Wrap(err, "failed to analyze upload", goerr.V("kind", c.kind))
	}

	outcome := &UploadOutcome[R]{Result: result}

	c.update(func() bool {
		outcome.Stale = gen != c.generation
		if outcome.Stale {
			return false
		}
		img := req.Image
		c.state.Phase = PhaseDisplaying
		c.state.Result = result
		c.state.Image = &img
		c.state.Moisture = moisture
		return true
	})

	record := &model.Record[R]{
		ScopeKey: c.session.ScopeKey,
		Image:    req.Image,
		Moisture: moisture,
		Result:   *result,
	}
	if err := c.history.Insert(ctx, record); err != nil {
		logger.Warn("failed to store analysis", "error", err)
		outcome.PersistErr = err
	} else {
		outcome.Record = record
	}

	if outcome.Stale {
		logger.Info("analysis finished after a newer request and was not displayed")
	}

	return outcome, nil
}
