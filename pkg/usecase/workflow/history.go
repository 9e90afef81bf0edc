package workflow

import (
	"context"
	"errors"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Mount subscribes to changes of the session scope and then loads the
// history list, so no change between the two is missed. Every
// notification triggers a full Refresh.
func (c *Controller[R]) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.sub != nil {
		c.mu.Unlock()
		return goerr.New("controller is already mounted", goerr.V("kind", c.kind))
	}
	c.mu.Unlock()

	sub, err := c.history.Subscribe(ctx, c.session.ScopeKey, func() {
		if err := c.Refresh(ctx); err != nil {
			logging.From(ctx).Warn("failed to refresh history", "error", err, "kind", c.kind)
		}
	})
	if err != nil {
		return goerr.Wrap(err, "failed to subscribe to history", goerr.V("kind", c.kind))
	}

	if err := c.Refresh(ctx); err != nil {
		sub.Close()
		return err
	}

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	return nil
}

// Unmount closes the history subscription. It is safe to call on an
// unmounted controller.
func (c *Controller[R]) Unmount() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// Refresh re-fetches the history list. When refreshes overlap, only the
// most recently started one is applied.
func (c *Controller[R]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.refreshSeq++
	seq := c.refreshSeq
	c.mu.Unlock()

	records, err := c.history.List(ctx, c.session.ScopeKey, c.limit)
	if err != nil {
		return goerr.Wrap(err, "failed to list history",
			goerr.V("kind", c.kind),
			goerr.V("scope", c.session.ScopeKey),
		)
	}

	c.update(func() bool {
		if seq < c.appliedSeq {
			return false
		}
		c.appliedSeq = seq
		c.state.History = records
		c.state.HistoryLoaded = true
		return true
	})
	return nil
}

// Select displays a past record without calling the analyzer. Any analysis
// still in flight loses the right to write the display.
func (c *Controller[R]) Select(record *model.Record[R]) {
	c.update(func() bool {
		c.generation++
		result := record.Result
		img := record.Image
		c.state.Phase = PhaseDisplaying
		c.state.Result = &result
		c.state.Image = &img
		c.state.Moisture = record.Moisture
		c.state.Error = ""
		return true
	})
}

// SelectID selects a record from the loaded history list
func (c *Controller[R]) SelectID(id model.RecordID) (*model.Record[R], error) {
	c.mu.Lock()
	var found *model.Record[R]
	for _, r := range c.state.History {
		if r.ID == id {
			found = r
			break
		}
	}
	c.mu.Unlock()

	if found == nil {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "record is not in the loaded history",
			goerr.V("kind", c.kind),
			goerr.V("id", id),
		)
	}

	c.Select(found)
	return found, nil
}

// Delete removes a record of the session scope. The display is left as is
// and the list follows through the subscription. A missing record is a
// no-op; a record of another scope is reported as not found.
func (c *Controller[R]) Delete(ctx context.Context, id model.RecordID) error {
	rec, err := c.history.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrRecordNotFound) {
			return nil
		}
		return goerr.Wrap(err, "failed to look up history record",
			goerr.V("kind", c.kind),
			goerr.V("id", id),
		)
	}
	if rec.ScopeKey != c.session.ScopeKey {
		return goerr.Wrap(model.ErrRecordNotFound, "history record not found",
			goerr.V("kind", c.kind),
			goerr.V("id", id),
		)
	}

	if err := c.history.DeleteOne(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete history record",
			goerr.V("kind", c.kind),
			goerr.V("id", id),
		)
	}
	return nil
}

// ClearAll deletes every record of the session scope once confirm approves.
// It reports whether the deletion ran.
func (c *Controller[R]) ClearAll(ctx context.Context, confirm Confirmer) (bool, error) {
	if confirm == nil {
		return false, goerr.New("confirmation is required to clear history", goerr.V("kind", c.kind))
	}

	ok, err := confirm(ctx, c.clearPrompt)
	if err != nil {
		return false, goerr.Wrap(err, "failed to confirm history clear", goerr.V("kind", c.kind))
	}
	if !ok {
		return false, nil
	}

	if err := c.history.DeleteAll(ctx, c.session.ScopeKey); err != nil {
		return false, goerr.Wrap(err, "failed to clear history",
			goerr.V("kind", c.kind),
			goerr.V("scope", c.session.ScopeKey),
		)
	}

	logging.From(ctx).Info("history cleared", "kind", c.kind)
	return true, nil
}
