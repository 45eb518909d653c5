package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/savings/models"
)

// expansionState is the pagination state of the loaded table.
type expansionState int

const (
	stateSearching expansionState = iota
	stateExpanding
	stateExhausted
)

func (s expansionState) String() string {
	switch s {
	case stateSearching:
		return "searching"
	case stateExpanding:
		return "expanding"
	case stateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("expansionState(%d)", int(s))
	}
}

// trigger is one located "see more" control.
type trigger interface {
	Activate(ctx context.Context) error
}

// triggerSource locates the next trigger. Find returns a nil trigger and a
// nil error when none appears within wait.
type triggerSource interface {
	Find(ctx context.Context, wait time.Duration) (trigger, error)
}

// expander drives the searching → expanding → exhausted loop.
type expander struct {
	source        triggerSource
	wait          time.Duration
	pause         time.Duration
	maxExpansions int
	sleep         func(ctx context.Context, d time.Duration) error

	// activateTimeout bounds each Activate call; 0 leaves it unbounded.
	activateTimeout time.Duration
}

// run activates triggers until none is found or the cap is hit and returns
// the number of activations. A failed activation aborts the load.
func (e *expander) run(ctx context.Context) (int, error) {
	state := stateSearching
	expansions := 0
	var current trigger

	for state != stateExhausted {
		switch state {
		case stateSearching:
			if expansions >= e.maxExpansions {
				slog.Warn("expansion cap reached, reading table as is",
					"expansions", expansions,
					"max", e.maxExpansions,
				)
				state = stateExhausted
				continue
			}

			t, err := e.source.Find(ctx, e.wait)
			if err != nil {
				return expansions, err
			}
			if t == nil {
				slog.Info("no more 'see more' rows", "expansions", expansions)
				state = stateExhausted
				continue
			}
			current = t
			state = stateExpanding

		case stateExpanding:
			if err := e.activate(ctx, current); err != nil {
				if ctx.Err() != nil {
					return expansions, categorizeError(ctx.Err(), "expansion interrupted")
				}
				return expansions, models.NewScrapeError(
					models.ErrCodeExpansion,
					fmt.Sprintf("activating 'see more' #%d failed", expansions+1),
					err,
				)
			}
			expansions++
			slog.Debug("expanded table", "expansions", expansions)

			if err := e.sleep(ctx, e.pause); err != nil {
				return expansions, categorizeError(err, "expansion interrupted")
			}
			current = nil
			state = stateSearching
		}
	}

	return expansions, nil
}

// activate runs one activation under its own timeout. A covered or detached
// trigger otherwise keeps rod retrying until the run context ends.
func (e *expander) activate(ctx context.Context, t trigger) error {
	if e.activateTimeout <= 0 {
		return t.Activate(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, e.activateTimeout)
	defer cancel()
	return t.Activate(actx)
}

// rodTriggers finds triggers on a live page by XPath.
type rodTriggers struct {
	page  *rod.Page
	xpath string
}

func (r *rodTriggers) Find(ctx context.Context, wait time.Duration) (trigger, error) {
	el, err := r.page.Context(ctx).Timeout(wait).ElementX(r.xpath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, categorizeError(ctx.Err(), "expansion interrupted")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, models.NewScrapeError(models.ErrCodeExpansion, "'see more' lookup failed", err)
	}
	return &rodTrigger{el: el.CancelTimeout()}, nil
}

// rodTrigger is a located trigger row.
type rodTrigger struct {
	el *rod.Element
}

func (t *rodTrigger) Activate(ctx context.Context) error {
	el := t.el.Context(ctx)
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll into view: %w", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
