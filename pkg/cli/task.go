package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/repository"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/usecase/analysis"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/usecase/auth"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/usecase/workflow"
	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

type analyzerFunc[R any] func(ctx context.Context, req model.AnalysisRequest) (*R, error)

func (f analyzerFunc[R]) Analyze(ctx context.Context, req model.AnalysisRequest) (*R, error) {
	return f(ctx, req)
}

// task binds one analysis kind to its result type and presentation
type task[R any] struct {
	kind     model.Kind
	usage    string
	analyzer func(*analysis.Gateway) analyzerFunc[R]
	memory   func(*memoryBackend) repository.History[R]
	render   func(io.Writer, *R)
	title    func(*R) string
}

func taskCommand[R any](d *dependencies, t *task[R]) *cli.Command {
	return &cli.Command{
		Name:  string(t.kind),
		Usage: t.usage,
		Commands: []*cli.Command{
			analyzeCommand(d, t),
			historyCommand(d, t),
			showCommand(d, t),
			deleteCommand(d, t),
			clearCommand(d, t),
			consoleCommand(d, t),
		},
	}
}

func (t *task[R]) newHistory(ctx context.Context, cfg *config) (repository.History[R], error) {
	return newHistory[R](ctx, cfg, t.kind, t.memory(cfg.deps.memory))
}

// newController wires a controller. The analyzer is only built when
// withAnalyzer is set so that history commands need no inference credentials.
func (t *task[R]) newController(ctx context.Context, cfg *config, session *auth.Session, withAnalyzer bool, opts ...workflow.Option[R]) (*workflow.Controller[R], error) {
	history, err := t.newHistory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var analyzer workflow.Analyzer[R]
	if withAnalyzer {
		gemini, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		gw, err := analysis.New(gemini)
		if err != nil {
			return nil, err
		}
		analyzer = t.analyzer(gw)
	}

	return workflow.New[R](t.kind, session, analyzer, history, opts...)
}

func moistureFlag(dst *int64) cli.Flag {
	return &cli.IntFlag{
		Name:        "moisture",
		Aliases:     []string{"m"},
		Usage:       "Soil moisture percentage (0-100)",
		Value:       50,
		Sources:     cli.EnvVars("AGRITECH_MOISTURE"),
		Destination: dst,
	}
}

func analyzeCommand[R any](d *dependencies, t *task[R]) *cli.Command {
	var (
		cfg      = newConfig(d)
		moisture int64
		output   string
	)

	flags := []cli.Flag{outputFlag(&output)}
	if t.kind.HasMoisture() {
		flags = append(flags, moistureFlag(&moisture))
	}
	flags = append(flags, globalFlags(cfg)...)
	flags = append(flags, backendFlags(cfg)...)
	flags = append(flags, llmFlags(cfg)...)

	return &cli.Command{
		Name:      "analyze",
		Usage:     "Analyze a photo and save the result to history",
		ArgsUsage: "<image-path>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx, c)
			defer cfg.Close()

			if c.Args().Len() != 1 {
				return goerr.New("image path is required")
			}

			session, err := cfg.requireSession(ctx)
			if err != nil {
				return err
			}

			img, err := model.LoadImage(c.Args().First())
			if err != nil {
				return err
			}

			ctrl, err := t.newController(ctx, cfg, session, true)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(c.Root().ErrWriter))
			s.Suffix = " Analyzing " + string(t.kind) + " image..."
			s.Start()
			outcome, err := ctrl.Upload(ctx, model.AnalysisRequest{Image: img, Moisture: int(moisture)})
			s.Stop()

			if err != nil {
				if errors.Is(err, model.ErrInvalidMoisture) {
					return err
				}
				fmt.Fprintln(w, ctrl.State().Error)
				return err
			}

			if output != outputText {
				if outcome.Record != nil {
					return writeStructured(w, output, outcome.Record)
				}
				return writeStructured(w, output, outcome.Result)
			}

			t.render(w, outcome.Result)
			fmt.Fprintln(w)
			if outcome.PersistErr != nil {
				fmt.Fprintln(w, "Result could not be saved to history")
			} else {
				fmt.Fprintf(w, "Saved as %s\n", outcome.Record.ID)
			}
			return nil
		},
	}
}

func historyCommand[R any](d *dependencies, t *task[R]) *cli.Command {
	var (
		cfg    = newConfig(d)
		limit  int64
		output string
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of records to list",
			Value:       int64(repository.DefaultLimit(t.kind)),
			Sources:     cli.EnvVars("AGRITECH_HISTORY_LIMIT"),
			Destination: &limit,
		},
		outputFlag(&output),
	}
	flags = append(flags, globalFlags(cfg)...)
	flags = append(flags, backendFlags(cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "List recent analyses, newest first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx, c)
			defer cfg.Close()

			session, err := cfg.requireSession(ctx)
			if err != nil {
				return err
			}

			ctrl, err := t.newController(ctx, cfg, session, false, workflow.WithLimit[R](int(limit)))
			if err != nil {
				return err
			}
			if err := ctrl.Refresh(ctx); err != nil {
				return err
			}

			records := ctrl.State().History
			if output != outputText {
				return writeStructured(c.Root().Writer, output, records)
			}
			return renderHistory(c.Root().Writer, records, t.title)
		},
	}
}

func showCommand[R any](d *dependencies, t *task[R]) *cli.Command {
	var (
		cfg    = newConfig(d)
		output string
	)

	flags := []cli.Flag{outputFlag(&output)}
	flags = append(flags, globalFlags(cfg)...)
	flags = append(flags, backendFlags(cfg)...)

	return &cli.Command{
		Name:      "show",
		Usage:     "Show a past analysis",
		ArgsUsage: "<record-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx, c)
			defer cfg.Close()

			if c.Args().Len() != 1 {
				return goerr.New("record ID is required")
			}

			session, err := cfg.requireSession(ctx)
			if err != nil {
				return err
			}

			history, err := t.newHistory(ctx, cfg)
			if err != nil {
				return err
			}

			id := model.RecordID(c.Args().First())
			rec, err := history.Get(ctx, id)
			if err != nil {
				return err
			}
			// Records of other identities are treated as missing.
			if rec.ScopeKey != session.ScopeKey {
				return goerr.Wrap(model.ErrRecordNotFound, "record not found", goerr.V("id", id))
			}

			if output != outputText {
				return writeStructured(c.Root().Writer, output, rec)
			}
			renderRecord(c.Root().Writer, rec, t.render)
			return nil
		},
	}
}

func deleteCommand[R any](d *dependencies, t *task[R]) *cli.Command {
	cfg := newConfig(d)

	flags := append(globalFlags(cfg), backendFlags(cfg)...)

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a past analysis",
		ArgsUsage: "<record-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx, c)
			defer cfg.Close()

			if c.Args().Len() != 1 {
				return goerr.New("record ID is required")
			}

			session, err := cfg.requireSession(ctx)
			if err != nil {
				return err
			}

			ctrl, err := t.newController(ctx, cfg, session, false)
			if err != nil {
				return err
			}

			id := model.RecordID(c.Args().First())
			if err := ctrl.Delete(ctx, id); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Deleted %s\n", id)
			return nil
		},
	}
}

func clearCommand[R any](d *dependencies, t *task[R]) *cli.Command {
	var (
		cfg = newConfig(d)
		yes bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "yes",
			Aliases:     []string{"y"},
			Usage:       "Skip the confirmation prompt",
			Destination: &yes,
		},
	}
	flags = append(flags, globalFlags(cfg)...)
	flags = append(flags, backendFlags(cfg)...)

	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every analysis of the current session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx, c)
			defer cfg.Close()

			session, err := cfg.requireSession(ctx)
			if err != nil {
				return err
			}

			ctrl, err := t.newController(ctx, cfg, session, false)
			if err != nil {
				return err
			}

			confirm := promptConfirmer(c.Root().Reader, c.Root().Writer)
			if yes {
				confirm = func(ctx context.Context, prompt string) (bool, error) { return true, nil }
			}

			cleared, err := ctrl.ClearAll(ctx, confirm)
			if err != nil {
				return err
			}
			if cleared {
				fmt.Fprintln(c.Root().Writer, "History cleared")
			} else {
				fmt.Fprintln(c.Root().Writer, "Cancelled")
			}
			return nil
		},
	}
}

// promptConfirmer asks on w and accepts "y" or "yes" read from r
func promptConfirmer(r io.Reader, w io.Writer) workflow.Confirmer {
	return func(ctx context.Context, prompt string) (bool, error) {
		fmt.Fprintf(w, "%s [y/N]: ", prompt)

		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, goerr.Wrap(err, "failed to read confirmation")
		}
		return isYes(line), nil
	}
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
