package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/usecase/auth"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/usecase/workflow"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func consoleCommand[R any](d *dependencies, t *task[R]) *cli.Command {
	var (
		cfg      = newConfig(d)
		moisture int64
	)

	var flags []cli.Flag
	if t.kind.HasMoisture() {
		flags = append(flags, moistureFlag(&moisture))
	}
	flags = append(flags, globalFlags(cfg)...)
	flags = append(flags, backendFlags(cfg)...)
	flags = append(flags, llmFlags(cfg)...)

	return &cli.Command{
		Name:  "console",
		Usage: "Interactive shell that follows history changes live",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx, c)
			defer cfg.Close()

			session, err := cfg.requireSession(ctx)
			if err != nil {
				return err
			}

			rlConfig := &readline.Config{
				Prompt:          string(t.kind) + "> ",
				Stdout:          c.Root().Writer,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			}
			if d.stdin != nil {
				rlConfig.Stdin = d.stdin
			}
			rl, err := readline.NewEx(rlConfig)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			con := newConsole(t, session, rl.Stdout())
			con.moisture = int(moisture)
			con.confirm = readlineConfirmer(rl)

			ctrl, err := t.newController(ctx, cfg, session, true, workflow.WithObserver(con.observe))
			if err != nil {
				return err
			}
			con.ctrl = ctrl

			if err := ctrl.Mount(ctx); err != nil {
				return err
			}
			defer ctrl.Unmount()

			con.banner()
			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) {
						if line == "" {
							break
						}
						continue
					}
					if errors.Is(err, io.EOF) {
						break
					}
					return goerr.Wrap(err, "failed to read input")
				}

				quit, err := con.exec(ctx, line)
				if err != nil {
					fmt.Fprintf(con.w, "Error: %s\n", err.Error())
				}
				if quit {
					break
				}
			}

			fmt.Fprintln(c.Root().Writer, "Bye")
			return nil
		},
	}
}

func readlineConfirmer(rl *readline.Instance) workflow.Confirmer {
	return func(ctx context.Context, prompt string) (bool, error) {
		original := rl.Config.Prompt
		rl.SetPrompt(prompt + " [y/N]: ")
		defer rl.SetPrompt(original)

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, goerr.Wrap(err, "failed to read confirmation")
		}
		return isYes(line), nil
	}
}

// console executes shell commands against one mounted controller
type console[R any] struct {
	t        *task[R]
	session  *auth.Session
	ctrl     *workflow.Controller[R]
	w        io.Writer
	moisture int
	confirm  workflow.Confirmer

	mu          sync.Mutex
	lastHistory string
}

func newConsole[R any](t *task[R], session *auth.Session, w io.Writer) *console[R] {
	return &console[R]{t: t, session: session, w: w, moisture: 50}
}

// observe prints the history whenever its content changes
func (x *console[R]) observe(s workflow.State[R]) {
	if !s.HistoryLoaded {
		return
	}

	ids := make([]string, len(s.History))
	for i, rec := range s.History {
		ids[i] = string(rec.ID)
	}
	key := strings.Join(ids, ",")

	x.mu.Lock()
	defer x.mu.Unlock()
	if key == x.lastHistory {
		return
	}
	x.lastHistory = key

	fmt.Fprintf(x.w, "\nHistory (%d):\n", len(s.History))
	_ = renderHistory(x.w, s.History, x.t.title)
}

func (x *console[R]) banner() {
	fmt.Fprintf(x.w, "Active Session: %s\n", x.session.Identity.Name)
	fmt.Fprintln(x.w, "Type 'help' for commands.")
}

func (x *console[R]) help() {
	fmt.Fprintln(x.w, "Commands:")
	fmt.Fprintln(x.w, "  upload <path>   analyze a photo")
	if x.t.kind.HasMoisture() {
		fmt.Fprintf(x.w, "  moisture <n>    set the moisture percentage (now %d%%)\n", x.moisture)
	}
	fmt.Fprintln(x.w, "  list            show history")
	fmt.Fprintln(x.w, "  select <n>      display history entry n")
	fmt.Fprintln(x.w, "  delete <n>      delete history entry n")
	fmt.Fprintln(x.w, "  clear           delete all history")
	fmt.Fprintln(x.w, "  exit            leave the console")
}

// exec runs one input line. It reports whether the console should exit.
func (x *console[R]) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "exit", "quit":
		return true, nil

	case "help":
		x.help()

	case "upload":
		if len(args) != 1 {
			return false, goerr.New("usage: upload <path>")
		}
		return false, x.upload(ctx, args[0])

	case "moisture":
		if !x.t.kind.HasMoisture() {
			return false, goerr.New("moisture is only used for soil analysis")
		}
		if len(args) != 1 {
			return false, goerr.New("usage: moisture <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, goerr.Wrap(model.ErrInvalidMoisture, "moisture must be a number", goerr.V("input", args[0]))
		}
		if err := model.ValidateMoisture(n); err != nil {
			return false, err
		}
		x.moisture = n
		fmt.Fprintf(x.w, "Moisture set to %d%%\n", n)

	case "list":
		return false, renderHistory(x.w, x.ctrl.State().History, x.t.title)

	case "select":
		rec, err := x.pick(args)
		if err != nil {
			return false, err
		}
		if _, err := x.ctrl.SelectID(rec.ID); err != nil {
			return false, err
		}
		renderRecord(x.w, rec, x.t.render)

	case "delete":
		rec, err := x.pick(args)
		if err != nil {
			return false, err
		}
		if err := x.ctrl.Delete(ctx, rec.ID); err != nil {
			return false, err
		}
		fmt.Fprintf(x.w, "Deleted %s\n", rec.ID)

	case "clear":
		cleared, err := x.ctrl.ClearAll(ctx, x.confirm)
		if err != nil {
			return false, err
		}
		if !cleared {
			fmt.Fprintln(x.w, "Cancelled")
		}

	default:
		return false, goerr.New("unknown command, type 'help'", goerr.V("command", cmd))
	}

	return false, nil
}

func (x *console[R]) upload(ctx context.Context, path string) error {
	img, err := model.LoadImage(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(x.w, "Analyzing %s...\n", path)
	outcome, err := x.ctrl.Upload(ctx, model.AnalysisRequest{Image: img, Moisture: x.moisture})
	if err != nil {
		if errors.Is(err, model.ErrInvalidMoisture) {
			return err
		}
		fmt.Fprintln(x.w, x.ctrl.State().Error)
		return nil
	}

	if outcome.Stale {
		return nil
	}
	x.t.render(x.w, outcome.Result)
	if outcome.PersistErr != nil {
		fmt.Fprintln(x.w, "Result could not be saved to history")
	}
	return nil
}

// pick resolves a 1-based index into the displayed history list
func (x *console[R]) pick(args []string) (*model.Record[R], error) {
	if len(args) != 1 {
		return nil, goerr.New("history entry number is required")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, goerr.New("history entry must be a number", goerr.V("input", args[0]))
	}

	history := x.ctrl.State().History
	if n < 1 || n > len(history) {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "no such history entry", goerr.V("n", n))
	}
	return history[n-1], nil
}
