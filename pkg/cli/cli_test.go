package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/usecase/analysis"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/usecase/auth"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/usecase/workflow"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

const (
	cropJSON = `{"title":"Early Blight","description":"Brown rings on lower leaves","recommendations":["Remove infected leaves","Apply copper fungicide"],"status":"critical"}`
	soilJSON = `{"bestCrops":["Rice","Sugarcane","Jute"],"explanation":"Wet clay holds water well","tips":["Add organic matter"]}`
)

type mockGemini struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	texts []string
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, c := range contents {
		for _, p := range c.Parts {
			if p.Text != "" {
				m.texts = append(m.texts, p.Text)
			}
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(m.reply, genai.RoleModel)},
		},
	}, nil
}

type harness struct {
	t         *testing.T
	deps      *dependencies
	gemini    *mockGemini
	sessionDB string
}

func newHarness(t *testing.T) *harness {
	gemini := &mockGemini{reply: cropJSON}
	return &harness{
		t:         t,
		deps:      &dependencies{gemini: gemini, memory: newMemoryBackend()},
		gemini:    gemini,
		sessionDB: filepath.Join(t.TempDir(), "session.db"),
	}
}

// exec runs one command line. Common flags are inserted right after the
// subcommand path so that positional arguments stay last.
func (h *harness) exec(path []string, args ...string) (string, *Error) {
	h.t.Helper()
	argv := append([]string{"agritech"}, path...)
	argv = append(argv, "--session-db", h.sessionDB, "--log-level", "error")
	if path[len(path)-1] != "logout" && path[len(path)-1] != "whoami" {
		argv = append(argv, "--backend", "memory")
	}
	argv = append(argv, args...)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), argv, h.deps, &stdout, &stderr)
	return stdout.String(), err
}

func (h *harness) mustExec(path []string, args ...string) string {
	h.t.Helper()
	out, err := h.exec(path, args...)
	if err != nil {
		h.t.Fatalf("command %v failed: %s", path, err.Message)
	}
	return out
}

func (h *harness) login() {
	h.t.Helper()
	h.mustExec([]string{"login"}, "--name", "Dr. Jane Smith", "--email", "jane@example.com")
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leaf.png")
	data := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	gt.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestSessionCommands(t *testing.T) {
	h := newHarness(t)

	t.Run("whoami before login", func(t *testing.T) {
		_, err := h.exec([]string{"whoami"})
		gt.NotNil(t, err)
		gt.Equal(t, err.Code, 1)
	})

	t.Run("login prints active session", func(t *testing.T) {
		out := h.mustExec([]string{"login"}, "--name", "Dr. Jane Smith", "--email", "jane@example.com")
		gt.S(t, out).Contains("Active Session: Dr. Jane Smith")

		entries := h.deps.memory.sink.Entries()
		gt.A(t, entries).Length(1)
		gt.Equal(t, entries[0].Email, "jane@example.com")
	})

	t.Run("login rejects empty name", func(t *testing.T) {
		_, err := h.exec([]string{"login"}, "--name", "  ", "--email", "jane@example.com")
		gt.NotNil(t, err)
	})

	t.Run("whoami shows identity", func(t *testing.T) {
		out := h.mustExec([]string{"whoami"})
		gt.S(t, out).Contains("Active Session: Dr. Jane Smith")
		gt.S(t, out).Contains("Email: jane@example.com")
	})

	t.Run("whoami as json", func(t *testing.T) {
		out := h.mustExec([]string{"whoami"}, "--output", "json")
		gt.S(t, out).Contains(`"jane@example.com"`)
	})

	t.Run("logout clears session", func(t *testing.T) {
		out := h.mustExec([]string{"logout"})
		gt.S(t, out).Contains("Logged out")

		_, err := h.exec([]string{"whoami"})
		gt.NotNil(t, err)
	})
}

func TestCropCommands(t *testing.T) {
	h := newHarness(t)
	image := writeImage(t)

	t.Run("analyze requires login", func(t *testing.T) {
		_, err := h.exec([]string{"crop", "analyze"}, image)
		gt.NotNil(t, err)
		gt.Equal(t, h.gemini.calls, 0)
	})

	h.login()

	out := h.mustExec([]string{"crop", "analyze"}, image)
	gt.S(t, out).Contains("Early Blight")
	gt.S(t, out).Contains("Apply copper fungicide")
	gt.S(t, out).Contains("Saved as ")
	gt.Equal(t, h.gemini.calls, 1)
	gt.Equal(t, h.deps.memory.crop.Len(), 1)

	id := strings.TrimSpace(out[strings.Index(out, "Saved as ")+len("Saved as "):])

	t.Run("history lists the record", func(t *testing.T) {
		out := h.mustExec([]string{"crop", "history"})
		gt.S(t, out).Contains(id)
		gt.S(t, out).Contains("Early Blight (critical)")
	})

	t.Run("show renders the record", func(t *testing.T) {
		out := h.mustExec([]string{"crop", "show"}, id)
		gt.S(t, out).Contains("ID:       " + id)
		gt.S(t, out).Contains("image/png")
		gt.S(t, out).Contains("Remove infected leaves")
	})

	t.Run("show as json", func(t *testing.T) {
		out := h.mustExec([]string{"crop", "show"}, "--output", "json", id)
		gt.S(t, out).Contains(`"status": "critical"`)
	})

	t.Run("show unknown record", func(t *testing.T) {
		_, err := h.exec([]string{"crop", "show"}, "no-such-id")
		gt.NotNil(t, err)
	})

	t.Run("soil history is separate", func(t *testing.T) {
		out := h.mustExec([]string{"soil", "history"})
		gt.S(t, out).Contains("No history yet")
	})

	t.Run("analysis failure shows message and keeps history", func(t *testing.T) {
		h.gemini.err = goerr.New("quota exceeded")
		defer func() { h.gemini.err = nil }()

		out, err := h.exec([]string{"crop", "analyze"}, image)
		gt.NotNil(t, err)
		gt.S(t, out).Contains(workflow.DefaultFailureMessage(model.KindCrop))
		gt.Equal(t, h.deps.memory.crop.Len(), 1)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		out := h.mustExec([]string{"crop", "delete"}, id)
		gt.S(t, out).Contains("Deleted " + id)
		gt.Equal(t, h.deps.memory.crop.Len(), 0)

		// Deleting again is not an error
		h.mustExec([]string{"crop", "delete"}, id)
	})
}

func TestDeleteKeepsOtherScopes(t *testing.T) {
	h := newHarness(t)
	h.login()

	other, err := model.NewIdentity("Someone Else", "someone@else.org")
	gt.NoError(t, err)
	theirs := &model.CropRecord{ScopeKey: other.ScopeKey(), Result: model.CropResult{Title: "Rust", Status: model.CropStatusWarning}}
	gt.NoError(t, h.deps.memory.crop.Insert(context.Background(), theirs))

	_, cmdErr := h.exec([]string{"crop", "delete"}, string(theirs.ID))
	gt.NotNil(t, cmdErr)
	gt.Equal(t, h.deps.memory.crop.Len(), 1)
}

func TestClearCommand(t *testing.T) {
	h := newHarness(t)
	image := writeImage(t)
	h.login()

	for range 3 {
		h.mustExec([]string{"crop", "analyze"}, image)
	}
	gt.Equal(t, h.deps.memory.crop.Len(), 3)

	out := h.mustExec([]string{"crop", "clear"}, "--yes")
	gt.S(t, out).Contains("History cleared")
	gt.Equal(t, h.deps.memory.crop.Len(), 0)
}

func TestSoilCommands(t *testing.T) {
	h := newHarness(t)
	h.gemini.reply = soilJSON
	image := writeImage(t)
	h.login()

	t.Run("moisture is passed to the prompt", func(t *testing.T) {
		out := h.mustExec([]string{"soil", "analyze"}, "--moisture", "80", image)
		gt.S(t, out).Contains("Rice")
		gt.S(t, out).Contains("Add organic matter")

		gt.A(t, h.gemini.texts).Length(1)
		gt.S(t, h.gemini.texts[0]).Contains("80%")
	})

	t.Run("history shows best crops", func(t *testing.T) {
		out := h.mustExec([]string{"soil", "history"})
		gt.S(t, out).Contains("Rice, Sugarcane, Jute")
	})

	t.Run("moisture out of range is rejected", func(t *testing.T) {
		calls := h.gemini.calls
		_, err := h.exec([]string{"soil", "analyze"}, "--moisture", "120", image)
		gt.NotNil(t, err)
		gt.Equal(t, h.gemini.calls, calls)
	})
}

func newTestConsole(t *testing.T, gemini *mockGemini) (*console[model.CropResult], *bytes.Buffer) {
	t.Helper()
	id, err := model.NewIdentity("Dr. Jane Smith", "jane@example.com")
	gt.NoError(t, err)
	session := auth.NewSession(id)

	tk := cropTask()
	gw, err := analysis.New(gemini)
	gt.NoError(t, err)

	var buf bytes.Buffer
	con := newConsole(tk, session, &buf)
	con.confirm = func(ctx context.Context, prompt string) (bool, error) { return true, nil }

	ctrl, err := workflow.New[model.CropResult](model.KindCrop, session, tk.analyzer(gw), newMemoryBackend().crop, workflow.WithObserver(con.observe))
	gt.NoError(t, err)
	con.ctrl = ctrl

	gt.NoError(t, ctrl.Mount(context.Background()))
	t.Cleanup(ctrl.Unmount)
	return con, &buf
}

func TestConsole(t *testing.T) {
	ctx := context.Background()
	con, buf := newTestConsole(t, &mockGemini{reply: cropJSON})
	image := writeImage(t)

	t.Run("help", func(t *testing.T) {
		quit, err := con.exec(ctx, "help")
		gt.NoError(t, err)
		gt.False(t, quit)
		gt.S(t, buf.String()).Contains("upload <path>")
		gt.S(t, buf.String()).NotContains("moisture <n>")
	})

	t.Run("upload renders result and refreshes history", func(t *testing.T) {
		buf.Reset()
		_, err := con.exec(ctx, "upload "+image)
		gt.NoError(t, err)
		gt.S(t, buf.String()).Contains("Early Blight")
		gt.S(t, buf.String()).Contains("History (1):")
	})

	t.Run("select displays an entry", func(t *testing.T) {
		buf.Reset()
		_, err := con.exec(ctx, "select 1")
		gt.NoError(t, err)
		gt.S(t, buf.String()).Contains("Brown rings on lower leaves")
	})

	t.Run("select out of range", func(t *testing.T) {
		_, err := con.exec(ctx, "select 5")
		gt.Error(t, err)
	})

	t.Run("moisture is rejected for crops", func(t *testing.T) {
		_, err := con.exec(ctx, "moisture 40")
		gt.Error(t, err)
	})

	t.Run("unknown command", func(t *testing.T) {
		_, err := con.exec(ctx, "dance")
		gt.Error(t, err)
	})

	t.Run("clear empties history", func(t *testing.T) {
		_, err := con.exec(ctx, "upload "+image)
		gt.NoError(t, err)
		gt.A(t, con.ctrl.State().History).Length(2)

		_, err = con.exec(ctx, "clear")
		gt.NoError(t, err)
		gt.A(t, con.ctrl.State().History).Length(0)
	})

	t.Run("exit", func(t *testing.T) {
		quit, err := con.exec(ctx, "exit")
		gt.NoError(t, err)
		gt.True(t, quit)
	})
}

func TestConsoleAnalysisFailure(t *testing.T) {
	ctx := context.Background()
	con, buf := newTestConsole(t, &mockGemini{err: goerr.New("unavailable")})

	_, err := con.exec(ctx, "upload "+writeImage(t))
	gt.NoError(t, err)
	gt.S(t, buf.String()).Contains(workflow.DefaultFailureMessage(model.KindCrop))
	gt.A(t, con.ctrl.State().History).Length(0)
}

func TestIsYes(t *testing.T) {
	for input, want := range map[string]bool{
		"y":     true,
		"YES\n": true,
		" yes ": true,
		"n":     false,
		"":      false,
		"yeah":  false,
	} {
		gt.Equal(t, isYes(input), want)
	}
}

func TestPromptConfirmer(t *testing.T) {
	var w bytes.Buffer
	confirm := promptConfirmer(strings.NewReader("y\n"), &w)

	ok, err := confirm(context.Background(), "Delete everything?")
	gt.NoError(t, err)
	gt.True(t, ok)
	gt.S(t, w.String()).Contains("Delete everything? [y/N]: ")

	ok, err = promptConfirmer(strings.NewReader(""), &w)(context.Background(), "Again?")
	gt.NoError(t, err)
	gt.False(t, ok)
}
