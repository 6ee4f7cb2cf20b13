package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

var (
	canopyBinaryPath string
	canopyBinaryDir  string

	scriptTUISupported      = true
	scriptTUIDisabledReason string
)

func TestMain(m *testing.M) {
	os.Setenv("CANOPY_TEST_MODE", "1") // keeps termenv from probing the test terminal

	if err := buildCanopyOnce(); err != nil {
		fmt.Fprintf(os.Stderr, "building canopy binary: %v\n", err)
		os.Exit(1)
	}
	scriptTUISupported, scriptTUIDisabledReason = probeScriptTUI(canopyBinaryPath)

	code := m.Run()
	if canopyBinaryDir != "" {
		os.RemoveAll(canopyBinaryDir)
	}
	os.Exit(code)
}

func buildCanopyOnce() error {
	dir, err := os.MkdirTemp("", "canopy-e2e-build-*")
	if err != nil {
		return err
	}
	canopyBinaryDir = dir

	bin := filepath.Join(dir, "canopy")
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}
	out, err := exec.Command("go", "build", "-o", bin, "../../cmd/canopy").CombinedOutput()
	if err != nil {
		return fmt.Errorf("go build: %v\n%s", err, out)
	}
	canopyBinaryPath = bin
	return nil
}

// probeScriptTUI runs the binary once under script with auto-close to
// learn whether PTY-driven tests can work at all in this environment.
func probeScriptTUI(binPath string) (bool, string) {
	if _, err := exec.LookPath("script"); err != nil {
		return false, "script command not available"
	}
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		return false, "script TUI harness unsupported on this OS"
	}
	if binPath == "" {
		return false, "canopy binary path is empty"
	}

	dir, err := os.MkdirTemp("", "canopy-e2e-probe-*")
	if err != nil {
		return false, fmt.Sprintf("probe temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	writeInventoryLines(nil, dir, []string{
		`{"id":"cap-docs","kind":"folder","name":"Capability","role":"normal","caps":15,"created_at":"2024-03-01T09:00:00Z"}`,
		`{"id":"cap-note","parent_id":"cap-docs","kind":"item","name":"check.md","type":"note","caps":15,"created_at":"2024-03-01T10:00:00Z"}`,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := scriptTUICommand(ctx, binPath)
	if cmd == nil {
		return false, "script command unavailable"
	}
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"CANOPY_TUI_AUTOCLOSE_MS=250",
	)

	f, err := captureToFile(cmd, filepath.Join(dir, "probe.out"))
	if err != nil {
		return false, fmt.Sprintf("probe output file: %v", err)
	}
	runErr := cmd.Run()
	f.Close()

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		return false, "canopy did not auto-exit under script (PTY/CI mismatch)"
	case runErr != nil:
		return false, fmt.Sprintf("script TUI probe failed: %v", runErr)
	}
	return true, ""
}

// buildCanopyBinary returns the path to the pre-built binary.
func buildCanopyBinary(t *testing.T) string {
	t.Helper()
	if canopyBinaryPath == "" {
		t.Fatal("canopy binary not built")
	}
	return canopyBinaryPath
}

// skipIfNoScript skips PTY tests where the script harness cannot run.
func skipIfNoScript(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("script"); err != nil {
		t.Skip("script command not available")
	}
	if !scriptTUISupported {
		reason := scriptTUIDisabledReason
		if reason == "" {
			reason = "script-based TUI harness unavailable"
		}
		t.Skipf("skipping: %s", reason)
	}
}

// scriptTUICommand wraps the canopy binary in `script` so it sees a
// pseudo-TTY. The flag spelling differs per platform.
func scriptTUICommand(ctx context.Context, binPath string, args ...string) *exec.Cmd {
	if _, err := exec.LookPath("script"); err != nil {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "script",
			append([]string{"-q", "/dev/null", binPath}, args...)...)
	case "linux":
		parts := []string{binPath}
		for _, arg := range args {
			if strings.ContainsAny(arg, " \t") {
				arg = `"` + arg + `"`
			}
			parts = append(parts, arg)
		}
		return exec.CommandContext(ctx, "script", "-q", "-e", "-f", "-c",
			strings.Join(parts, " "), "/dev/null")
	default:
		return nil
	}
}

// captureToFile wires cmd's stdout and stderr to a fresh file at path.
// File-backed capture matters under script: a context kill reaps script
// itself while the PTY child can linger holding a pipe open, and a
// pipe-backed Wait would block on it.
func captureToFile(cmd *exec.Cmd, path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	cmd.Stdout = f
	cmd.Stderr = f
	return f, nil
}

// runCmdToFile runs a command and returns its combined output.
func runCmdToFile(t *testing.T, cmd *exec.Cmd) ([]byte, error) {
	t.Helper()
	if cmd == nil {
		return nil, fmt.Errorf("nil cmd")
	}

	path := filepath.Join(t.TempDir(), "cmd.out")
	f, err := captureToFile(cmd, path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	runErr := cmd.Run()
	f.Close()

	out, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("read output file: %w (run err: %v)", readErr, runErr)
	}
	return out, runErr
}

// inventoryEntry is the JSONL wire form for test fixtures.
type inventoryEntry struct {
	ID        string `json:"id"`
	ParentID  string `json:"parent_id,omitempty"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	Role      string `json:"role,omitempty"`
	Caps      uint8  `json:"caps"`
	CreatedAt string `json:"created_at"`
}

// writeInventory writes dir/.canopy/inventory.jsonl with the given
// entries.
func writeInventory(t *testing.T, dir string, entries []inventoryEntry) {
	t.Helper()
	var lines []string
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			t.Fatalf("marshal entry %s: %v", e.ID, err)
		}
		lines = append(lines, string(data))
	}
	writeInventoryLines(t, dir, lines)
}

// writeInventoryLines writes raw JSONL lines. t may be nil during
// capability detection, where a write failure just disables the harness.
func writeInventoryLines(t *testing.T, dir string, lines []string) {
	if t != nil {
		t.Helper()
	}
	invDir := filepath.Join(dir, ".canopy")
	if err := os.MkdirAll(invDir, 0o755); err != nil {
		if t != nil {
			t.Fatalf("mkdir .canopy: %v", err)
		}
		return
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(invDir, "inventory.jsonl"), []byte(content), 0o644); err != nil {
		if t != nil {
			t.Fatalf("write inventory.jsonl: %v", err)
		}
	}
}

// makeProjectFixture is the standard browse fixture:
//
//	System (system folder)
//	  daemon.cfg (document)
//	Trash (trash folder)
//	Documents (normal folder)
//	  quarterly.pdf (document)
//	  notes.md (note)
//	Media (normal folder)
//	  sunset.png (image)
func makeProjectFixture(t *testing.T) []inventoryEntry {
	t.Helper()
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	stamp := func(offset time.Duration) string {
		return base.Add(offset).Format(time.RFC3339)
	}
	return []inventoryEntry{
		{ID: "system", Kind: "folder", Name: "System", Role: "system", Caps: 8, CreatedAt: stamp(0)},
		{ID: "daemon", ParentID: "system", Kind: "item", Name: "daemon.cfg", Type: "document", Caps: 8, CreatedAt: stamp(time.Minute)},
		{ID: "trash", Kind: "folder", Name: "Trash", Role: "trash", Caps: 8, CreatedAt: stamp(2 * time.Minute)},
		{ID: "docs", Kind: "folder", Name: "Documents", Role: "normal", Caps: 15, CreatedAt: stamp(time.Hour)},
		{ID: "report", ParentID: "docs", Kind: "item", Name: "quarterly.pdf", Type: "document", Caps: 15, CreatedAt: stamp(2 * time.Hour)},
		{ID: "notes", ParentID: "docs", Kind: "item", Name: "notes.md", Type: "note", Caps: 15, CreatedAt: stamp(3 * time.Hour)},
		{ID: "media", Kind: "folder", Name: "Media", Role: "normal", Caps: 15, CreatedAt: stamp(4 * time.Hour)},
		{ID: "sunset", ParentID: "media", Kind: "item", Name: "sunset.png", Type: "image", Caps: 15, CreatedAt: stamp(5 * time.Hour)},
	}
}

// containsAll checks that output contains all expected substrings.
func containsAll(t *testing.T, out []byte, expected []string) {
	t.Helper()
	s := string(out)
	for _, exp := range expected {
		if !strings.Contains(s, exp) {
			t.Errorf("expected output to contain %q, but it was missing\noutput (first 2000 chars):\n%s", exp, truncateOutput(s, 2000))
		}
	}
}

// containsNone checks that output contains none of the forbidden substrings.
func containsNone(t *testing.T, out []byte, forbidden []string) {
	t.Helper()
	s := string(out)
	for _, f := range forbidden {
		if strings.Contains(s, f) {
			t.Errorf("expected output NOT to contain %q, but it was present\noutput (first 2000 chars):\n%s", f, truncateOutput(s, 2000))
		}
	}
}

func truncateOutput(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "...(truncated)"
	}
	return s
}
