package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	json "github.com/goccy/go-json"
	"golang.org/x/term"
)

// WizardConfig holds the answers collected by the export wizard. It is
// persisted between runs so a repeat export is a single confirm.
type WizardConfig struct {
	Format        string `json:"format"` // "svg", "png" or "json"
	Path          string `json:"path"`
	IncludeHidden bool   `json:"include_hidden"`
}

// Wizard collects an export format and output path interactively. The
// caller performs the actual export with the returned config.
type Wizard struct {
	config   *WizardConfig
	source   string
	isRepeat bool
}

// NewWizard creates an export wizard. source labels the data source and
// seeds the suggested output filename.
func NewWizard(source string) *Wizard {
	return &Wizard{
		config: &WizardConfig{Format: "svg", IncludeHidden: true},
		source: source,
	}
}

// IsRepeat reports whether the last Run reused a saved configuration.
func (w *Wizard) IsRepeat() bool { return w.isRepeat }

// newForm applies the shared theme. Without a terminal on stdin (CI,
// piped harnesses) huh switches to its accessible prompter, which works
// over plain reads instead of raw mode.
func newForm(groups ...*huh.Group) *huh.Form {
	f := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		f = f.WithAccessible(true)
	}
	return f
}

// Run executes the wizard flow: offer the saved answers first, otherwise
// collect format and output path.
func (w *Wizard) Run() (*WizardConfig, error) {
	if saved, err := LoadWizardConfig(); err == nil && saved != nil && saved.Format != "" {
		reuse, err := w.offerSavedConfig(saved)
		if err != nil {
			return nil, err
		}
		if reuse {
			w.config = saved
			w.isRepeat = true
			return w.config, nil
		}
	}

	if err := w.collectFormat(); err != nil {
		return nil, err
	}
	if err := w.collectOutput(); err != nil {
		return nil, err
	}

	if err := SaveWizardConfig(w.config); err != nil {
		// a failed save only costs the next run its shortcut
		fmt.Fprintf(os.Stderr, "warning: could not save export settings: %v\n", err)
	}
	return w.config, nil
}

func (w *Wizard) offerSavedConfig(saved *WizardConfig) (bool, error) {
	hidden := "skipped"
	if saved.IncludeHidden {
		hidden = "included"
	}
	fmt.Printf("Found previous export configuration:\n%s\n", strings.Repeat("─", 36))
	fmt.Printf("  Format: %s\n  Path:   %s\n  Hidden: %s\n\n", saved.Format, saved.Path, hidden)

	reuse := true
	form := newForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Export again with these settings?").
			Description("Select No to configure a new export").
			Value(&reuse).
			Affirmative("Yes, reuse").
			Negative("No, reconfigure"),
	))
	if err := form.Run(); err != nil {
		return false, err
	}
	fmt.Println("")
	return reuse, nil
}

func (w *Wizard) collectFormat() error {
	form := newForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Export format").
			Options(
				huh.NewOption("SVG snapshot of the arranged tree", "svg"),
				huh.NewOption("PNG snapshot of the arranged tree", "png"),
				huh.NewOption("JSON structure dump (robot mode)", "json"),
			).
			Value(&w.config.Format),
	))
	return form.Run()
}

// collectOutput runs after collectFormat so the suggested filename
// carries the chosen extension.
func (w *Wizard) collectOutput() error {
	suggested := SuggestExportPath(w.source, w.config.Format)
	path := suggested

	form := newForm(huh.NewGroup(
		huh.NewInput().
			Title("Output path").
			Value(&path).
			Placeholder(suggested),
		huh.NewConfirm().
			Title("Include rows hidden by the filter?").
			Description("Folders shown dimmed as context for matches").
			Value(&w.config.IncludeHidden),
	))
	if err := form.Run(); err != nil {
		return err
	}

	if strings.TrimSpace(path) == "" {
		path = suggested
	}
	if filepath.Ext(path) == "" {
		path += "." + w.config.Format
	}
	w.config.Path = path
	return nil
}

// SuggestExportPath derives an output filename from the data source
// label, e.g. "office.db" becomes "office-tree.svg".
func SuggestExportPath(source, format string) string {
	if format == "" {
		format = "svg"
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	switch base {
	case "", ".", "/":
		base = "canopy"
	}
	return base + "-tree." + format
}

// WizardConfigPath returns where wizard answers persist between runs.
func WizardConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "canopy", "export-wizard.json")
}

// LoadWizardConfig returns the saved wizard answers, nil when none
// exist yet.
func LoadWizardConfig() (*WizardConfig, error) {
	path := WizardConfigPath()
	if path == "" {
		return nil, errors.New("no home directory for wizard config")
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg := &WizardConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveWizardConfig persists wizard answers for the next run.
func SaveWizardConfig(cfg *WizardConfig) error {
	path := WizardConfigPath()
	if path == "" {
		return errors.New("no home directory for wizard config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
