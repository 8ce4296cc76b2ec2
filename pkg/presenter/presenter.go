// Package presenter provides consistent CLI output functionality for user-facing messages,
// including success, error, warning and informational output, tables, markdown and
// interactive prompts, with color support and quiet mode.
package presenter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// ErrCancelled is returned by prompts the user aborted.
var ErrCancelled = errors.New("operation cancelled")

// Choice is one entry of a multi-select prompt.
type Choice struct {
	Label    string
	Value    string
	Selected bool
}

// Presenter defines the interface for consistent CLI output
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Dim(message string)
	Section(title string)
	KeyValue(key, value string)
	Table(headers []string, rows [][]string)
	Markdown(content string)
	Confirm(question string, defaultValue bool) (bool, error)
	MultiSelect(title string, choices []Choice) ([]string, error)
	Separator()
	Writer() io.Writer
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// TerminalPresenter implements Presenter for terminal output
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	colorMode   ColorMode
	quiet       bool
	width       int
}

// ColorMode represents different color output modes
type ColorMode int

const (
	// ColorAuto automatically detects whether to use colored output based on terminal capabilities
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output regardless of terminal capabilities
	ColorAlways
	// ColorNever disables colored output regardless of terminal capabilities
	ColorNever
)

// New creates a new TerminalPresenter with default settings
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions creates a TerminalPresenter with custom settings
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	presenter := &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
		colorMode:   colorMode,
		quiet:       false,
		width:       80,
	}

	switch colorMode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	case ColorAuto:
	}

	return presenter
}

// detectColorMode determines the appropriate color mode based on environment
func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}

	switch os.Getenv("ANTIKIT_COLOR") {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// SetWidth sets the width used to wrap markdown.
func (p *TerminalPresenter) SetWidth(width int) {
	if width >= 40 {
		p.width = width
	}
}

// Error displays an error message to stderr
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}

	errorColor := color.New(color.FgRed, color.Bold)
	if context != "" {
		errorColor.Fprintf(p.errorOutput, "✗ %s: %v\n", context, err)
	} else {
		errorColor.Fprintf(p.errorOutput, "✗ %v\n", err)
	}
}

// Success displays a success message
func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}

	successColor := color.New(color.FgGreen, color.Bold)
	successColor.Fprintf(p.output, "✓ %s\n", message)
}

// Warning displays a warning message
func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}

	warningColor := color.New(color.FgYellow, color.Bold)
	warningColor.Fprintf(p.output, "⚠ %s\n", message)
}

// Info displays an informational message
func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}

	fmt.Fprintf(p.output, "%s\n", message)
}

// Dim displays a low-emphasis message
func (p *TerminalPresenter) Dim(message string) {
	if p.quiet {
		return
	}

	color.New(color.Faint).Fprintf(p.output, "%s\n", message)
}

// Section displays a section header with consistent formatting
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}

	headerColor := color.New(color.FgCyan, color.Bold)
	separator := strings.Repeat("-", len([]rune(title)))

	headerColor.Fprintf(p.output, "%s\n", title)
	headerColor.Fprintf(p.output, "%s\n", separator)
}

// KeyValue displays a labelled value
func (p *TerminalPresenter) KeyValue(key, value string) {
	if p.quiet {
		return
	}

	color.New(color.FgCyan).Fprintf(p.output, "%s:", key)
	fmt.Fprintf(p.output, " %s\n", value)
}

// Table renders rows under headers
func (p *TerminalPresenter) Table(headers []string, rows [][]string) {
	if p.quiet {
		return
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	if !color.NoColor {
		headerStyle = headerStyle.Foreground(lipgloss.Color("6"))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	fmt.Fprintln(p.output, t.Render())
}

// Markdown renders markdown for the terminal, falling back to the raw text
func (p *TerminalPresenter) Markdown(content string) {
	if p.quiet {
		return
	}

	fmt.Fprintln(p.output, RenderMarkdown(content, p.width, !color.NoColor))
}

// RenderMarkdown renders content with glamour. Without styled output the
// plain "notty" style is used.
func RenderMarkdown(content string, width int, styled bool) string {
	if width < 40 {
		width = 80
	}
	style := glamour.WithStandardStyle("notty")
	if styled {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width-4))
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// Confirm asks a yes/no question
func (p *TerminalPresenter) Confirm(question string, defaultValue bool) (bool, error) {
	confirmed := defaultValue
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed).
		Run()
	if err != nil {
		return false, promptError(err)
	}
	return confirmed, nil
}

// MultiSelect lets the user pick any number of choices and returns their values
func (p *TerminalPresenter) MultiSelect(title string, choices []Choice) ([]string, error) {
	options := make([]huh.Option[string], 0, len(choices))
	for _, c := range choices {
		options = append(options, huh.NewOption(c.Label, c.Value).Selected(c.Selected))
	}

	var selected []string
	err := huh.NewMultiSelect[string]().
		Title(title).
		Options(options...).
		Height(min(len(options)+2, 22)).
		Value(&selected).
		Run()
	if err != nil {
		return nil, promptError(err)
	}
	return selected, nil
}

func promptError(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrCancelled
	}
	return errors.Wrap(err, "prompt failed")
}

// Separator displays a visual separator
func (p *TerminalPresenter) Separator() {
	if p.quiet {
		return
	}

	separatorColor := color.New(color.Faint)
	separatorColor.Fprintf(p.output, "%s\n", strings.Repeat("─", 50))
}

// Writer returns the standard output writer
func (p *TerminalPresenter) Writer() io.Writer {
	return p.output
}

// SetQuiet enables or disables quiet mode
func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// IsQuiet returns whether quiet mode is enabled
func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

// Global presenter instance for convenience
var defaultPresenter Presenter = New()

// Default returns the presenter used by the package-level functions.
func Default() Presenter {
	return defaultPresenter
}

// SetDefault replaces the presenter used by the package-level functions.
func SetDefault(p Presenter) {
	defaultPresenter = p
}

// Error displays an error message using the default presenter instance.
func Error(err error, context string) {
	defaultPresenter.Error(err, context)
}

// Success displays a success message using the default presenter instance.
func Success(message string) {
	defaultPresenter.Success(message)
}

// Warning displays a warning message using the default presenter instance.
func Warning(message string) {
	defaultPresenter.Warning(message)
}

// Info displays an informational message using the default presenter instance.
func Info(message string) {
	defaultPresenter.Info(message)
}

// Dim displays a low-emphasis message using the default presenter instance.
func Dim(message string) {
	defaultPresenter.Dim(message)
}

// Section displays a section header using the default presenter instance.
func Section(title string) {
	defaultPresenter.Section(title)
}

// KeyValue displays a labelled value using the default presenter instance.
func KeyValue(key, value string) {
	defaultPresenter.KeyValue(key, value)
}

// Table renders a table using the default presenter instance.
func Table(headers []string, rows [][]string) {
	defaultPresenter.Table(headers, rows)
}

// Markdown renders markdown using the default presenter instance.
func Markdown(content string) {
	defaultPresenter.Markdown(content)
}

// Confirm asks a yes/no question using the default presenter instance.
func Confirm(question string, defaultValue bool) (bool, error) {
	return defaultPresenter.Confirm(question, defaultValue)
}

// MultiSelect shows a multi-select prompt using the default presenter instance.
func MultiSelect(title string, choices []Choice) ([]string, error) {
	return defaultPresenter.MultiSelect(title, choices)
}

// Separator displays a visual separator using the default presenter instance.
func Separator() {
	defaultPresenter.Separator()
}

// Writer returns the output writer of the default presenter instance.
func Writer() io.Writer {
	return defaultPresenter.Writer()
}

// SetQuiet enables or disables quiet mode for the default presenter instance.
func SetQuiet(quiet bool) {
	defaultPresenter.SetQuiet(quiet)
}

// IsQuiet returns whether quiet mode is enabled for the default presenter instance.
func IsQuiet() bool {
	return defaultPresenter.IsQuiet()
}
