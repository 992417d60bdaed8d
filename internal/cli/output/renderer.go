// Package output renders command results for terminals, markdown and JSON
// consumers.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// OutputMode selects how results are rendered.
type OutputMode string

// Output modes.
const (
	ModeAuto     OutputMode = "auto"
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
)

// Mode parses a mode name. Unknown names fall back to auto.
func Mode(s string) OutputMode {
	switch OutputMode(s) {
	case ModeText, ModeMarkdown, ModeJSON:
		return OutputMode(s)
	case "md":
		return ModeMarkdown
	default:
		return ModeAuto
	}
}

type rendererKey struct{}

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	isTTY  bool
	mode   OutputMode
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode OutputMode) *Renderer {
	return NewRendererWithTTY(out, errOut, IsTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode OutputMode) *Renderer {
	profile := termenv.Ascii
	if isTTY {
		profile = termenv.NewOutput(out).EnvColorProfile()
	}
	lr := lipgloss.NewRenderer(out, termenv.WithProfile(profile))
	return &Renderer{
		out:    out,
		errOut: errOut,
		isTTY:  isTTY,
		mode:   mode,
		styles: NewStyles(lr),
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// WithRenderer returns a context carrying r.
func WithRenderer(ctx context.Context, r *Renderer) context.Context {
	return context.WithValue(ctx, rendererKey{}, r)
}

// FromContext returns the renderer stored in ctx, or one writing to the
// standard streams.
func FromContext(ctx context.Context) *Renderer {
	if r, ok := ctx.Value(rendererKey{}).(*Renderer); ok {
		return r
	}
	return NewRenderer(os.Stdout, os.Stderr, ModeAuto)
}

// EffectiveMode resolves auto: text on a terminal, markdown otherwise.
func (r *Renderer) EffectiveMode() OutputMode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Styles returns the renderer's styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the primary output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the diagnostic writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Println writes a line to the output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to the output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a section header.
func (r *Renderer) Header(s string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println("## " + s)
		r.Println("")
		return
	}
	r.Println(r.styles.Header2.Render(s))
}

// Success writes a line prefixed with a success mark.
func (r *Renderer) Success(s string) {
	r.StatusLine(r.styles.StatusSuccess.String(), s)
}

// Warning writes a line prefixed with a warning mark.
func (r *Renderer) Warning(s string) {
	r.StatusLine(r.styles.Warning.Render("!"), s)
}

// Error writes a line prefixed with a failure mark to the diagnostic writer.
func (r *Renderer) Error(s string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.StatusFailed.String()+" "+s)
}

// Muted renders s in the muted style.
func (r *Renderer) Muted(s string) string {
	return r.styles.Muted.Render(s)
}

// StatusLine writes "icon text".
func (r *Renderer) StatusLine(icon, s string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println("- " + s)
		return
	}
	r.Println(icon + " " + s)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
