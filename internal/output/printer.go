// Package output formats bmadflow results for the terminal.
//
// All command output goes through a [Printer] so tests can capture it with
// [NewPrinterWithWriter]. Styling uses lipgloss with a renderer bound to the
// printer's writer, so piped output and test buffers are plain ASCII.
// Handoff summaries are rendered as markdown with glamour when the writer is
// a terminal.
//
// Key types:
//   - [Printer] writes styled lines, validation reports, status and listings
//   - [MarkdownOptions] controls glamour rendering
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"bmadflow/internal/state"
	"bmadflow/internal/store"
	"bmadflow/internal/validator"
)

// MarkdownOptions controls markdown rendering.
type MarkdownOptions struct {
	Enabled  bool
	Style    string
	WordWrap int
}

// Printer writes formatted output to a writer.
type Printer struct {
	out      io.Writer
	renderer *lipgloss.Renderer
	terminal bool
	markdown MarkdownOptions
	styles   styles
}

type styles struct {
	header  lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	muted   lipgloss.Style
	label   lipgloss.Style
}

// NewPrinter creates a Printer on stdout. Markdown is rendered only when
// stdout is a terminal.
func NewPrinter() *Printer {
	p := NewPrinterWithWriter(os.Stdout)
	fd := os.Stdout.Fd()
	p.terminal = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return p
}

// NewPrinterWithWriter creates a Printer on w. The writer is treated as a
// non-terminal, so markdown is printed as-is.
func NewPrinterWithWriter(w io.Writer) *Printer {
	p := &Printer{
		out:      w,
		renderer: lipgloss.NewRenderer(w),
		markdown: MarkdownOptions{Enabled: true, Style: "dark", WordWrap: 100},
	}
	p.buildStyles()
	return p
}

func (p *Printer) buildStyles() {
	r := p.renderer
	p.styles = styles{
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#DA702C")),
		success: r.NewStyle().Foreground(lipgloss.Color("#2E8B57")),
		failure: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("#F1C40F")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("245")),
		label:   r.NewStyle().Bold(true),
	}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

// SetColor enables or disables styling. Disabled output uses the ASCII
// profile regardless of the terminal.
func (p *Printer) SetColor(enabled bool) {
	if enabled {
		p.renderer = lipgloss.NewRenderer(p.out)
	} else {
		p.renderer = lipgloss.NewRenderer(p.out, termenv.WithProfile(termenv.Ascii))
		p.renderer.SetColorProfile(termenv.Ascii)
	}
	p.buildStyles()
}

// SetMarkdown replaces the markdown options.
func (p *Printer) SetMarkdown(opts MarkdownOptions) {
	p.markdown = opts
}

// SetTerminal overrides terminal detection.
func (p *Printer) SetTerminal(terminal bool) {
	p.terminal = terminal
}

// Header prints a bold section title.
func (p *Printer) Header(title string) {
	fmt.Fprintln(p.out, p.styles.header.Render(title))
}

// Text prints a plain line.
func (p *Printer) Text(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.out, p.styles.success.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.out, p.styles.failure.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning line.
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.out, p.styles.warning.Render("! "+fmt.Sprintf(format, args...)))
}

// JSON prints v as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Report prints one validation report: a verdict line, the findings and the
// deduplicated suggestions.
func (p *Printer) Report(r *validator.Report) {
	name := r.Path
	if name == "" {
		name = r.WorkflowID
	}
	if r.Valid {
		p.Success("%s: %s", name, r.Summary())
	} else {
		p.Error("%s: %s", name, r.Summary())
	}

	for _, f := range r.Errors {
		fmt.Fprintf(p.out, "  %s %s\n", p.styles.failure.Render("error"), f)
	}
	for _, f := range r.Warnings {
		fmt.Fprintf(p.out, "  %s %s\n", p.styles.warning.Render("warning"), f)
	}
	if len(r.Suggestions) > 0 {
		fmt.Fprintln(p.out, p.styles.muted.Render("  Suggestions:"))
		for _, s := range r.Suggestions {
			fmt.Fprintln(p.out, p.styles.muted.Render("    - "+s))
		}
	}
}

// ReportsSummary prints the totals of a batch validation.
func (p *Printer) ReportsSummary(reports []*validator.Report) {
	valid := 0
	for _, r := range reports {
		if r.Valid {
			valid++
		}
	}
	fmt.Fprintln(p.out)
	line := fmt.Sprintf("%d of %d definitions valid", valid, len(reports))
	if valid == len(reports) {
		p.Success("%s", line)
	} else {
		p.Error("%s", line)
	}
}

// Status prints the status table of an instance.
func (p *Printer) Status(st *state.ExecutionState) {
	fmt.Fprint(p.out, state.StatusReport(st))
}

// StepLine prints the current step of an instance, or that it is finished.
func (p *Printer) StepLine(st *state.ExecutionState) {
	step := state.CurrentStep(st)
	if step == nil {
		p.Success("%s is %s", st.InstanceID, strings.ToLower(state.Label(st.Status)))
		return
	}
	agent := step.Agent
	if agent == "" {
		agent = "-"
	}
	fmt.Fprintf(p.out, "%s %d  %s  %s  %s\n",
		p.styles.label.Render("Step"),
		step.StepIndex,
		agent,
		step.Action,
		p.styles.muted.Render("("+state.Label(step.Status)+")"))
}

// List prints a table of instance summaries.
func (p *Printer) List(summaries []store.Summary) {
	if len(summaries) == 0 {
		fmt.Fprintln(p.out, p.styles.muted.Render("No workflow instances."))
		return
	}
	fmt.Fprintln(p.out, p.styles.label.Render(fmt.Sprintf("%-44s %-10s %-20s %s", "INSTANCE", "STATUS", "PHASE", "PROGRESS")))
	for _, s := range summaries {
		fmt.Fprintf(p.out, "%-44s %-10s %-20s %d/%d\n",
			s.InstanceID, s.Status, s.CurrentPhase, s.Progress.Done(), s.Progress.Total)
	}
}

// Markdown renders md with glamour when markdown is enabled and the writer
// is a terminal; otherwise md is printed unchanged. A renderer failure falls
// back to the raw text.
func (p *Printer) Markdown(md string) {
	if !p.markdown.Enabled || !p.terminal {
		fmt.Fprint(p.out, md)
		return
	}
	rendered, err := p.renderMarkdown(md)
	if err != nil {
		fmt.Fprint(p.out, md)
		return
	}
	fmt.Fprint(p.out, rendered)
}

func (p *Printer) renderMarkdown(md string) (string, error) {
	style := p.markdown.Style
	if style == "" {
		style = "dark"
	}
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle(style)}
	if p.markdown.WordWrap > 0 {
		opts = append(opts, glamour.WithWordWrap(p.markdown.WordWrap))
	}
	if p.renderer.ColorProfile() == termenv.Ascii {
		opts = append(opts, glamour.WithColorProfile(termenv.Ascii))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
