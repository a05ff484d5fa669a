// Package render writes command output as a table, JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/lherron/incsync/internal/domain"
)

// Format represents an output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates an --output value
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
}

// Options for rendering
type Options struct {
	Format    Format
	Porcelain bool
	// Color styles the SEVERITY column and status lines
	Color bool
}

// Renderer handles output rendering
type Renderer struct {
	writer io.Writer
	opts   Options
}

// NewRenderer creates a new renderer
func NewRenderer(writer io.Writer, opts Options) *Renderer {
	if opts.Format == "" {
		opts.Format = FormatTable
	}
	return &Renderer{
		writer: writer,
		opts:   opts,
	}
}

// Format returns the selected output format
func (r *Renderer) Format() Format {
	return r.opts.Format
}

// Structured reports whether output is JSON or YAML
func (r *Renderer) Structured() bool {
	return r.opts.Format == FormatJSON || r.opts.Format == FormatYAML
}

// Render writes data in the structured format, or calls table otherwise
func (r *Renderer) Render(data interface{}, table func() error) error {
	switch r.opts.Format {
	case FormatJSON:
		return r.RenderJSON(data)
	case FormatYAML:
		return r.RenderYAML(data)
	}
	return table()
}

// RenderJSON renders data as JSON
func (r *Renderer) RenderJSON(data interface{}) error {
	encoder := json.NewEncoder(r.writer)
	if !r.opts.Porcelain {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// RenderYAML renders data as YAML
func (r *Renderer) RenderYAML(data interface{}) error {
	encoder := yaml.NewEncoder(r.writer)
	defer encoder.Close()
	return encoder.Encode(data)
}

// Println writes one line of plain text
func (r *Renderer) Println(a ...interface{}) {
	fmt.Fprintln(r.writer, a...)
}

// Printf writes formatted plain text
func (r *Renderer) Printf(format string, a ...interface{}) {
	fmt.Fprintf(r.writer, format, a...)
}

var (
	severityStyles = map[domain.Severity]lipgloss.Style{
		domain.SeverityCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		domain.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF9F43")),
		domain.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F7D154")),
		domain.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		domain.SeverityWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F7D154")),
	}
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5BD67A"))
	headStyle = lipgloss.NewStyle().Bold(true)
)

// Severity renders a severity label, colored when enabled
func (r *Renderer) Severity(s domain.Severity) string {
	return r.paintSeverity(string(s), s)
}

func (r *Renderer) paintSeverity(text string, s domain.Severity) string {
	if !r.opts.Color {
		return text
	}
	style, ok := severityStyles[s]
	if !ok {
		return text
	}
	return style.Render(text)
}

// OK renders a success line
func (r *Renderer) OK(text string) string {
	if !r.opts.Color {
		return text
	}
	return okStyle.Render(text)
}

// RenderTable renders data as a formatted table. A column headed SEVERITY
// is colored per row when color is enabled.
func (r *Renderer) RenderTable(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	if r.opts.Porcelain {
		fmt.Fprintln(r.writer, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(r.writer, strings.Join(row, "\t"))
		}
		return nil
	}

	widths := make([]int, len(headers))
	sevCol := -1
	for i, h := range headers {
		widths[i] = len(h)
		if h == "SEVERITY" {
			sevCol = i
		}
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	r.renderTableRow(headers, widths, -1, true)
	r.renderTableSeparator(widths)
	for _, row := range rows {
		r.renderTableRow(row, widths, sevCol, false)
	}
	return nil
}

func (r *Renderer) renderTableRow(cells []string, widths []int, sevCol int, header bool) {
	var b strings.Builder
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padded := cell
		if i < len(cells)-1 {
			padded = fmt.Sprintf("%-*s", widths[i], cell)
		}
		switch {
		case header && r.opts.Color:
			padded = headStyle.Render(padded)
		case i == sevCol:
			padded = r.paintSeverity(padded, domain.Severity(cell))
		}
		b.WriteString(padded)
		if i < len(cells)-1 {
			b.WriteString("  ")
		}
	}
	fmt.Fprintln(r.writer, b.String())
}

func (r *Renderer) renderTableSeparator(widths []int) {
	parts := make([]string, len(widths))
	for i, width := range widths {
		parts[i] = strings.Repeat("-", width)
	}
	fmt.Fprintln(r.writer, strings.Join(parts, "  "))
}
