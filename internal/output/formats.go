package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/trafficgen/internal/metrics"
	"github.com/wesleyorama2/trafficgen/internal/scheduler"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatTable is the default human-readable format
	FormatTable OutputFormat = "table"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s (expected table, json or yaml)", s)
	}
}

// FireResult is what the fire command prints: the invocation report and
// the outcome of the requests it sent.
type FireResult struct {
	Report   scheduler.Report                `json:"report" yaml:"report"`
	Summary  *metrics.Snapshot               `json:"summary" yaml:"summary"`
	Requests map[string]metrics.LatencyStats `json:"requests" yaml:"requests"`
}

// Printer renders task listings and fire results.
type Printer struct {
	w       io.Writer
	format  OutputFormat
	noColor bool
	colors  *ColorScheme
}

// NewPrinter creates a printer writing to w. Colors are only used for the
// table format on a terminal.
func NewPrinter(w io.Writer, format OutputFormat, noColor bool) *Printer {
	useColor := format == FormatTable && UseColor(w, noColor)
	colors := NoColorScheme()
	if useColor {
		colors = DefaultColorScheme()
		for _, c := range colors.all() {
			c.EnableColor()
		}
	}
	return &Printer{
		w:       w,
		format:  format,
		noColor: !useColor,
		colors:  colors,
	}
}

// Tasks prints the task registry.
func (p *Printer) Tasks(tasks []scheduler.TaskInfo) error {
	switch p.format {
	case FormatJSON:
		return p.json(tasks)
	case FormatYAML:
		return p.yaml(tasks)
	default:
		return p.taskTable(tasks)
	}
}

// Fire prints the result of a single invocation.
func (p *Printer) Fire(result *FireResult) error {
	switch p.format {
	case FormatJSON:
		return p.json(result)
	case FormatYAML:
		return p.yaml(result)
	default:
		return p.fireText(result)
	}
}

func (p *Printer) json(v interface{}) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) yaml(v interface{}) error {
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (p *Printer) taskTable(tasks []scheduler.TaskInfo) error {
	headers := []string{"TASK", "CADENCE", "SERIALIZED", "DESCRIPTION"}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		serialized := "no"
		if t.Serialize {
			serialized = "yes"
		}
		rows = append(rows, []string{t.Name, t.Cadence, serialized, t.Description})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := len([]rune(cell)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(p.colors.Header.Sprint(h))
		b.WriteString(pad(h, widths[i], i == len(headers)-1))
	}
	b.WriteString("\n")

	cellColors := []func(a ...interface{}) string{
		p.colors.Task.Sprint,
		p.colors.Cadence.Sprint,
		p.colors.Highlight.Sprint,
		p.colors.Muted.Sprint,
	}
	for _, row := range rows {
		for i, cell := range row {
			paint := cellColors[i]
			if i == 2 && cell == "no" {
				paint = p.colors.Counter.Sprint
			}
			b.WriteString(paint(cell))
			b.WriteString(pad(cell, widths[i], i == len(row)-1))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(p.w, b.String())
	return err
}

// pad returns the spaces that follow cell in a column of width. Widths are
// counted in runes, so double-width characters misalign; task names are ASCII.
func pad(cell string, width int, last bool) string {
	if last {
		return ""
	}
	return strings.Repeat(" ", width-len([]rune(cell))+2)
}

func (p *Printer) fireText(result *FireResult) error {
	var b strings.Builder
	report := result.Report

	icon := SuccessIcon(p.noColor)
	if report.Err != nil {
		icon = ErrorIcon(p.noColor)
	} else if result.Summary != nil && result.Summary.FailedRequests > 0 {
		icon = WarningIcon(p.noColor)
	}

	fmt.Fprintf(&b, "%s %s attempted %s requests in %s\n",
		icon,
		p.colors.Task.Sprint(report.Task),
		p.colors.Highlight.Sprint(report.Attempted),
		report.Duration.Round(time.Millisecond))
	if report.Err != nil {
		fmt.Fprintf(&b, "  %s\n", p.colors.Error.Sprint(report.Err.Error()))
	}

	if s := result.Summary; s != nil {
		fmt.Fprintf(&b, "  %s %d  %s %d\n",
			p.colors.Success.Sprint("succeeded"), s.SuccessRequests,
			p.colors.Error.Sprint("failed"), s.FailedRequests)

		classes := make([]string, 0, len(s.Classes))
		for class := range s.Classes {
			classes = append(classes, class)
		}
		sort.Strings(classes)
		for _, class := range classes {
			fmt.Fprintf(&b, "    %-14s %d\n", class, s.Classes[class])
		}
	}

	names := make([]string, 0, len(result.Requests))
	for name := range result.Requests {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := result.Requests[name]
		fmt.Fprintf(&b, "  %s count=%d p50=%s p95=%s max=%s\n",
			p.colors.Cadence.Sprint(name), st.Count,
			st.P50.Round(time.Millisecond), st.P95.Round(time.Millisecond), st.Max.Round(time.Millisecond))
	}

	_, err := io.WriteString(p.w, b.String())
	return err
}
