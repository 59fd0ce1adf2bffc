package console

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/flash"
)

// Printer renders command output and flash messages to one writer.
type Printer struct {
	// mu serializes writes: flashes arrive from timer and command goroutines.
	mu  sync.Mutex
	out io.Writer

	info  *color.Color
	warn  *color.Color
	fail  *color.Color
	label *color.Color
}

// NewPrinter creates a printer; colored decides whether escape codes are written.
func NewPrinter(out io.Writer, colored bool) *Printer {
	p := &Printer{
		out:   out,
		info:  color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		fail:  color.New(color.FgRed, color.Bold),
		label: color.New(color.Bold),
	}

	for _, c := range []*color.Color{p.info, p.warn, p.fail, p.label} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return p
}

// Flash prints one flash message with a severity tag.
func (p *Printer) Flash(msg flash.Message) {
	c := p.info

	switch msg.Severity {
	case flash.SeverityWarn:
		c = p.warn
	case flash.SeverityError:
		c = p.fail
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = c.Fprintf(p.out, "[%s] %s\n", strings.ToUpper(string(msg.Severity)), msg.Text)
}

// Line prints one plain line.
func (p *Printer) Line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = fmt.Fprintf(p.out, format+"\n", args...)
}

// Title prints a bold heading.
func (p *Printer) Title(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = p.label.Fprintln(p.out, text)
}

// Text prints raw text followed by a newline.
func (p *Printer) Text(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = io.WriteString(p.out, strings.TrimRight(text, "\n")+"\n")
}

// Entities prints items as a table with one column per field.
func (p *Printer) Entities(fields []entity.FieldDescriptor, items []entity.Entity) {
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = strings.ToUpper(f.Label())
	}

	rows := make([][]string, 0, len(items))

	for _, item := range items {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = FormatValue(item[f.Key])
		}

		rows = append(rows, row)
	}

	p.Table(header, rows)
}

// Table prints rows under a header, columns aligned.
func (p *Printer) Table(header []string, rows [][]string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	_ = w.Flush()
}

// FormatValue renders a JSON-shaped value for a table cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return strconv.FormatInt(int64(x), 10)
		}

		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}

		return string(data)
	default:
		return fmt.Sprint(x)
	}
}
