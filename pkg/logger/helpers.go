package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"
)

// Icons and symbols for different log types
const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconDebug   = "🔍"
	IconRocket  = "🚀"
	IconConfig  = "⚙️"
	IconTime    = "⏱️"
	IconFolder  = "📁"
	IconFile    = "📄"
	IconRefresh = "🔄"
	IconTarget  = "🎯"
	IconShield  = "🛡️"
	IconBoom    = "💥"
	IconDrone   = "🛸"
	IconCheck   = "✓"
	IconCross   = "✗"
	IconDot     = "•"
	IconArrow   = "→"
)

// Success logs a success message with a green checkmark
func Success(args ...interface{}) {
	defaultLogger.Info(IconSuccess + " " + fmt.Sprint(args...))
}

// Successf logs a formatted success message
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// Progress logs a progress message with a refresh icon
func Progress(args ...interface{}) {
	defaultLogger.Info(IconRefresh + " " + fmt.Sprint(args...))
}

// Progressf logs a formatted progress message
func Progressf(format string, args ...interface{}) {
	Progress(fmt.Sprintf(format, args...))
}

func colorEnabled() bool {
	l, ok := defaultLogger.(*logger)
	return ok && !l.noColor
}

func banner(w io.Writer, title, rule, color string) {
	if colorEnabled() {
		fmt.Fprintln(w, color+rule+colorReset)
		fmt.Fprintln(w, color+title+colorReset)
		fmt.Fprintln(w, color+rule+colorReset)
		return
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, rule)
}

// LogSection creates a visual section separator
func LogSection(title string) {
	banner(os.Stdout, title, strings.Repeat("=", 50), colorCyan+colorBold)
}

// LogSubSection creates a visual subsection separator
func LogSubSection(title string) {
	banner(os.Stdout, title, strings.Repeat("-", 40), colorGray)
}

// LogList logs a list of items with bullets
func LogList(title string, items []string) {
	Info(title)
	for _, item := range items {
		fmt.Printf("  %s %s\n", IconDot, item)
	}
}

// LogKeyValue logs a key-value pair with nice formatting
func LogKeyValue(key string, value interface{}) {
	if colorEnabled() {
		fmt.Printf("%s%s:%s %v\n", colorCyan, key, colorReset, value)
	} else {
		fmt.Printf("%s: %v\n", key, value)
	}
}

// LogKeyValues logs multiple key-value pairs in key order
func LogKeyValues(pairs map[string]interface{}) {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		LogKeyValue(k, pairs[k])
	}
}

// Table represents a simple table for logging
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow adds a row to the table
func (t *Table) AddRow(values ...string) {
	t.rows = append(t.rows, values)
}

// Print prints the table to stdout
func (t *Table) Print() {
	t.Fprint(os.Stdout)
}

// Fprint renders the table to w. Widths count runes so icons line up.
func (t *Table) Fprint(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(cell))
			}
		}
	}

	writeRow := func(cells []string) {
		var b strings.Builder
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)+2))
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}

	writeRow(t.headers)
	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}
	writeRow(rule)
	for _, row := range t.rows {
		writeRow(row)
	}
}
