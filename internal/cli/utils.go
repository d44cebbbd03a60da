// Package cli provides output helpers for the kotae command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	answerStyle  = lipgloss.NewStyle().PaddingLeft(2)
)

// ParseFormat returns the output format named by s. Unknown names are text.
func ParseFormat(s string) OutputFormat {
	if strings.EqualFold(s, string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteTurn writes an answered question and its sources.
func WriteTurn(w io.Writer, turn *session.Turn, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, turn)
	}
	fmt.Fprintf(w, "\n%s\n", titleStyle.Render("Answer"))
	fmt.Fprintf(w, "%s\n\n", answerStyle.Render(turn.Answer))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Sources:"), strings.Join(turn.Sources, ", "))
	fmt.Fprintf(w, "%s\n", mutedStyle.Render("trace "+turn.Trace.TraceID))
	return nil
}

// WriteIngestReport writes the outcome of an ingest.
func WriteIngestReport(w io.Writer, report *pipeline.IngestReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "\n%s\n", titleStyle.Render("Ingested "+report.Collection))
	for _, f := range report.Files {
		fmt.Fprintf(w, "  %s %s (%d chunks)\n", successStyle.Render("ok"), f.Source, f.Chunks)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  %s %s: %s\n", errorStyle.Render("failed"), f.Source, f.Error)
	}
	fmt.Fprintf(w, "\nStored %d chunks (%d in collection)", report.ChunksStored, report.TotalChunks)
	if report.Fresh {
		fmt.Fprint(w, ", collection was reset first")
	}
	fmt.Fprintf(w, "\n%s\n", mutedStyle.Render("trace "+report.TraceID))
	return nil
}

// WriteStatus writes collection statistics and the configured providers.
func WriteStatus(w io.Writer, status *pipeline.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	c := status.Collection
	fmt.Fprintf(w, "\n%s\n", titleStyle.Render("Collection "+c.Name))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Directory: "), c.Dir)
	fmt.Fprintf(w, "%s %s (%d dims)\n", labelStyle.Render("Embedder:  "), c.Embedder, c.Dimensions)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Generator: "), status.Generator)
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("Chunks:    "), c.Chunks)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Disk:      "), FormatBytes(c.DiskBytes))
	if len(c.Sources) == 0 {
		fmt.Fprintf(w, "\n%s\n", mutedStyle.Render("No documents ingested yet."))
		return nil
	}
	fmt.Fprintf(w, "\n%s\n", labelStyle.Render("Sources"))
	for _, s := range c.Sources {
		fmt.Fprintf(w, "  %-40s %5d chunks\n", utils.Truncate(s.Source, 40), s.Chunks)
	}
	return nil
}

// WriteHistory writes the turns of a session, oldest first.
func WriteHistory(w io.Writer, turns []session.Turn, format OutputFormat) error {
	if format == OutputJSON {
		if turns == nil {
			turns = []session.Turn{}
		}
		return writeJSON(w, turns)
	}
	if len(turns) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No questions asked yet."))
		return nil
	}
	for i, t := range turns {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("Q%d:", i+1)), t.Question)
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("A%d:", i+1)), TruncateWords(t.Answer, 40))
	}
	return nil
}

// WriteError writes err in the given format.
func WriteError(w io.Writer, err error, format OutputFormat) {
	if format == OutputJSON {
		_ = writeJSON(w, map[string]string{"error": err.Error()})
		return
	}
	fmt.Fprintln(w, errorStyle.Render("Error: "+err.Error()))
}

// FormatBytes renders n using binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
