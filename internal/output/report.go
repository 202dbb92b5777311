package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/phuslu/log"

	"github.com/ppiankov/casecrawl/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

// Render formats a run summary as the plain-text run report
func Render(s *model.RunSummary) string {
	var b strings.Builder

	b.WriteString("Crawl Report\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")

	fmt.Fprintf(&b, "Run:      %s\n", s.RunID)
	if s.Portal != "" {
		fmt.Fprintf(&b, "Portal:   %s\n", s.Portal)
	}
	fmt.Fprintf(&b, "Started:  %s\n", s.StartedAt.Format(timeLayout))
	fmt.Fprintf(&b, "Finished: %s\n", s.FinishedAt.Format(timeLayout))
	if s.Interrupted {
		b.WriteString("Status:   interrupted\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Total items:          %d\n", s.Total)
	fmt.Fprintf(&b, "Succeeded:            %d\n", s.Succeeded)
	fmt.Fprintf(&b, "Failed:               %d\n", s.FailedCount())
	fmt.Fprintf(&b, "Previously completed: %d\n\n", s.Skipped)

	if len(s.Failures) > 0 {
		b.WriteString("Failed items:\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "- %s: %s\n", f.ID, f.Reason)
		}
		b.WriteString("\n")
	}

	if len(s.Statuses) > 0 {
		b.WriteString("Overview:\n")
		t := table.NewWriter()
		t.AppendHeader(table.Row{"#", "Item", "Status"})
		for i, st := range s.Statuses {
			t.AppendRow(table.Row{i + 1, st.ID, statusMarker(st)})
		}
		t.SetStyle(table.StyleRounded)
		b.WriteString(t.Render())
		b.WriteString("\n")
	}

	return b.String()
}

func statusMarker(st model.ItemStatus) string {
	switch {
	case st.Skipped:
		return "✓ previously completed"
	case st.Success:
		return "✓ success"
	default:
		return "✗ failed"
	}
}

// WriteReport writes the rendered report to path. A failure is logged and returned
// but never changes the outcome of the run.
func WriteReport(path string, s *model.RunSummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Error().Err(err).Str("path", path).Msg("report not written")
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(Render(s)), 0644); err != nil {
		log.Error().Err(err).Str("path", path).Msg("report not written")
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
