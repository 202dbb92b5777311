package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/output"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <item dir | data.json>",
	Short: "Print a saved case record as tables",
	Long: `Inspect reads a case record written by crawl and prints its basic
information and every extracted table.

Example:
  casecrawl inspect case-data/2024-001
  casecrawl inspect case-data/2024-001/2024-001_data.json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	path, err := recordPath(args[0])
	if err != nil {
		return err
	}

	record, err := output.ReadRecord(path)
	if err != nil {
		return err
	}

	fmt.Print(renderRecord(record))
	return nil
}

// recordPath accepts either a record file or the item directory holding it
func recordPath(arg string) (string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return arg, nil
	}

	matches, err := filepath.Glob(filepath.Join(arg, "*_data.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no record in %s", arg)
	}
	return matches[0], nil
}

func renderRecord(record *model.DetailRecord) string {
	out := fmt.Sprintf("Case %s\n", record.ID)
	out += fmt.Sprintf("Source:  %s\n", record.URL)
	if !record.FetchedAt.IsZero() {
		out += fmt.Sprintf("Fetched: %s\n", record.FetchedAt.Local().Format("2006-01-02 15:04:05"))
	}
	out += "\n"

	if len(record.BasicInfo) > 0 {
		t := table.NewWriter()
		t.SetTitle("Basic information")
		for _, f := range record.BasicInfo {
			t.AppendRow(table.Row{f.Label, f.Value})
		}
		t.SetStyle(table.StyleRounded)
		out += t.Render() + "\n\n"
	}

	for _, section := range record.Sections {
		for _, tbl := range section.Tables {
			t := table.NewWriter()
			t.SetTitle(tbl.Title)
			for _, row := range tbl.Rows {
				r := make(table.Row, len(row))
				for i, cell := range row {
					r[i] = cell
				}
				t.AppendRow(r)
			}
			t.SetStyle(table.StyleRounded)
			out += t.Render() + "\n\n"
		}
	}

	out += fmt.Sprintf("%d sections, %d tables\n", len(record.Sections), record.Sections.TableCount())
	return out
}
