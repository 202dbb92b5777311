// Package output writes extracted records and run reports to disk.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/casecrawl/internal/model"
)

var unsafeName = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SafeName makes an identifier usable as a file or directory name
func SafeName(name string) string {
	safe := unsafeName.ReplaceAllString(strings.TrimSpace(name), "_")
	if safe == "" || safe == "." || safe == ".." {
		return "_"
	}
	return safe
}

// ItemDirName is the directory for one occurrence of an item.
// The first occurrence uses the plain identifier; later ones get a _n suffix.
func ItemDirName(id string, occurrence int) string {
	name := SafeName(id)
	if occurrence > 1 {
		name = fmt.Sprintf("%s_%d", name, occurrence)
	}
	return name
}

// Writer lays out one directory per item under a root directory
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the root directory
func (w *Writer) Dir() string {
	return w.dir
}

// Write persists a record as JSON, one CSV per table and a text summary.
// It returns the item directory.
func (w *Writer) Write(record *model.DetailRecord, occurrence int) (string, error) {
	name := ItemDirName(record.ID, occurrence)
	itemDir := filepath.Join(w.dir, name)
	if err := os.MkdirAll(itemDir, 0755); err != nil {
		return "", fmt.Errorf("create item dir: %w", err)
	}

	data, err := marshalRecord(record)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(itemDir, name+"_data.json"), data, 0644); err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}

	for _, section := range record.Sections {
		for i, table := range section.Tables {
			file := name + "_" + SafeName(section.Label)
			if len(section.Tables) > 1 {
				file += fmt.Sprintf("_%d", i+1)
			}
			if err := WriteCSV(filepath.Join(itemDir, file+".csv"), table.Rows); err != nil {
				return "", err
			}
		}
	}

	summary := ItemSummary(record)
	if err := os.WriteFile(filepath.Join(itemDir, name+"_summary.txt"), []byte(summary), 0644); err != nil {
		return "", fmt.Errorf("write item summary: %w", err)
	}

	return itemDir, nil
}

func marshalRecord(record *model.DetailRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ItemsFile holds the enumerated list rows of the last run
const ItemsFile = "items.json"

// WriteItems records every enumerated item with its list fields, so list-only
// portals keep their rows even when no detail page can be fetched.
func (w *Writer) WriteItems(items []model.ListItem) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if items == nil {
		items = []model.ListItem{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return "", fmt.Errorf("marshal items: %w", err)
	}

	path := filepath.Join(w.dir, ItemsFile)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write items: %w", err)
	}
	return path, nil
}

// ReadItems loads a snapshot written by WriteItems
func ReadItems(path string) ([]model.ListItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	var items []model.ListItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	return items, nil
}

// ReadRecord loads a record written by Write
func ReadRecord(path string) (*model.DetailRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var record model.DetailRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	return &record, nil
}

// WriteCSV writes rows verbatim as UTF-8 without a byte order mark
func WriteCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv: %w", err)
	}
	return nil
}

// ReadCSV reads rows back; rows may differ in length
func ReadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// ItemSummary is the human-readable digest written next to a record
func ItemSummary(record *model.DetailRecord) string {
	var b strings.Builder
	fetched := record.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now()
	}

	fmt.Fprintf(&b, "Item:        %s\n", record.ID)
	fmt.Fprintf(&b, "Detail page: %s\n", record.URL)
	fmt.Fprintf(&b, "Fetched at:  %s\n\n", fetched.Format("2006-01-02 15:04:05"))

	b.WriteString("Sections:\n")
	for _, section := range record.Sections {
		fmt.Fprintf(&b, "- %s: %d table(s)\n", section.Label, len(section.Tables))
		for _, table := range section.Tables {
			fmt.Fprintf(&b, "  * rows: %d\n", len(table.Rows))
		}
	}
	return b.String()
}
