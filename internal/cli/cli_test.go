package cli

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/output"
)

func sampleRecord() *model.DetailRecord {
	r := &model.DetailRecord{ID: "2024-001", URL: "http://portal/case/1"}
	r.BasicInfo.Set("当事人", "张三")
	r.Sections = model.Sections{{
		Label:  "涉案物品",
		Tables: []model.Table{{Title: "涉案物品", Rows: [][]string{{"卷烟", "10条"}}}},
	}}
	return r
}

func TestRecordPath_AcceptsItemDir(t *testing.T) {
	dir := t.TempDir()
	itemDir, err := output.NewWriter(dir).Write(sampleRecord(), 1)
	if err != nil {
		t.Fatal(err)
	}

	path, err := recordPath(itemDir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "2024-001_data.json" {
		t.Errorf("unexpected record path %s", path)
	}

	if _, err := recordPath(t.TempDir()); err == nil {
		t.Error("a directory without a record should fail")
	}
}

func TestRenderRecord(t *testing.T) {
	out := renderRecord(sampleRecord())
	for _, want := range []string{"Case 2024-001", "张三", "卷烟", "1 sections, 1 tables"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered record missing %q:\n%s", want, out)
		}
	}
}

func TestApplyFlags_OnlyChangedFlagsWin(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Crawl.OutputDir = "from-config"

	if err := crawlCmd.Flags().Set("delay", "5s"); err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = crawlCmd.Flags().Set("delay", "0s")
		crawlCmd.Flags().Lookup("delay").Changed = false
	}()

	applyFlags(crawlCmd, cfg)

	if cfg.Crawl.ItemDelay != 5*time.Second {
		t.Errorf("changed flag should win, got %v", cfg.Crawl.ItemDelay)
	}
	if cfg.Crawl.OutputDir != "from-config" {
		t.Errorf("unchanged flag must not override config, got %q", cfg.Crawl.OutputDir)
	}
}

func TestPauseAfterItem(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{2 * time.Second, 2 * time.Second},
		{0, -1},
		{-time.Second, -1},
	}
	for _, tt := range tests {
		if got := pauseAfterItem(tt.in); got != tt.want {
			t.Errorf("pauseAfterItem(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
