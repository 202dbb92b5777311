package extract

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/casecrawl/internal/model"
)

func labels(s model.Sections) []string {
	var out []string
	for _, section := range s {
		out = append(out, section.Label)
	}
	return out
}

func TestExtract_NearestFollowingTable(t *testing.T) {
	page := `<html><body>
		<div><h3>案件信息</h3></div>
		<div><div><table>
			<tr><th>案件编号</th><th>案由</th></tr>
			<tr><td>2024-001</td><td>无证运输</td></tr>
			<tr><td> </td><td></td></tr>
		</table></div></div>
		<p>涉案人信息</p>
		<table><tr><td>张三</td><td>男</td></tr></table>
	</body></html>`

	sections, err := New(LiteralRules(DefaultVocabulary), "").ExtractHTML(page)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"案件信息", "涉案人信息"}, labels(sections)); diff != "" {
		t.Errorf("section labels mismatch (-want +got):\n%s", diff)
	}

	info, _ := sections.Get("案件信息")
	want := [][]string{{"案件编号", "案由"}, {"2024-001", "无证运输"}}
	if diff := cmp.Diff(want, info.Tables[0].Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if info.Tables[0].Title != "案件信息" {
		t.Errorf("table should be titled by its label, got %q", info.Tables[0].Title)
	}
}

func TestExtract_RepeatedLabel(t *testing.T) {
	page := `<body>
		<b>涉案物品</b><table><tr><td>卷烟</td><td>10条</td></tr></table>
		<b>涉案物品</b><table><tr><td>雪茄</td><td>2盒</td></tr></table>
	</body>`

	sections, err := New(LiteralRules(DefaultVocabulary), "").ExtractHTML(page)
	if err != nil {
		t.Fatal(err)
	}

	items, ok := sections.Get("涉案物品")
	if !ok {
		t.Fatal("expected 涉案物品 section")
	}
	if len(items.Tables) != 2 {
		t.Fatalf("expected 2 tables for repeated label, got %d", len(items.Tables))
	}
	if items.Tables[1].Rows[0][0] != "雪茄" {
		t.Errorf("tables should keep document order, got %v", items.Tables[1].Rows)
	}
}

func TestExtract_SameTableAttributedOnce(t *testing.T) {
	page := `<body><span>运输信息</span><span>运输信息（续）</span>
		<table><tr><td>车辆</td><td>川A12345</td></tr></table></body>`

	sections, err := New(LiteralRules(DefaultVocabulary), "").ExtractHTML(page)
	if err != nil {
		t.Fatal(err)
	}
	transport, _ := sections.Get("运输信息")
	if len(transport.Tables) != 1 {
		t.Errorf("one table should be attributed once per section, got %d", len(transport.Tables))
	}
}

func TestExtract_FallbackKeepsAllTables(t *testing.T) {
	page := `<body>
		<h2>基本情况</h2>
		<table><tr><td>a</td><td>b</td></tr><tr><td>c</td><td>d</td></tr></table>
		<table><tr><td></td></tr></table>
		<table><tr><td>e</td></tr></table>
	</body>`

	sections, err := New(LiteralRules(DefaultVocabulary), "").ExtractHTML(page)
	if err != nil {
		t.Fatal(err)
	}

	if len(sections) != 1 || sections[0].Label != DefaultFallbackLabel {
		t.Fatalf("expected exactly the catch-all section, got %v", labels(sections))
	}

	var titles []string
	for _, table := range sections[0].Tables {
		titles = append(titles, table.Title)
	}
	if diff := cmp.Diff([]string{"表格1", "表格3"}, titles); diff != "" {
		t.Errorf("fallback titles mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_LabelWithoutFollowingTable(t *testing.T) {
	page := `<body><table><tr><td>x</td></tr></table><p>结案报告表</p></body>`

	sections, err := New(LiteralRules(DefaultVocabulary), "所有表格").ExtractHTML(page)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"所有表格"}, labels(sections)); diff != "" {
		t.Errorf("label with no table after it should not hide the tables (-want +got):\n%s", diff)
	}
}

func TestExtract_IgnoresScriptText(t *testing.T) {
	page := `<body><script>var t = "案件信息";</script>
		<table><tr><td>only</td></tr></table></body>`

	sections, err := New(LiteralRules(DefaultVocabulary), "").ExtractHTML(page)
	if err != nil {
		t.Fatal(err)
	}
	if sections[0].Label != DefaultFallbackLabel {
		t.Errorf("script text should not match labels, got %v", labels(sections))
	}
}

func TestExtract_NoTables(t *testing.T) {
	_, err := New(LiteralRules(DefaultVocabulary), "").ExtractHTML(`<html><body>请重新登录</body></html>`)
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}

	if _, err := New(nil, "").ExtractHTML("  "); err == nil {
		t.Error("expected error for empty document")
	}
}

func TestNewRules(t *testing.T) {
	rules, err := NewRules([]model.SectionRule{
		{Label: "案件信息"},
		{Label: "涉案人信息", Pattern: `涉案(人|人员)信息`},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !rules[1].Matcher.Match("涉案人员信息") {
		t.Error("pattern rule should match variant label")
	}
	if rules[0].Matcher.Match("案件") {
		t.Error("literal rule should need the full label")
	}

	if _, err := NewRules([]model.SectionRule{{Label: "x", Pattern: "("}}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestExtract_PatternRule(t *testing.T) {
	rules, err := NewRules([]model.SectionRule{{Label: "涉案人信息", Pattern: `涉案(人|人员)信息`}})
	if err != nil {
		t.Fatal(err)
	}
	page := `<body><p>涉案人员信息</p><table><tr><td>李四</td></tr></table></body>`

	sections, err := New(rules, "").ExtractHTML(page)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"涉案人信息"}, labels(sections)); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}
