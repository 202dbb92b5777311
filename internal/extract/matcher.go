package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/casecrawl/internal/model"
)

// Matcher decides whether a text node names a section
type Matcher interface {
	Match(text string) bool
}

// Literal matches text containing the string
type Literal string

func (l Literal) Match(text string) bool {
	return strings.Contains(text, string(l))
}

// Pattern matches text against a regular expression
type Pattern struct {
	re *regexp.Regexp
}

// NewPattern compiles expr into a Pattern
func NewPattern(expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &Pattern{re: re}, nil
}

func (p *Pattern) Match(text string) bool {
	return p.re.MatchString(text)
}

// Rule maps a section label to the matcher that finds it
type Rule struct {
	Label   string
	Matcher Matcher
}

// DefaultVocabulary is the section vocabulary of case detail pages
var DefaultVocabulary = []string{
	"案件信息",
	"涉案人信息",
	"涉案物品",
	"运输信息",
	"承办信息",
	"举报记录表",
	"涉案物品核价表",
	"物品确认",
	"结案报告表",
}

// LiteralRules builds one literal rule per label
func LiteralRules(labels []string) []Rule {
	rules := make([]Rule, len(labels))
	for i, label := range labels {
		rules[i] = Rule{Label: label, Matcher: Literal(label)}
	}
	return rules
}

// NewRules builds rules from configuration. A rule without a pattern matches its label literally.
func NewRules(cfg []model.SectionRule) ([]Rule, error) {
	rules := make([]Rule, 0, len(cfg))
	for _, r := range cfg {
		if r.Label == "" {
			return nil, fmt.Errorf("section rule without label")
		}
		if r.Pattern == "" {
			rules = append(rules, Rule{Label: r.Label, Matcher: Literal(r.Label)})
			continue
		}
		p, err := NewPattern(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", r.Label, err)
		}
		rules = append(rules, Rule{Label: r.Label, Matcher: p})
	}
	return rules, nil
}
