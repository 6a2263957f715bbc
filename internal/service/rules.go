package service

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/jask/finledger/internal/ledger"
)

// fuzzyThreshold is the largest normalized edit distance accepted by the
// category name fallback.
const fuzzyThreshold = 0.4

// Record is an imported statement line waiting for a category.
type Record struct {
	Type         ledger.TxType
	Party        string
	Details      string
	CategoryName string
}

// Suggestion is a category proposed for a record. Rule is nil when the
// category was found by the fuzzy name fallback.
type Suggestion struct {
	CategoryID int64
	Rule       *ledger.Rule
}

type ruleKey struct {
	cond ledger.ConditionType
	typ  ledger.TxType
}

// RuleMatcher applies categorization rules to imported records.
type RuleMatcher struct {
	rules map[ruleKey][]ledger.Rule
	cats  []ledger.Category
}

// NewRuleMatcher indexes rules by condition and by the type of the category
// they assign. Rules pointing at unknown categories are ignored.
func NewRuleMatcher(rules []ledger.Rule, cats []ledger.Category) *RuleMatcher {
	ix := ledger.IndexCategories(cats)
	m := &RuleMatcher{rules: map[ruleKey][]ledger.Rule{}, cats: cats}
	for _, r := range rules {
		typ, ok := ix.Root(r.CategoryID)
		if !ok {
			continue
		}
		k := ruleKey{r.Condition, typ}
		m.rules[k] = append(m.rules[k], r)
	}
	return m
}

var precedence = []struct {
	cond     ledger.ConditionType
	field    func(Record) string
	contains bool
}{
	{ledger.DetailsEquals, func(r Record) string { return r.Details }, false},
	{ledger.PartyEquals, func(r Record) string { return r.Party }, false},
	{ledger.CategoryNameEquals, func(r Record) string { return r.CategoryName }, false},
	{ledger.DetailsContains, func(r Record) string { return r.Details }, true},
	{ledger.PartyContains, func(r Record) string { return r.Party }, true},
	{ledger.CategoryNameContains, func(r Record) string { return r.CategoryName }, true},
}

// Suggest returns the first rule matching rec in precedence order: exact
// matches on details, party and category name, then substring matches in
// the same order. Comparisons ignore case.
func (m *RuleMatcher) Suggest(rec Record) (Suggestion, bool) {
	for _, p := range precedence {
		v := strings.ToLower(strings.TrimSpace(p.field(rec)))
		if v == "" {
			continue
		}
		for _, r := range m.rules[ruleKey{p.cond, rec.Type}] {
			want := strings.ToLower(r.Value)
			if (!p.contains && v == want) || (p.contains && strings.Contains(v, want)) {
				rule := r
				return Suggestion{CategoryID: r.CategoryID, Rule: &rule}, true
			}
		}
	}
	return m.fuzzy(rec)
}

// fuzzy picks the category of rec's type whose name is closest to the
// record's category name.
func (m *RuleMatcher) fuzzy(rec Record) (Suggestion, bool) {
	name := strings.ToLower(strings.TrimSpace(rec.CategoryName))
	if name == "" {
		return Suggestion{}, false
	}
	best, bestDist := int64(0), fuzzyThreshold
	for _, c := range m.cats {
		if c.Type != rec.Type || c.ParentID == nil {
			continue
		}
		if d := distance(name, strings.ToLower(c.Name)); d < bestDist {
			best, bestDist = c.ID, d
		}
	}
	if best == 0 {
		return Suggestion{}, false
	}
	return Suggestion{CategoryID: best}, true
}

func distance(a, b string) float64 {
	n := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if n == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(n)
}
