package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// ComplexityClassifier decides whether a question is answerable by a single
// search or needs decomposition. It is pure (no I/O) and runs on every
// request before any network access.
type ComplexityClassifier struct{}

// NewComplexityClassifier creates a classifier.
func NewComplexityClassifier() *ComplexityClassifier {
	return &ComplexityClassifier{}
}

var (
	// Two adjacent capitalized words: a person or organisation name.
	properNounPair = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)

	// Mixed-case token suggestive of a brand name (AcmeCorp, WidgetCo).
	brandToken = regexp.MustCompile(`\b[A-Z][a-z]+[A-Z][A-Za-z]*\b`)
)

var comparisonCues = []string{
	"compare",
	" vs ",
	" vs.",
	"versus",
	"difference between",
	"better than",
	"pros and cons",
}

// sentenceStarters are capitalized only by position, not because they name
// anything; pairs beginning with one are not entities.
var sentenceStarters = map[string]struct{}{
	"who": {}, "what": {}, "where": {}, "when": {}, "why": {}, "how": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "does": {}, "do": {}, "did": {},
	"can": {}, "could": {}, "should": {}, "would": {}, "will": {},
	"tell": {}, "explain": {}, "describe": {}, "list": {}, "compare": {},
	"the": {}, "a": {}, "an": {}, "please": {}, "give": {},
}

// Analyze classifies one question. Rule precedence, first match wins:
// entity-bearing questions without a comparison cue stay atomic (splitting a
// two-word name into unrelated sub-searches loses the entity context), then
// comparisons over multiple entities decompose, then structural breadth.
func (c *ComplexityClassifier) Analyze(question string) ComplexityAnalysis {
	entities := c.namedEntities(question)
	hasCue := c.hasComparisonCue(question)

	if len(entities) >= 2 && !hasCue {
		return ComplexityAnalysis{
			Complexity:      ComplexitySimple,
			ShouldDecompose: false,
			MaxSubQueries:   1,
			Reason:          "entity-bearing query without comparison cue; decomposition would drop entity context",
		}
	}

	if hasCue && len(entities) >= 2 {
		maxSub := len(entities)
		if maxSub > 3 {
			maxSub = 3
		}
		return ComplexityAnalysis{
			Complexity:      ComplexityComplex,
			ShouldDecompose: true,
			MaxSubQueries:   maxSub,
			Reason:          fmt.Sprintf("comparison across %d named entities", len(entities)),
		}
	}

	if facets := c.countFacets(question); facets >= 3 {
		return ComplexityAnalysis{
			Complexity:      ComplexityComplex,
			ShouldDecompose: true,
			MaxSubQueries:   3,
			Reason:          "multiple open-ended facets",
		}
	} else if facets == 2 {
		return ComplexityAnalysis{
			Complexity:      ComplexityMedium,
			ShouldDecompose: true,
			MaxSubQueries:   2,
			Reason:          "two distinct facets",
		}
	}

	return ComplexityAnalysis{
		Complexity:      ComplexitySimple,
		ShouldDecompose: false,
		MaxSubQueries:   1,
		Reason:          "single-facet question",
	}
}

// namedEntities returns the distinct proper-noun shaped sequences found in
// the question.
func (c *ComplexityClassifier) namedEntities(question string) []string {
	seen := make(map[string]struct{})
	var entities []string

	add := func(entity string) {
		if _, ok := seen[entity]; ok {
			return
		}
		seen[entity] = struct{}{}
		entities = append(entities, entity)
	}

	for _, pair := range properNounPair.FindAllString(question, -1) {
		first := strings.ToLower(strings.Fields(pair)[0])
		if _, starter := sentenceStarters[first]; starter {
			continue
		}
		add(pair)
	}

	for _, brand := range brandToken.FindAllString(question, -1) {
		add(brand)
	}

	return entities
}

// hasComparisonCue reports whether the question asks for a comparison.
func (c *ComplexityClassifier) hasComparisonCue(question string) bool {
	lowered := " " + strings.ToLower(question) + " "
	for _, cue := range comparisonCues {
		if strings.Contains(lowered, cue) {
			return true
		}
	}
	return false
}

// countFacets estimates how many open-ended topics the question spans, from
// enumerations and "and"-joined broad clauses.
func (c *ComplexityClassifier) countFacets(question string) int {
	// Short questions are never multi-facet regardless of punctuation.
	if len(strings.Fields(question)) < 8 {
		return 1
	}

	lowered := strings.ToLower(question)
	facets := 1 + strings.Count(lowered, ",")

	// "and" joining substantial clauses, not short noun glue.
	parts := strings.Split(lowered, " and ")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		if len(strings.Fields(part)) >= 3 {
			facets++
		}
	}

	return facets
}
