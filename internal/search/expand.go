package search

import "strings"

// Query expansion is keyword-driven: when the query touches one of the core
// counseling concepts, related theory terms are added as extra search
// queries. No LLM call is involved, so expansion is deterministic and cheap.

type expansionCategory struct {
	triggers []string
	terms    []string
}

var expansionCategories = []expansionCategory{
	{
		triggers: []string{"inferiority", "열등감", "열등", "자존감", "비교"},
		terms:    []string{"inferiority complex", "superiority striving", "compensation"},
	},
	{
		triggers: []string{"social", "사회적", "관계", "대인", "소외", "친구", "동료"},
		terms:    []string{"social interest", "community feeling", "cooperation"},
	},
	{
		triggers: []string{"lifestyle", "생활양식", "습관", "생활"},
		terms:    []string{"lifestyle", "life style pattern", "life goal"},
	},
	{
		triggers: []string{"encouragement", "격려", "용기", "위로"},
		terms:    []string{"encouragement", "therapy", "counseling"},
	},
	{
		triggers: []string{"goal", "목표", "목적"},
		terms:    []string{"goal orientation", "teleological", "purpose"},
	},
}

// emotionTriggers add the two central Adlerian concepts whenever the query
// expresses distress without naming a concept directly.
var emotionTriggers = []string{
	"sad", "depressed", "anxious", "worried", "stress",
	"슬프", "우울", "불안", "걱정", "스트레스", "힘들",
}

var emotionExpansionTerms = []string{"inferiority complex", "social interest"}

const maxExpandedQueries = 4

// expandQuery returns related search queries for the input, at most two terms
// per matched concept and capped overall. The original query is not included;
// it has already been searched.
func expandQuery(query string) []string {
	lowered := strings.ToLower(query)

	var expanded []string
	seen := make(map[string]struct{})
	add := func(term string) {
		if _, ok := seen[term]; ok || len(expanded) >= maxExpandedQueries {
			return
		}
		seen[term] = struct{}{}
		expanded = append(expanded, term)
	}

	for _, cat := range expansionCategories {
		if !matchesAny(lowered, cat.triggers) {
			continue
		}
		for i, term := range cat.terms {
			if i >= 2 {
				break
			}
			add(term)
		}
	}

	if matchesAny(lowered, emotionTriggers) {
		for _, term := range emotionExpansionTerms {
			add(term)
		}
	}

	return expanded
}

func matchesAny(s string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
