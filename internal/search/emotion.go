package search

import "strings"

// emotionBooster raises the similarity of chunks that share counseling
// vocabulary with the user's emotional context. The boost is proportional to
// the fraction of context terms found in the chunk, capped at 0.2, and the
// boosted similarity never exceeds 1.
type emotionBooster struct {
	terms []string
}

const maxEmotionBoost = 0.2

// newEmotionBooster derives the boost terms from the emotion context plus any
// lexicon entries the context mentions.
func newEmotionBooster(emotionContext string, lexicon []string) *emotionBooster {
	context := strings.ToLower(strings.TrimSpace(emotionContext))
	if context == "" {
		return &emotionBooster{}
	}

	seen := make(map[string]struct{})
	var terms []string
	add := func(t string) {
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}

	for _, w := range strings.Fields(context) {
		add(w)
	}
	for _, entry := range lexicon {
		if strings.Contains(context, strings.ToLower(entry)) {
			add(strings.ToLower(entry))
		}
	}

	return &emotionBooster{terms: terms}
}

// apply adjusts every result in place.
func (b *emotionBooster) apply(results []Result) {
	if len(b.terms) == 0 {
		return
	}
	for i := range results {
		boost := b.boostFor(results[i].Chunk.Text)
		results[i].EmotionBoost = boost
		sim := results[i].Similarity + boost
		if sim > 1 {
			sim = 1
		}
		results[i].Similarity = sim
	}
}

// boostFor counts how many boost terms the chunk mentions. Word-level
// matching is tried first; substring containment catches Korean inflections.
func (b *emotionBooster) boostFor(text string) float64 {
	lowered := strings.ToLower(text)
	words := make(map[string]struct{})
	for _, w := range strings.Fields(lowered) {
		words[w] = struct{}{}
	}

	matched := 0
	for _, term := range b.terms {
		if _, ok := words[term]; ok {
			matched++
			continue
		}
		if strings.Contains(lowered, term) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	ratio := float64(matched) / float64(len(b.terms))
	boost := ratio * maxEmotionBoost
	if boost > maxEmotionBoost {
		boost = maxEmotionBoost
	}
	return boost
}
