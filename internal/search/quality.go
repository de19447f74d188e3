package search

// qualityFloor marks a result set as needing improvement; the expansion loop
// keeps widening the search until the score clears it or iterations run out.
const qualityFloor = 0.6

// evaluateQuality scores a result set by average similarity weighted against
// source diversity. An empty set scores zero and always needs improvement.
func evaluateQuality(results []Result) Quality {
	if len(results) == 0 {
		return Quality{NeedsImprovement: true}
	}

	var sum float64
	sources := make(map[string]struct{}, len(results))
	for _, r := range results {
		sum += r.Similarity
		sources[r.Chunk.Metadata.Source] = struct{}{}
	}

	avg := sum / float64(len(results))
	diversity := float64(len(sources)) / float64(len(results))
	score := avg*0.7 + diversity*0.3

	return Quality{
		AvgSimilarity:    avg,
		DiversityScore:   diversity,
		QualityScore:     score,
		NeedsImprovement: score < qualityFloor,
	}
}
