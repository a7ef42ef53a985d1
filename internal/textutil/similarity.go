package textutil

// CosineSimilarity scores two fingerprints in [0, 1]. A nil or empty
// fingerprint scores 0 against everything.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for term, weight := range a.terms {
		if other, ok := b.terms[term]; ok {
			dot += weight * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}
