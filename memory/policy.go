package memory

import "strings"

// Policy decides when a request pays the latency of an archival-tier query.
// It is an explicit, testable function rather than inline conditionals so
// the tuning knobs live in configuration.
type Policy struct {
	// ConfidenceThreshold is the recall score below which archival is
	// consulted. If the best recall hit is at least this similar, recall
	// alone is considered sufficient.
	ConfidenceThreshold float32

	// Keywords are query phrases that signal a long-term-knowledge need
	// and force an archival query regardless of recall confidence.
	Keywords []string
}

// DefaultPolicy returns the default archival fan-out policy.
func DefaultPolicy() Policy {
	return Policy{
		ConfidenceThreshold: 0.55,
		Keywords: []string{
			"remember",
			"earlier",
			"previous project",
			"we discussed",
		},
	}
}

// KeywordHint reports whether the query explicitly signals a need for
// long-term knowledge.
func (p Policy) KeywordHint(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range p.Keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// ShouldQueryArchival decides the conditional fan-out: archival is queried
// when the query hints at long-term knowledge, when recall produced nothing,
// or when the best recall hit is below the confidence threshold.
func (p Policy) ShouldQueryArchival(bestRecallScore float32, recallHit bool, query string) bool {
	if p.KeywordHint(query) {
		return true
	}
	if !recallHit {
		return true
	}
	return bestRecallScore < p.ConfidenceThreshold
}
