package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyKeywordHint(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.KeywordHint("do you remember the database schema?"))
	assert.True(t, p.KeywordHint("as WE DISCUSSED yesterday"))
	assert.True(t, p.KeywordHint("in the previous project we used nats"))
	assert.False(t, p.KeywordHint("write a quicksort in go"))
}

func TestPolicyShouldQueryArchival(t *testing.T) {
	p := DefaultPolicy()

	// No recall hit: consult archival.
	assert.True(t, p.ShouldQueryArchival(0, false, "plain query"))

	// Low-confidence recall hit: consult archival.
	assert.True(t, p.ShouldQueryArchival(0.4, true, "plain query"))

	// High-confidence recall hit: skip archival.
	assert.False(t, p.ShouldQueryArchival(0.9, true, "plain query"))

	// Keyword overrides confidence.
	assert.True(t, p.ShouldQueryArchival(0.9, true, "remember the schema?"))
}

func TestPolicyConfigurableThreshold(t *testing.T) {
	p := Policy{ConfidenceThreshold: 0.95}
	assert.True(t, p.ShouldQueryArchival(0.9, true, "q"))

	p.ConfidenceThreshold = 0.5
	assert.False(t, p.ShouldQueryArchival(0.9, true, "q"))
}
