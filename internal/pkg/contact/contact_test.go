package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBlock(t *testing.T) {
	got := SplitBlock("a@x.com, b@x.com\n c@x.com ,\n\n")
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, got)
}

func TestSplitBlock_Empty(t *testing.T) {
	assert.Empty(t, SplitBlock(""))
	assert.Empty(t, SplitBlock(" ,\n, "))
}

func TestParseEmails_Partition(t *testing.T) {
	valid, invalid := ParseEmails("a@x.com, not-an-email")
	assert.Equal(t, []string{"a@x.com"}, valid)
	assert.Equal(t, []string{"not-an-email"}, invalid)
}

func TestParseEmails_DedupPreservesFirstSeenOrder(t *testing.T) {
	valid, invalid := ParseEmails("b@x.com, a@x.com, B@X.com, a@x.com")
	assert.Equal(t, []string{"b@x.com", "a@x.com"}, valid)
	assert.Empty(t, invalid)
}

func TestParsePhones_NormalizesToE164(t *testing.T) {
	valid, invalid := ParsePhones("(415) 555-2671", "US")
	require.Len(t, valid, 1)
	assert.Equal(t, "+14155552671", valid[0].E164)
	assert.Equal(t, "US", valid[0].Region)
	assert.Empty(t, invalid)
}

func TestParsePhones_DedupOnFormattedValue(t *testing.T) {
	// Two different renderings of the same number collapse to one entry.
	valid, invalid := ParsePhones("+1 415 555 2671, (415) 555-2671", "US")
	assert.Len(t, valid, 1)
	assert.Empty(t, invalid)
}

func TestParsePhones_InvalidPartitioned(t *testing.T) {
	valid, invalid := ParsePhones("12345, +14155552671", "US")
	require.Len(t, valid, 1)
	assert.Equal(t, []string{"12345"}, invalid)
}

func TestParsePhones_InternationalPrefixOverridesDefaultRegion(t *testing.T) {
	valid, _ := ParsePhones("+447911123456", "US")
	require.Len(t, valid, 1)
	assert.Equal(t, "GB", valid[0].Region)
}
