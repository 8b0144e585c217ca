package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSynthesizeSnippet_NoEllipsisWhenWithinBounds matches spec.md §8
// scenario 6 literally.
func TestSynthesizeSnippet_NoEllipsisWhenWithinBounds(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog."
	got := synthesizeSnippet(text, "lazy")
	assert.Contains(t, got, "lazy")
	assert.LessOrEqual(t, len(got), 206)
	assert.False(t, len(got) > 0 && got[0:3] == "...")
	assert.False(t, len(got) >= 3 && got[len(got)-3:] == "...")
}

func TestSynthesizeSnippet_PrependsEllipsisWhenClipped(t *testing.T) {
	text := "padding " + stringsRepeat("x", 200) + " needle at the far end of a very long document here"
	got := synthesizeSnippet(text, "needle")
	assert.True(t, len(got) >= 3 && got[:3] == "...")
}

func TestSynthesizeSnippet_EmptyTextNeverFails(t *testing.T) {
	assert.Equal(t, "", synthesizeSnippet("", "anything"))
}

func TestSynthesizeSnippet_NoMatchDefaultsToStart(t *testing.T) {
	text := "abcdefghij"
	got := synthesizeSnippet(text, "zzz")
	assert.Equal(t, text, got)
}

func TestSynthesizeSnippet_PicksLongestTerm(t *testing.T) {
	text := "a short cat and a longer elephant stand together in a field"
	got := synthesizeSnippet(text, "cat elephant")
	assert.Contains(t, got, "elephant")
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
