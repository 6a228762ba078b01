package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sectionTotal(sections []section) int {
	total := 0
	for _, s := range sections {
		total += s.tokens
	}
	return total
}

func TestFitToBudgetUnderBudgetIsNoOp(t *testing.T) {
	sections := []section{
		renderSection("a.txt", ".txt", "short file"),
		renderSection("b.txt", ".txt", "another short file"),
	}

	fitted, warnings := fitToBudget(sections, 10_000)

	assert.Empty(t, warnings)
	assert.Equal(t, sections, fitted)
}

func TestFitToBudgetTruncationKeepsFenceClosed(t *testing.T) {
	big := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 200)
	sections := []section{
		renderSection("big.go", ".go", big),
		renderSection("small.txt", ".txt", "tiny note"),
	}
	budget := sectionTotal(sections) / 2

	fitted, warnings := fitToBudget(sections, budget)

	require.NotEmpty(t, warnings)
	assert.LessOrEqual(t, sectionTotal(fitted), budget)
	for _, s := range fitted {
		// Every surviving body must still terminate its fenced block.
		assert.True(t, strings.HasSuffix(s.body, "```"), "unterminated fence in %s: %q", s.path, s.body)
		assert.Equal(t, 0, strings.Count(s.body, "```")%2, "unbalanced fences in %s", s.path)
	}
}

func TestFitToBudgetTruncatedSectionRetainsMarker(t *testing.T) {
	big := strings.Repeat("alpha beta gamma delta epsilon zeta. ", 300)
	sections := []section{renderSection("notes.md", ".md", big)}
	budget := sections[0].tokens / 3

	fitted, warnings := fitToBudget(sections, budget)

	require.Len(t, fitted, 1)
	assert.Contains(t, warnings[0], "truncated notes.md")
	marker := strings.TrimSpace(truncationMarker)
	assert.Contains(t, fitted[0].body, marker)
	assert.Less(t, strings.Index(fitted[0].body, marker), strings.LastIndex(fitted[0].body, "```"),
		"marker must sit inside the fence, not after it")
	assert.True(t, strings.HasSuffix(fitted[0].body, "```"))
}

func TestFitToBudgetDropsSectionsWhenFloorIsNotEnough(t *testing.T) {
	filler := strings.Repeat("lorem ipsum dolor sit amet. ", 50)
	sections := []section{
		renderSection("a.txt", ".txt", filler),
		renderSection("b.txt", ".txt", filler),
		renderSection("c.txt", ".txt", filler),
	}

	// A budget below one section's floor forces whole-section drops.
	fitted, warnings := fitToBudget(sections, minSectionTokens/2)

	assert.Less(t, len(fitted), len(sections))
	assert.LessOrEqual(t, sectionTotal(fitted), minSectionTokens/2)
	omitted := 0
	for _, w := range warnings {
		if strings.Contains(w, "omitted") {
			omitted++
		}
	}
	assert.GreaterOrEqual(t, omitted, 1)
}
