package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkEmptyInput(t *testing.T) {
	c := New(100, 20)
	require.Nil(t, c.Chunk(""))
	require.Nil(t, c.Chunk("   \n\n  "))
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	c := New(100, 20)
	chunks := c.Chunk("hello world")
	require.Len(t, chunks, 1)
	require.Equal(t, "hello world", chunks[0])
}

func TestChunkSplitsOnParagraphs(t *testing.T) {
	c := New(30, 0)
	text := "first paragraph here.\n\nsecond paragraph here.\n\nthird one."
	chunks := c.Chunk(text)
	require.True(t, len(chunks) >= 2)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len([]rune(chunk)), 30+2)
	}
	joined := strings.Join(chunks, "\n\n")
	require.Contains(t, joined, "first paragraph here.")
	require.Contains(t, joined, "third one.")
}

func TestChunkOverlapCarriesTrailingContext(t *testing.T) {
	c := New(30, 14)
	text := "aaaa bbbb cc\n\ndddd eeee ff\n\ngggg hhhh ii\n\njjjj kkkk ll"
	chunks := c.Chunk(text)
	require.True(t, len(chunks) >= 2)
	// the second chunk starts with the tail of the first
	require.True(t, strings.Contains(chunks[0], strings.SplitN(chunks[1], "\n\n", 2)[0]))
}

func TestChunkDeterministic(t *testing.T) {
	c := New(50, 10)
	text := strings.Repeat("some sentence content here. ", 40)
	first := c.Chunk(text)
	second := c.Chunk(text)
	require.Equal(t, first, second)
}

func TestChunkHardSplitsOversizeSentence(t *testing.T) {
	c := New(10, 0)
	chunks := c.Chunk(strings.Repeat("x", 35))
	require.Len(t, chunks, 4)
	require.Equal(t, 10, len(chunks[0]))
	require.Equal(t, 5, len(chunks[3]))
}

func TestChunkNoContentLost(t *testing.T) {
	c := New(25, 0)
	text := "one two three.\n\nfour five six.\n\nseven eight nine."
	chunks := c.Chunk(text)
	joined := strings.Join(chunks, " ")
	for _, word := range []string{"one", "three.", "four", "six.", "seven", "nine."} {
		require.Contains(t, joined, word)
	}
}
