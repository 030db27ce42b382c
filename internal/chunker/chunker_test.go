package chunker

import (
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel0/ragdex/internal/parser"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{name: "defaults", size: DefaultChunkSize, overlap: DefaultChunkOverlap},
		{name: "zero overlap", size: 100, overlap: 0},
		{name: "zero size", size: 0, overlap: 0, wantErr: true},
		{name: "negative size", size: -1, overlap: 0, wantErr: true},
		{name: "negative overlap", size: 100, overlap: -1, wantErr: true},
		{name: "overlap equals size", size: 100, overlap: 100, wantErr: true},
		{name: "overlap exceeds size", size: 100, overlap: 150, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.size, tt.overlap)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, c.Size())
			assert.Equal(t, tt.overlap, c.Overlap())
		})
	}
}

func TestSplitText_Empty(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	assert.Empty(t, c.SplitText(""))
	assert.Empty(t, c.SplitText("   \n\n  \t "))
}

func TestSplitText_ShortText(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	pieces := c.SplitText("a short document")
	require.Len(t, pieces, 1)
	assert.Equal(t, "a short document", pieces[0])
}

func TestSplitText_BoundaryFreeText(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	text := strings.Repeat("x", 2500)
	pieces := c.SplitText(text)
	require.Len(t, pieces, 4)

	assert.Equal(t, text[0:1000], pieces[0])
	assert.Equal(t, text[800:1800], pieces[1])
	assert.Equal(t, text[1600:2500], pieces[2])
	assert.Equal(t, text[2400:2500], pieces[3])

	for i, p := range pieces {
		assert.LessOrEqual(t, len(p), 1000, "chunk %d exceeds size", i)
	}
}

func TestSplitText_OverlapReconstruction(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	var sb strings.Builder
	for i := 0; sb.Len() < 3200; i++ {
		sb.WriteString(strconv.Itoa(i % 10))
	}
	text := sb.String()

	pieces := c.SplitText(text)
	require.Greater(t, len(pieces), 1)

	var rebuilt strings.Builder
	rebuilt.WriteString(pieces[0])
	for _, p := range pieces[1:] {
		if len(p) <= c.Overlap() {
			continue
		}
		rebuilt.WriteString(p[c.Overlap():])
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplitText_MultibyteText(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	// 900 runes fit in one chunk; slicing must never land mid-rune.
	short := strings.Repeat("知識就是力量", 150)
	pieces := c.SplitText(short)
	require.Len(t, pieces, 1)
	assert.Equal(t, short, pieces[0])
	assert.True(t, utf8.ValidString(pieces[0]))

	// 3000 runes of boundary-free CJK: windows land on rune offsets.
	text := strings.Repeat("知識就是力量", 500)
	runes := []rune(text)
	pieces = c.SplitText(text)
	require.Len(t, pieces, 4)

	for i, p := range pieces {
		assert.True(t, utf8.ValidString(p), "chunk %d is not valid UTF-8", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(p), 1000, "chunk %d exceeds size", i)
	}
	assert.Equal(t, string(runes[0:1000]), pieces[0])
	assert.Equal(t, string(runes[800:1800]), pieces[1])
	assert.Equal(t, string(runes[1600:2600]), pieces[2])
	assert.Equal(t, string(runes[2400:3000]), pieces[3])
}

func TestChunk_MultibyteChunkSize(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	unit := parser.Unit{
		Content:  "héllo wörld ünïcode",
		Metadata: map[string]string{"type": "text", "filename": "notes.txt"},
	}

	chunks := c.Chunk(unit)
	require.Len(t, chunks, 1)
	// chunk_size counts runes, not bytes.
	assert.Equal(t, strconv.Itoa(utf8.RuneCountInString(unit.Content)),
		chunks[0].Metadata["chunk_size"])
}

func TestSplitText_PrefersParagraphBoundaries(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)

	para1 := strings.Repeat("a", 60)
	para2 := strings.Repeat("b", 60)
	para3 := strings.Repeat("c", 60)
	text := para1 + "\n\n" + para2 + "\n\n" + para3

	pieces := c.SplitText(text)
	require.Len(t, pieces, 3)
	assert.Equal(t, para1, pieces[0])
	assert.Equal(t, para2, pieces[1])
	assert.Equal(t, para3, pieces[2])
}

func TestSplitText_MergesSmallParagraphs(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)

	text := "one\n\ntwo\n\nthree"
	pieces := c.SplitText(text)
	require.Len(t, pieces, 1)
	assert.Equal(t, "one\n\ntwo\n\nthree", pieces[0])
}

func TestSplitText_FallsBackToWords(t *testing.T) {
	c, err := New(30, 5)
	require.NoError(t, err)

	text := "alpha beta gamma delta epsilon zeta eta theta"
	pieces := c.SplitText(text)
	require.Greater(t, len(pieces), 1)

	for i, p := range pieces {
		assert.LessOrEqual(t, len(p), 30, "chunk %d exceeds size", i)
		assert.NotEmpty(t, strings.TrimSpace(p))
	}
	// Word boundaries survive: no chunk starts or ends mid-word.
	for _, p := range pieces {
		assert.False(t, strings.HasPrefix(p, " "))
		assert.False(t, strings.HasSuffix(p, " "))
	}
}

func TestChunk_Metadata(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	unit := parser.Unit{
		Content: strings.Repeat("y", 2500),
		Metadata: map[string]string{
			"source":   "/data/notes.txt",
			"type":     "text",
			"filename": "notes.txt",
		},
	}

	chunks := c.Chunk(unit)
	require.Len(t, chunks, 4)

	for _, ch := range chunks {
		assert.Equal(t, strconv.Itoa(len(ch.Content)), ch.Metadata["chunk_size"])
		assert.Equal(t, "notes.txt", ch.Metadata["filename"])
		assert.Equal(t, "text", ch.Metadata["type"])
		// Source attribution is the indexer's job, not the chunker's.
		assert.NotContains(t, ch.Metadata, "source")
	}
}

func TestChunk_EmptyUnit(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	assert.Empty(t, c.Chunk(parser.Unit{Content: "  \n "}))
}
