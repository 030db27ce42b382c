package parser

import (
	"archive/zip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel0/ragdex/internal/log"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestKindForExt(t *testing.T) {
	tests := []struct {
		ext  string
		want Kind
	}{
		{".txt", KindText},
		{"txt", KindText},
		{".PDF", KindPDF},
		{".docx", KindWord},
		{".doc", KindWord},
		{".jpeg", KindImage},
		{".TIFF", KindImage},
		{".csv", KindCSV},
		{".zip", KindUnsupported},
		{"", KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, KindForExt(tt.ext))
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("/data/report.pdf"))
	assert.True(t, Supported("photo.PNG"))
	assert.False(t, Supported("archive.tar.gz"))
	assert.False(t, Supported("README"))
}

func TestParse_Text(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", []byte("hello from a text file"))

	units, err := New(log.NewNop()).Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, units, 1)

	assert.Equal(t, "hello from a text file", units[0].Content)
	assert.Equal(t, path, units[0].Metadata["source"])
	assert.Equal(t, "text", units[0].Metadata["type"])
	assert.Equal(t, "notes.txt", units[0].Metadata["filename"])
}

func TestParse_Missing(t *testing.T) {
	_, err := New(log.NewNop()).Parse(context.Background(), "/nowhere/ghost.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParse_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.bin", []byte{0x00, 0x01})

	_, err := New(log.NewNop()).Parse(context.Background(), path)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestParse_Directory(t *testing.T) {
	_, err := New(log.NewNop()).Parse(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestParseCSV_WithHeader(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.csv",
		[]byte("name,role,city\nada,engineer,london\ngrace,,washington\n"))

	units, err := New(log.NewNop()).Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, units, 2)

	assert.Equal(t, "name: ada\nrole: engineer\ncity: london", units[0].Content)
	assert.Equal(t, "1", units[0].Metadata["row"])

	// Empty cells drop their line entirely.
	assert.Equal(t, "name: grace\ncity: washington", units[1].Content)
	assert.Equal(t, "2", units[1].Metadata["row"])
	assert.Equal(t, "csv", units[1].Metadata["type"])
}

func TestParseCSV_WithoutHeader(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "raw.csv", []byte("a,b,c\nd,e,f\n"))

	units, err := New(log.NewNop()).ParseCSV(path, false)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "a, b, c", units[0].Content)
	assert.Equal(t, "d, e, f", units[1].Content)
}

func TestParseCSV_Empty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.csv", nil)

	units, err := New(log.NewNop()).Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestParseCSV_RaggedRows(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ragged.csv",
		[]byte("name,role\nada,engineer,extra-cell\nsolo\n"))

	units, err := New(log.NewNop()).Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, units, 2)

	// Cells beyond the header are dropped, short rows keep what they have.
	assert.Equal(t, "name: ada\nrole: engineer", units[0].Content)
	assert.Equal(t, "name: solo", units[1].Content)
}

// writeDocx builds a minimal WordprocessingML archive.
func writeDocx(t *testing.T, dir, name, documentXML string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func TestParseDocx(t *testing.T) {
	const documentXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
    <w:p></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Role</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Ada</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Engineer</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

	dir := t.TempDir()
	path := writeDocx(t, dir, "report.docx", documentXML)

	units, err := New(log.NewNop()).Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, units, 1)

	want := "First paragraph.\n\nSecond paragraph.\n\nName | Role\nAda | Engineer"
	assert.Equal(t, want, units[0].Content)
	assert.Equal(t, "docx", units[0].Metadata["type"])
	assert.Equal(t, "2", units[0].Metadata["paragraph_count"])
	assert.Equal(t, "1", units[0].Metadata["table_count"])
}

func TestParseDocx_NotAnArchive(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "legacy.doc", []byte("old binary word format"))

	_, err := New(log.NewNop()).Parse(context.Background(), path)
	require.Error(t, err)
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, string) (string, error) {
	return f.text, f.err
}

func TestParseImage(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scan.png", []byte("fake image bytes"))

	p := New(log.NewNop(), WithTranscriber(&fakeTranscriber{text: "transcribed words"}))
	units, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, units, 1)

	assert.Equal(t, "transcribed words", units[0].Content)
	assert.Equal(t, "image_ocr", units[0].Metadata["type"])
}

func TestParseImage_TranscriptionError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scan.png", []byte("fake image bytes"))

	wantErr := errors.New("vision model unavailable")
	p := New(log.NewNop(), WithTranscriber(&fakeTranscriber{err: wantErr}))

	_, err := p.Parse(context.Background(), path)
	require.ErrorIs(t, err, wantErr)
}

func TestParseImage_NoTranscriber(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scan.png", []byte("fake image bytes"))

	_, err := New(log.NewNop()).Parse(context.Background(), path)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestNewVisionTranscriber_QualifiesModelName(t *testing.T) {
	// Bare config names must resolve the same way the answer loop's do.
	tr := NewVisionTranscriber(nil, "gemini-2.5-flash")
	assert.Equal(t, "googleai/gemini-2.5-flash", tr.model)

	tr = NewVisionTranscriber(nil, "googleai/gemini-2.5-flash")
	assert.Equal(t, "googleai/gemini-2.5-flash", tr.model)
}

func TestParseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>
<head><title>Test Page</title><style>body { color: red }</style></head>
<body>
  <script>console.log("ignore me")</script>
  <h1>Heading</h1>
  <p>Visible body text.</p>
</body>
</html>`))
	}))
	defer srv.Close()

	p := New(log.NewNop(), WithHTTPClient(srv.Client()))
	units, err := p.ParseURL(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, units, 1)

	assert.Contains(t, units[0].Content, "Heading")
	assert.Contains(t, units[0].Content, "Visible body text.")
	assert.NotContains(t, units[0].Content, "console.log")
	assert.NotContains(t, units[0].Content, "color: red")
	assert.Equal(t, "Test Page", units[0].Metadata["title"])
	assert.Equal(t, srv.URL, units[0].Metadata["source"])
	assert.Equal(t, "url", units[0].Metadata["type"])
}

func TestParseURL_Invalid(t *testing.T) {
	p := New(log.NewNop())

	_, err := p.ParseURL(context.Background(), "not a url")
	require.Error(t, err)

	_, err = p.ParseURL(context.Background(), "/relative/path")
	require.Error(t, err)
}

func TestParseURL_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(log.NewNop(), WithHTTPClient(srv.Client()))
	_, err := p.ParseURL(context.Background(), srv.URL)
	require.ErrorContains(t, err, "status 404")
}
