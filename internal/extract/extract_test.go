package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>1. Scope:</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Describe </w:t></w:r><w:r><w:t>the work.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Cost</w:t><w:tab/><w:t>100</w:t><w:br/><w:t>EUR</w:t></w:r></w:p>
    <w:p/>
  </w:body>
</w:document>`

func writeDOCX(t *testing.T, path, body string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	part, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

// buildPDF assembles an uncompressed PDF with one page per entry; an empty
// entry yields a page with an empty content stream.
func buildPDF(pages ...string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	kids := make([]string, 0, len(pages))
	for _, text := range pages {
		pageID := len(objects) + 1
		contentID := pageID + 1
		kids = append(kids, fmt.Sprintf("%d 0 R", pageID))

		content := ""
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}

		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentID),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, object := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, object)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, offset := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestExtractDOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filled.docx")
	writeDOCX(t, path, documentXML)

	text, err := New(0, nil).Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "1. Scope:\nDescribe the work.\nCost\t100\nEUR\n", text)
}

func TestExtractPDFSkipsBlankPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filled.pdf")
	writeFile(t, path, buildPDF("page one", "", "page two"))

	text, err := New(0, nil).Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "page one\npage two", text)

	assert.Equal(t, "page one\npage two", New(0, nil).Text(path))
}

func TestExtractText(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "plain.TXT")
	writeFile(t, plain, []byte("Intro:\nhello\n"))

	text, err := New(0, nil).Extract(plain)
	require.NoError(t, err)
	assert.Equal(t, "Intro:\nhello\n", text)

	broken := filepath.Join(dir, "broken.txt")
	writeFile(t, broken, []byte("ok \xff end"))

	text, err = New(0, nil).Extract(broken)
	require.NoError(t, err)
	assert.Equal(t, "ok � end", text)
}

func TestExtractRejects(t *testing.T) {
	dir := t.TempDir()

	disguised := filepath.Join(dir, "notes.txt")
	writeFile(t, disguised, []byte("%PDF-1.4\n%fake"))

	notPDF := filepath.Join(dir, "scan.pdf")
	writeFile(t, notPDF, []byte("just words"))

	big := filepath.Join(dir, "big.txt")
	writeFile(t, big, []byte(strings.Repeat("x", 64)))

	odt := filepath.Join(dir, "doc.odt")
	writeFile(t, odt, []byte("x"))

	tests := []struct {
		name   string
		path   string
		limit  int64
		target error
	}{
		{name: "content contradicts extension", path: disguised, target: ErrMismatch},
		{name: "unsupported extension", path: odt, target: ErrUnsupported},
		{name: "too large", path: big, limit: 10, target: ErrTooLarge},
		{name: "corrupt pdf", path: notPDF},
		{name: "missing file", path: filepath.Join(dir, "nope.txt"), target: os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.limit, nil).Extract(tt.path)
			require.Error(t, err)
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target), "unexpected error %v", err)
			}
		})
	}
}

func TestTextDegradesToEmpty(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	extractor := New(0, zap.New(core))

	path := filepath.Join(t.TempDir(), "broken.docx")
	writeFile(t, path, []byte("not a zip"))

	assert.Equal(t, "", extractor.Text(path))

	entries := logs.FilterMessage("failed to extract document text").All()
	require.Len(t, entries, 1)
	assert.Equal(t, path, entries[0].ContextMap()["path"])
}
