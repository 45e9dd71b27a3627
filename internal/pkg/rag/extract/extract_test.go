package extract_test

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ai-router/internal/pkg/rag/extract"
)

const sampleHTML = `<html><head><title>T</title><style>.a{}</style></head><body>` +
	`<h1>Guide</h1><p>Intro text.</p><h2>Setup</h2><p>Step one.</p><script>var x=1;</script>` +
	`<h2>Usage</h2><p>Run it.</p></body></html>`

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     extract.Format
		ok       bool
	}{
		{"manual.PDF", extract.FormatPDF, true},
		{"notes.md", extract.FormatText, true},
		{"notes.txt", extract.FormatText, true},
		{"spec.docx", extract.FormatDOCX, true},
		{"page.htm", extract.FormatHTML, true},
		{"page.html", extract.FormatHTML, true},
		{"sheet.xlsx", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := extract.Detect(tt.filename)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, extract.IsSupported(tt.filename))
		})
	}
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    string
	}{
		{name: "utf-8", payload: []byte("привет"), want: "привет"},
		{name: "utf-8 bom", payload: append([]byte{0xEF, 0xBB, 0xBF}, "hi"...), want: "hi"},
		{name: "windows-1251", payload: []byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2}, want: "Привет"},
		{name: "latin-1", payload: []byte{0x98, 'a'}, want: "\u0098a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extract.DecodeText(tt.payload))
		})
	}
}

func TestHTMLText(t *testing.T) {
	got, err := extract.HTMLText(sampleHTML)
	require.NoError(t, err)
	assert.Equal(t, "Guide\nIntro text.\nSetup\nStep one.\nUsage\nRun it.", got)
	assert.NotContains(t, got, "var x")
}

func TestHTMLSections(t *testing.T) {
	sections, err := extract.HTMLSections(sampleHTML)
	require.NoError(t, err)
	require.Len(t, sections, 3)

	assert.Equal(t, []string{"Guide"}, sections[0].Headers)
	assert.Equal(t, "Intro text.", sections[0].Text)
	assert.Equal(t, "Guide\nSetup\nStep one.", sections[1].String())
	assert.Equal(t, []string{"Guide", "Usage"}, sections[2].Headers)

	empty, err := extract.HTMLSections("   ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDOCX(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	got, err := extract.DOCX(buildDOCX(t, doc))
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nSecond", got)

	text, err := extract.Text("report.docx", buildDOCX(t, doc))
	require.NoError(t, err)
	assert.Equal(t, got, text)
}

func TestDOCX_Invalid(t *testing.T) {
	_, err := extract.DOCX([]byte("not a zip"))
	assert.Error(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	require.NoError(t, zw.Close())
	_, err = extract.DOCX(buf.Bytes())
	assert.Error(t, err)
}

func TestPDF_Invalid(t *testing.T) {
	_, err := extract.PDF([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	got, err := extract.Text("a.md", []byte("# Title\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "# Title\nbody", got)

	got, err = extract.Text("a.html", []byte(sampleHTML))
	require.NoError(t, err)
	assert.Contains(t, got, "Run it.")

	_, err = extract.Text("a.exe", []byte("x"))
	assert.ErrorIs(t, err, extract.ErrUnsupportedFormat)
}
