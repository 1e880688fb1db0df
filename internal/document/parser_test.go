package document

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF 生成每个元素一页的PDF
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		if text != "" {
			pdf.MultiCell(0, 10, text, "", "", false)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestPDFParser(t *testing.T) {
	t.Run("多页PDF", func(t *testing.T) {
		data := buildPDF(t, "Senior Go engineer with distributed systems experience.", "Education: Computer Science degree.")

		doc, err := NewPDFParser().ParseReader(bytes.NewReader(data), "resume.pdf")
		require.NoError(t, err)

		assert.Equal(t, PDF, doc.ContentType)
		assert.Equal(t, "resume.pdf", doc.FileName)
		require.Len(t, doc.Pages, 2)
		assert.Equal(t, 1, doc.Pages[0].Number)
		assert.Equal(t, 2, doc.Pages[1].Number)
		assert.Contains(t, doc.Pages[0].Text, "distributed systems")
		assert.Contains(t, doc.Pages[1].Text, "Computer Science")
		assert.Equal(t, doc.Pages[0].Text+doc.Pages[1].Text, doc.FullText)
		assert.Equal(t, 2, doc.PageCount())
	})

	t.Run("从文件解析", func(t *testing.T) {
		path := writeTempFile(t, "cv.pdf", buildPDF(t, "This is a PDF test."))

		doc, err := NewPDFParser().Parse(path)
		require.NoError(t, err)
		assert.Contains(t, doc.FullText, "PDF test")
		assert.Equal(t, "cv.pdf", doc.FileName)
	})

	t.Run("损坏的PDF", func(t *testing.T) {
		_, err := NewPDFParser().ParseReader(strings.NewReader("%PDF-1.4 this is not really a pdf"), "broken.pdf")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExtraction)
	})

	t.Run("空文件", func(t *testing.T) {
		_, err := NewPDFParser().ParseReader(bytes.NewReader(nil), "empty.pdf")
		assert.ErrorIs(t, err, ErrExtraction)
	})

	t.Run("没有文本的PDF", func(t *testing.T) {
		data := buildPDF(t, "")

		_, err := NewPDFParser().ParseReader(bytes.NewReader(data), "blank.pdf")
		assert.ErrorIs(t, err, ErrEmptyDocument)
	})
}

func TestPlainTextParser(t *testing.T) {
	path := writeTempFile(t, "notes.txt", []byte("Hello, this is a plain text file.\nSecond line."))

	doc, err := NewPlainTextParser().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, PlainText, doc.ContentType)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "Hello, this is a plain text file.\nSecond line.", doc.FullText)

	_, err = NewPlainTextParser().ParseReader(strings.NewReader(" \n\t "), "blank.txt")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = NewPlainTextParser().ParseReader(bytes.NewReader([]byte{0xff, 0xfe, 0xfd}), "binary.txt")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestMarkdownParser(t *testing.T) {
	content := "# Title\n\nThis is a **markdown** file &amp; more.\n\n- Item 1\n- Item 2"

	doc, err := NewMarkdownParser().ParseReader(strings.NewReader(content), "readme.md")
	require.NoError(t, err)

	assert.Equal(t, Markdown, doc.ContentType)
	assert.Contains(t, doc.FullText, "Title")
	assert.Contains(t, doc.FullText, "This is a markdown file & more.")
	assert.Contains(t, doc.FullText, "Item 1")
	assert.NotContains(t, doc.FullText, "<")
	assert.NotContains(t, doc.FullText, "**")
}

func TestParserFactory(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		expected ContentType
	}{
		{"pdf", "resume.PDF", PDF},
		{"markdown", "cv.md", Markdown},
		{"markdown长扩展名", "cv.markdown", Markdown},
		{"纯文本", "cv.txt", PlainText},
		{"未知类型", "cv.docx", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectContentType(tt.file))

			p, err := ParserFactory(tt.file)
			if tt.expected == Unknown {
				assert.ErrorIs(t, err, ErrExtraction)
				assert.Nil(t, p)
				assert.False(t, IsSupported(tt.file))
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

func TestParseReader(t *testing.T) {
	doc, err := ParseReader(strings.NewReader("plain content"), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "plain content", doc.FullText)

	_, err = ParseReader(strings.NewReader("x"), "a.exe")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestParseFile(t *testing.T) {
	path := writeTempFile(t, "cv.md", []byte("## Skills\n\nGo, SQL"))

	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cv.md", doc.FileName)
	assert.Contains(t, doc.FullText, "Go, SQL")

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
