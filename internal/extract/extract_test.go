package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cidFontPDF builds a one-page PDF whose text is shown through a Type0
// Identity-H font, the way Korean office suites export Hangul: two-byte
// glyph ids with a ToUnicode map back to Unicode.
func cidFontPDF(t *testing.T, content string) []byte {
	t.Helper()
	cmap := strings.Join([]string{
		"/CIDInit /ProcSet findresource begin",
		"12 dict begin",
		"begincmap",
		"/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def",
		"/CMapName /Adobe-Identity-UCS def",
		"/CMapType 2 def",
		"1 begincodespacerange",
		"<0000> <FFFF>",
		"endcodespacerange",
		"3 beginbfchar",
		"<0B1C> <D55C>",
		"<0C2A> <AE00>",
		"<0003> <0020>",
		"endbfchar",
		"endcmap",
		"CMapName currentdict /CMap defineresource pop",
		"end",
		"end",
	}, "\n")

	stream := func(data string) string {
		return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(data), data)
	}
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type0 /BaseFont /NanumGothic /Encoding /Identity-H /DescendantFonts [6 0 R] /ToUnicode 7 0 R >>",
		stream(content),
		"<< /Type /Font /Subtype /CIDFontType2 /BaseFont /NanumGothic /CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> /FontDescriptor 8 0 R /DW 1000 >>",
		stream(cmap),
		"<< /Type /FontDescriptor /FontName /NanumGothic /Flags 4 /FontBBox [0 -200 1000 800] /ItalicAngle 0 /Ascent 800 /Descent -200 /CapHeight 700 /StemV 80 >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDF_CIDFontWithToUnicode(t *testing.T) {
	raw := cidFontPDF(t, "BT /F1 12 Tf 72 760 Td <0B1C0C2A> Tj ET")

	res := PDF(bytes.NewReader(raw))
	assert.Equal(t, 1, res.Pages)
	assert.Contains(t, res.Text, "한글")
	assert.NotContains(t, res.Text, "\x0b")
	assert.Empty(t, res.Warnings)
}

func TestPDF_FileDispatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.pdf")
	require.NoError(t, os.WriteFile(path, cidFontPDF(t, "BT /F1 12 Tf 72 760 Td <0B1C00030C2A> Tj ET"), 0o644))

	res := File(path)
	assert.Equal(t, 1, res.Pages)
	assert.Contains(t, res.Text, "한")
	assert.Contains(t, res.Text, "글")
}

func TestPDF_InvalidInputFailsSoft(t *testing.T) {
	res := PDF(bytes.NewReader([]byte("not a pdf")))
	assert.Empty(t, res.Text)
	assert.NotEmpty(t, res.Warnings)
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.md")
	require.NoError(t, os.WriteFile(path, []byte("  1차년도 성과임.\n"), 0o644))

	res := File(path)
	assert.Equal(t, "1차년도 성과임.", res.Text)
	assert.Empty(t, res.Warnings)

	missing := File(filepath.Join(dir, "missing.txt"))
	assert.Empty(t, missing.Text)
	assert.NotEmpty(t, missing.Warnings)
}

func TestFormattingPatterns(t *testing.T) {
	bullets := strings.Repeat("* 시스템을 구축함\n", 6)
	profile := FormattingPatterns(bullets + "본 과제는 해양 관측을 수행한다.")

	assert.True(t, profile.Itemized)
	assert.Contains(t, profile.ItemizedEndings, "함")
	assert.Contains(t, profile.SentenceEndings, "다")

	few := FormattingPatterns(strings.Repeat("* 시스템을 구축함\n", 5))
	assert.False(t, few.Itemized)
}

func TestTerms(t *testing.T) {
	terms := Terms("IHO의 S-100 표준과 ISO 19115, 전자해도(ENC) 및 ENC 서비스")
	assert.Equal(t, []string{"ENC", "IHO", "ISO", "ISO 19115", "S-100"}, terms)
	assert.Nil(t, Terms("한글만 있음"))
}
