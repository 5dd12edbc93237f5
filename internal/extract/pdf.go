// Package extract reads text out of uploaded documents and derives the
// style profile and protected terms of a reference document.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Result is the outcome of a text extraction. Extraction never fails
// outright: problems are reported as warnings next to whatever text could
// be read.
type Result struct {
	Text     string   `json:"text"`
	Pages    int      `json:"pages"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// File extracts text from a PDF or plain-text file based on its extension.
func File(path string) Result {
	f, err := os.Open(path)
	if err != nil {
		return Result{Warnings: []string{fmt.Sprintf("파일을 열 수 없습니다: %v", err)}}
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return PDF(f)
	default:
		return PlainText(f)
	}
}

// PlainText reads r fully as UTF-8 text.
func PlainText(r io.Reader) Result {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Result{Warnings: []string{fmt.Sprintf("텍스트를 읽을 수 없습니다: %v", err)}}
	}
	return Result{Text: strings.TrimSpace(string(raw)), Pages: 1}
}

// PDF extracts the text of every page, joining pages with a blank line.
// Font encodings and ToUnicode maps are applied, so CID-keyed Korean fonts
// decode to Hangul. Files the reader rejects (encrypted, damaged cross
// reference tables) are rewritten once before giving up. Pages that cannot
// be decoded are skipped with a warning.
func PDF(r io.Reader) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Warnings: append(res.Warnings, fmt.Sprintf("PDF 파싱 오류: %v", p))}
		}
	}()

	raw, err := io.ReadAll(r)
	if err != nil {
		res.warn("PDF를 읽을 수 없습니다: %v", err)
		return res
	}

	doc, err := openPDF(raw)
	if err != nil {
		clean, rerr := rewritePDF(raw)
		if rerr != nil {
			res.warn("PDF 파싱 오류: %v", err)
			return res
		}
		if doc, err = openPDF(clean); err != nil {
			res.warn("PDF 파싱 오류: %v", err)
			return res
		}
		res.warn("손상되었거나 암호화된 PDF를 복구하여 읽었습니다")
	}

	res.Pages = doc.NumPage()
	pages := make([]string, 0, res.Pages)
	for i := 1; i <= res.Pages; i++ {
		p := doc.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := pageText(p)
		if err != nil {
			res.warn("%d페이지 내용을 읽을 수 없습니다: %v", i, err)
			continue
		}
		if text != "" {
			pages = append(pages, text)
		}
	}
	res.Text = strings.Join(pages, "\n\n")
	if res.Text == "" && res.Pages > 0 {
		res.warn("PDF에서 추출된 텍스트가 없습니다")
	}
	return res
}

func openPDF(raw []byte) (*pdf.Reader, error) {
	return pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
}

// pageText reads a page row by row, top to bottom. Pages without
// positioned text fall back to the plain text of the content stream.
func pageText(p pdf.Page) (string, error) {
	rows, err := p.GetTextByRow()
	if err == nil {
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			var b strings.Builder
			for _, word := range row.Content {
				b.WriteString(word.S)
			}
			if line := strings.TrimSpace(b.String()); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n"), nil
		}
	}

	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// rewritePDF lets pdfcpu rebuild the file: decrypted when it carries an
// empty user password, otherwise with a fresh cross reference table.
func rewritePDF(raw []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(raw), &out, relaxedConfig()); err == nil {
		return out.Bytes(), nil
	}
	out.Reset()
	if err := api.Optimize(bytes.NewReader(raw), &out, relaxedConfig()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func relaxedConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
