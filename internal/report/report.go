// Package report holds the flat text layout of a generated report and the
// conversions between that text and per-section records.
package report

import (
	"bufio"
	"regexp"
	"strings"
	"unicode/utf8"
)

// BlockSeparator delimits consecutive section blocks in a report.
const BlockSeparator = "\n\n\n"

// Section is a transient record of one generated section.
type Section struct {
	Number  string `json:"number"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Header renders the section heading line.
func Header(number, title string) string {
	return number + ". " + title
}

// Underline returns a line of '=' as long as header in characters.
func Underline(header string) string {
	return strings.Repeat("=", utf8.RuneCountInString(header))
}

// BlockLines returns the lines of one section block. Joining consecutive
// blocks (and any prior report text) with "\n" yields the report layout.
func BlockLines(number, title, content string) []string {
	h := Header(number, title)
	return []string{h, Underline(h), "", content, "", ""}
}

// Writer accumulates a report, optionally seeded with existing text.
type Writer struct {
	parts []string
}

func NewWriter(existing string) *Writer {
	w := &Writer{}
	if existing != "" {
		w.parts = append(w.parts, existing)
	}
	return w
}

func (w *Writer) Append(number, title, content string) {
	w.parts = append(w.parts, BlockLines(number, title, content)...)
}

func (w *Writer) String() string {
	return strings.Join(w.parts, "\n")
}

// CombineSections flattens records back into report text using the same
// layout as generation.
func CombineSections(sections []Section) string {
	w := NewWriter("")
	for _, s := range sections {
		w.Append(s.Number, s.Title, s.Content)
	}
	return w.String()
}

// RecentBlocks returns at most n trailing section blocks of a report.
func RecentBlocks(report string, n int) []string {
	if report == "" || n <= 0 {
		return nil
	}
	blocks := strings.Split(report, BlockSeparator)
	if len(blocks) > n {
		blocks = blocks[len(blocks)-n:]
	}
	return blocks
}

var headerLine = regexp.MustCompile(`^(\d+(?:-\d+)*)\.(.*)$`)

func isUnderline(line string) bool {
	return line != "" && strings.Trim(line, "=") == ""
}

// ParseSections splits report text into section records. A line shaped
// like "N. title" (N dash-delimited digits) opens a section only when the
// next line is an underline of '='; numbered list items and dates in a
// section body stay in that body. Text before the first header is ignored.
func ParseSections(text string) []Section {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	var sections []Section
	var current *Section
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(strings.Join(body, "\n"))
		sections = append(sections, *current)
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if i+1 < len(lines) && isUnderline(strings.TrimSpace(lines[i+1])) {
			if m := headerLine.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
				flush()
				current = &Section{Number: m[1], Title: strings.TrimSpace(m[2])}
				body = body[:0]
				i++
				continue
			}
		}
		if current != nil {
			body = append(body, line)
		}
	}
	flush()
	return sections
}

// ReplaceSection swaps the content of the section with the given number.
// It reports whether a section was replaced.
func ReplaceSection(sections []Section, number, content string) bool {
	for i := range sections {
		if sections[i].Number == number {
			sections[i].Content = content
			return true
		}
	}
	return false
}
