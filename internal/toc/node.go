package toc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidNode is returned when a node violates the hierarchy rules.
var ErrInvalidNode = errors.New("invalid toc node")

type Emphasis string

const (
	EmphasisStandard Emphasis = "standard"
	EmphasisHigh     Emphasis = "high"
	EmphasisLow      Emphasis = "low"
)

// Node is one entry of the table of contents. Number is dash-delimited
// ("2-1-3") and carries exactly Level segments.
type Node struct {
	Number    string   `json:"number" yaml:"number" validate:"required"`
	Title     string   `json:"title" yaml:"title"`
	Level     int      `json:"level" yaml:"level" validate:"min=1,max=3"`
	WordCount *int     `json:"word_count,omitempty" yaml:"word_count,omitempty" validate:"omitempty,gte=0"`
	Emphasis  Emphasis `json:"emphasis" yaml:"emphasis" validate:"oneof=standard high low"`
}

var validate = validator.New()

// NewNode builds a validated node. An empty emphasis defaults to standard.
func NewNode(number, title string, level int, emphasis Emphasis, wordCount *int) (Node, error) {
	if emphasis == "" {
		emphasis = EmphasisStandard
	}
	n := Node{
		Number:    strings.TrimSpace(number),
		Title:     title,
		Level:     level,
		WordCount: wordCount,
		Emphasis:  emphasis,
	}
	if err := n.Validate(); err != nil {
		return Node{}, err
	}
	return n, nil
}

// Validate checks field constraints and the number/level agreement.
func (n Node) Validate() error {
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}
	segs, ok := parseSegments(n.Number)
	if !ok {
		return fmt.Errorf("%w: malformed number %q", ErrInvalidNode, n.Number)
	}
	if len(segs) != n.Level {
		return fmt.Errorf("%w: number %q has %d segments but level is %d", ErrInvalidNode, n.Number, len(segs), n.Level)
	}
	return nil
}

// Segments returns the integer segments of the number and whether all of
// them parsed.
func (n Node) Segments() ([]int, bool) {
	return parseSegments(n.Number)
}

func parseSegments(number string) ([]int, bool) {
	if number == "" {
		return nil, false
	}
	parts := strings.Split(number, "-")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}
