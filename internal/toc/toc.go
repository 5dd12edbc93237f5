package toc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TOC is an ordered table of contents. Order is insertion order until one
// of the sort helpers is applied.
type TOC []Node

// Add appends a fresh node under parentNumber at the given level and
// returns it. Level 3 requires a parent with at least two segments;
// otherwise nothing is added and ok is false.
func (t *TOC) Add(parentNumber string, level int) (node Node, ok bool) {
	var number string
	switch level {
	case 1:
		maxNum := 0
		for _, n := range *t {
			if n.Level != 1 {
				continue
			}
			if v, err := strconv.Atoi(strings.Split(n.Number, "-")[0]); err == nil && v > maxNum {
				maxNum = v
			}
		}
		number = strconv.Itoa(maxNum + 1)
	case 2:
		prefix := strings.Split(strings.TrimSpace(parentNumber), "-")[0]
		if _, err := strconv.Atoi(prefix); err != nil {
			return Node{}, false
		}
		number = fmt.Sprintf("%s-%d", prefix, t.maxChild(prefix, 2)+1)
	case 3:
		parent := strings.TrimSpace(parentNumber)
		if len(strings.Split(parent, "-")) < 2 {
			return Node{}, false
		}
		number = fmt.Sprintf("%s-%d", parent, t.maxChild(parent, 3)+1)
	default:
		return Node{}, false
	}

	node = Node{Number: number, Level: level, Emphasis: EmphasisStandard}
	if err := node.Validate(); err != nil {
		return Node{}, false
	}
	*t = append(*t, node)
	return node, true
}

// maxChild returns the highest child ordinal at segment position level-1
// among nodes of that level under prefix.
func (t TOC) maxChild(prefix string, level int) int {
	maxNum := 0
	for _, n := range t {
		if n.Level != level || !strings.HasPrefix(n.Number, prefix+"-") {
			continue
		}
		parts := strings.Split(n.Number, "-")
		if len(parts) < level {
			continue
		}
		if v, err := strconv.Atoi(parts[level-1]); err == nil && v > maxNum {
			maxNum = v
		}
	}
	return maxNum
}

// Delete removes the node at index together with every node whose number
// starts with the removed number followed by a dash. Out-of-range indexes
// leave the TOC unchanged.
func (t TOC) Delete(index int) TOC {
	if index < 0 || index >= len(t) {
		return t
	}
	prefix := t[index].Number + "-"
	out := make(TOC, 0, len(t)-1)
	for i, n := range t {
		if i == index || strings.HasPrefix(n.Number, prefix) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// SetTitle updates the title at index. It reports false for a bad index.
func (t TOC) SetTitle(index int, title string) bool {
	if index < 0 || index >= len(t) {
		return false
	}
	t[index].Title = strings.TrimSpace(title)
	return true
}

// EmptyTitles returns the indexes of nodes that still have no title.
func (t TOC) EmptyTitles() []int {
	var out []int
	for i, n := range t {
		if strings.TrimSpace(n.Title) == "" {
			out = append(out, i)
		}
	}
	return out
}

// Validate checks that the TOC is ready for generation.
func (t TOC) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: table of contents is empty", ErrInvalidNode)
	}
	seen := make(map[string]bool, len(t))
	for _, n := range t {
		if err := n.Validate(); err != nil {
			return err
		}
		if seen[n.Number] {
			return fmt.Errorf("%w: duplicate number %q", ErrInvalidNode, n.Number)
		}
		seen[n.Number] = true
	}
	if empty := t.EmptyTitles(); len(empty) > 0 {
		return fmt.Errorf("%w: %d section(s) without title", ErrInvalidNode, len(empty))
	}
	return nil
}

// Find returns the node with the given number.
func (t TOC) Find(number string) (Node, bool) {
	for _, n := range t {
		if n.Number == number {
			return n, true
		}
	}
	return Node{}, false
}

// Clone returns a deep copy.
func (t TOC) Clone() TOC {
	out := make(TOC, len(t))
	for i, n := range t {
		if n.WordCount != nil {
			wc := *n.WordCount
			n.WordCount = &wc
		}
		out[i] = n
	}
	return out
}

// SortByHierarchy orders nodes by their integer segments. Nodes whose
// number does not parse sort as [0]. The sort is stable.
func SortByHierarchy(nodes []Node) []Node {
	out := append([]Node(nil), nodes...)
	keys := make(map[string][]int, len(out))
	key := func(n Node) []int {
		if k, ok := keys[n.Number]; ok {
			return k
		}
		k, ok := n.Segments()
		if !ok {
			k = []int{0}
		}
		keys[n.Number] = k
		return k
	}
	sort.SliceStable(out, func(i, j int) bool {
		return compareSegments(key(out[i]), key(out[j])) < 0
	})
	return out
}

func compareSegments(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// RenumberByHierarchy sorts nodes hierarchically and reassigns compact
// numbers. A level-2 node without a preceding level-1 node is numbered
// under the current level-1 counter; a level-3 node without a preceding
// level-2 node keeps its number.
func RenumberByHierarchy(nodes []Node) []Node {
	sorted := SortByHierarchy(nodes)
	out := make([]Node, 0, len(sorted))

	level1 := 0
	level2 := make(map[string]int)
	level3 := make(map[string]int)

	nearest := func(level int) (string, bool) {
		for i := len(out) - 1; i >= 0; i-- {
			if out[i].Level == level {
				return out[i].Number, true
			}
		}
		return "", false
	}

	for _, n := range sorted {
		switch n.Level {
		case 1:
			level1++
			n.Number = strconv.Itoa(level1)
		case 2:
			parent, ok := nearest(1)
			if !ok {
				parent = strconv.Itoa(level1)
			}
			level2[parent]++
			n.Number = fmt.Sprintf("%s-%d", parent, level2[parent])
		case 3:
			if parent, ok := nearest(2); ok {
				level3[parent]++
				n.Number = fmt.Sprintf("%s-%d", parent, level3[parent])
			}
		}
		out = append(out, n)
	}
	return out
}

// AssemblyOrder returns nodes ordered by (level, number as text). This is
// the order in which sections are generated and written, so all level-1
// sections come before any level-2 section and "10" sorts before "2".
func AssemblyOrder(nodes []Node) []Node {
	out := append([]Node(nil), nodes...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Number < out[j].Number
	})
	return out
}
