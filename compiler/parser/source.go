package parser

import (
	"os"
	"sort"
	"strings"
)

// ReadSources concatenates the query files in filenames followed by src,
// returning the joint text as a SourceSet so errors can be located in the
// file they came from.
func ReadSources(filenames []string, src string) (*SourceSet, error) {
	var b strings.Builder
	set := new(SourceSet)
	for _, f := range filenames {
		bb, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		set.Sources = append(set.Sources, newSourceInfo(f, b.Len(), bb))
		b.Write(bb)
		b.WriteByte('\n')
	}
	set.Sources = append(set.Sources, newSourceInfo("", b.Len(), []byte(src)))
	b.WriteString(src)
	set.Text = b.String()
	return set, nil
}

// NewSourceSet returns a SourceSet holding the single source src.
func NewSourceSet(filename, src string) *SourceSet {
	return &SourceSet{
		Text:    src,
		Sources: []*SourceInfo{newSourceInfo(filename, 0, []byte(src))},
	}
}

type SourceSet struct {
	Text    string
	Sources []*SourceInfo
}

func (s *SourceSet) SourceOf(pos int) *SourceInfo {
	i := sort.Search(len(s.Sources), func(i int) bool { return s.Sources[i].start > pos }) - 1
	if i < 0 {
		i = 0
	}
	return s.Sources[i]
}

// SourceInfo holds the line offsets of one source.
type SourceInfo struct {
	filename string
	lines    []int
	size     int
	start    int
}

func newSourceInfo(filename string, start int, src []byte) *SourceInfo {
	lines := []int{0}
	for offset, b := range src {
		if b == '\n' && offset+1 < len(src) {
			lines = append(lines, offset+1)
		}
	}
	return &SourceInfo{
		filename: filename,
		lines:    lines,
		size:     len(src),
		start:    start,
	}
}

func (s *SourceInfo) Position(pos int) (string, Position) {
	if pos < 0 {
		return "", Position{-1, -1, -1, -1}
	}
	offset := pos - s.start
	i := searchLine(s.lines, offset)
	return s.filename, Position{
		Pos:    pos,
		Offset: offset,
		Line:   i + 1,
		Column: offset - s.lines[i] + 1,
	}
}

func (s *SourceInfo) LineOfPos(set *SourceSet, pos int) string {
	i := searchLine(s.lines, pos-s.start)
	start := s.lines[i]
	end := s.size
	if i+1 < len(s.lines) {
		end = s.lines[i+1]
	}
	line := set.Text[s.start+start : s.start+end]
	return strings.TrimSuffix(line, "\n")
}

func searchLine(lines []int, offset int) int {
	i := sort.Search(len(lines), func(i int) bool { return lines[i] > offset }) - 1
	if i < 0 {
		return 0
	}
	return i
}

type Position struct {
	Pos    int `json:"pos"`    // Offset relative to SourceSet.
	Offset int `json:"offset"` // Offset relative to file start.
	Line   int `json:"line"`   // 1-based line number.
	Column int `json:"column"` // 1-based column number.
}

func (p Position) IsValid() bool { return p.Pos >= 0 }
