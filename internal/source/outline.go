package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/docrender/internal/doctree"
)

// sectionStack nests sections by heading level. Content arriving before
// any heading lands in a leading untitled section.
type sectionStack struct {
	root    *doctree.DocNode
	entries []stackEntry
	text    strings.Builder
	html    strings.Builder
}

type stackEntry struct {
	node  *doctree.DocNode
	level int
}

func newSectionStack() *sectionStack {
	root := &doctree.DocNode{}
	return &sectionStack{root: root, entries: []stackEntry{{node: root, level: 0}}}
}

// heading opens a section at level, closing any open section at the same
// level or deeper.
func (s *sectionStack) heading(level int, title string) {
	s.flush()
	n := &doctree.DocNode{Title: title}
	for len(s.entries) > 1 && s.entries[len(s.entries)-1].level >= level {
		s.entries = s.entries[:len(s.entries)-1]
	}
	parent := s.entries[len(s.entries)-1].node
	parent.Children = append(parent.Children, n)
	s.entries = append(s.entries, stackEntry{node: n, level: level})
}

func (s *sectionStack) addText(t string) {
	if t = strings.TrimSpace(t); t == "" {
		return
	}
	if s.text.Len() > 0 {
		s.text.WriteString("\n\n")
	}
	s.text.WriteString(t)
}

func (s *sectionStack) addHTML(h string) { s.html.WriteString(h) }

func (s *sectionStack) flush() {
	top := s.entries[len(s.entries)-1].node
	if s.text.Len() > 0 {
		if top.Text != "" {
			top.Text += "\n\n"
		}
		top.Text += s.text.String()
	}
	top.HTML += s.html.String()
	s.text.Reset()
	s.html.Reset()
}

// sections returns the top-level sections built so far.
func (s *sectionStack) sections() []*doctree.DocNode {
	s.flush()
	out := s.root.Children
	if s.root.Text != "" || s.root.HTML != "" {
		lead := &doctree.DocNode{Text: s.root.Text, HTML: s.root.HTML}
		out = append([]*doctree.DocNode{lead}, out...)
	}
	return out
}

// spool copies r to a temp file for libraries that need random access and
// calls fn with its path and size. The file is removed afterwards.
func spool(r io.Reader, pattern string, fn func(f *os.File, size int64) error) error {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek temp file: %w", err)
	}
	return fn(tmp, size)
}
