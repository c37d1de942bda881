package source

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docrender/internal/doctree"
)

// TextParser handles plain text files. A line underlined with "===" or "---"
// opens a level 1 or level 2 section; paragraphs before the first heading
// each become their own section so long notes still split finely.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	paras, err := readParagraphs(r)
	if err != nil {
		return nil, err
	}

	tree := &doctree.DocTree{Title: baseTitle(filename, ".txt")}
	stack := newSectionStack()
	headed := false
	for _, para := range paras {
		level, title, body, ok := underlined(para)
		switch {
		case ok:
			stack.heading(level, title)
			stack.addText(body)
			headed = true
		case headed:
			stack.addText(para)
		default:
			tree.Children = append(tree.Children, &doctree.DocNode{Text: para})
		}
	}
	tree.Children = append(tree.Children, stack.sections()...)
	return tree, nil
}

func readParagraphs(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return paragraphs, scanner.Err()
}

// underlined reports whether para opens with a setext heading: a title line
// followed by at least three '=' (level 1) or '-' (level 2). body is what
// follows the underline.
func underlined(para string) (level int, title, body string, ok bool) {
	lines := strings.SplitN(para, "\n", 3)
	if len(lines) < 2 {
		return 0, "", "", false
	}
	title = strings.TrimSpace(lines[0])
	u := strings.TrimSpace(lines[1])
	if title == "" || len(u) < 3 {
		return 0, "", "", false
	}
	switch {
	case strings.Trim(u, "=") == "":
		level = 1
	case strings.Trim(u, "-") == "":
		level = 2
	default:
		return 0, "", "", false
	}
	if len(lines) == 3 {
		body = lines[2]
	}
	return level, title, body, true
}
