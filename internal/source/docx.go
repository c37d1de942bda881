package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/docrender/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Heading styles open nested sections;
// other paragraphs become section text.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	var doc *docx.Docx
	// go-docx needs a ReaderAt and a size.
	err := spool(r, "docrender-docx-*.docx", func(f *os.File, size int64) error {
		var err error
		doc, err = docx.Parse(f, size)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	sections := newSectionStack()
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if level := docxHeadingLevel(para); level > 0 && text != "" {
			sections.heading(level, text)
		} else {
			sections.addText(text)
		}
	}

	return &doctree.DocTree{
		Title:    baseTitle(filename, ".docx"),
		Children: sections.sections(),
	}, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	switch strings.TrimPrefix(style, "heading") {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	case "5":
		return 5
	case "6":
		return 6
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
