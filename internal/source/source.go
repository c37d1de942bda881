// Package source converts uploaded files into markup documents the render
// pipeline can take.
package source

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docrender/internal/doctree"
)

// Importer converts raw file bytes into a markup document.
type Importer interface {
	Import(r io.Reader, filename string) (string, error)
}

// TreeImporter builds a heading outline from a non-markup source.
type TreeImporter interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// outline adapts a TreeImporter to Importer.
type outline struct{ TreeImporter }

func (o outline) Import(r io.Reader, filename string) (string, error) {
	tree, err := o.Parse(r, filename)
	if err != nil {
		return "", err
	}
	return tree.Markup(), nil
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate importer for a filename.
func ForFile(filename string) (Importer, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".html", ".htm":
		return &HTMLImporter{}, nil
	case ".txt":
		return outline{&TextParser{}}, nil
	case ".md", ".markdown":
		return outline{&MarkdownParser{}}, nil
	case ".csv":
		return outline{&CSVParser{}}, nil
	case ".pdf":
		return outline{&PDFParser{FallbackPdftotext: true}}, nil
	case ".docx":
		return outline{&DOCXParser{}}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Import converts r using the importer for filename.
func Import(r io.Reader, filename string) (string, error) {
	imp, err := ForFile(filename)
	if err != nil {
		return "", err
	}
	return imp.Import(r, filename)
}

func baseTitle(filename string, exts ...string) string {
	title := filepath.Base(filename)
	for _, ext := range exts {
		title = strings.TrimSuffix(title, ext)
	}
	return title
}
