package source

import (
	"bytes"
	"errors"
	"io"
	"unicode/utf8"
)

// HTMLImporter passes markup through unchanged.
type HTMLImporter struct{}

var utf8BOM = []byte("\xef\xbb\xbf")

func (p *HTMLImporter) Import(r io.Reader, _ string) (string, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	src = bytes.TrimPrefix(src, utf8BOM)
	if !utf8.Valid(src) {
		return "", errors.New("html is not valid UTF-8")
	}
	return string(src), nil
}
