// Package markup models a submitted markup document and the wrapper needed to
// turn a slice of its body into standalone, independently renderable markup.
package markup

import (
	"fmt"
	"strings"
)

// Document is an immutable markup document with its structural boundaries.
// Offsets index into the raw text; -1 means the region is absent.
type Document struct {
	raw string

	Doctype   string // Doctype declaration including angle brackets, or "".
	HeadStart int    // Offset of "<head".
	HeadEnd   int    // Offset just past "</head>".
	BodyStart int    // Offset of the first byte of body content.
	BodyEnd   int    // Offset one past the last byte of body content.

	hasBodyTag bool
}

// Parse locates the doctype, head and body boundaries of raw. It never fails:
// documents without explicit head or body tags get synthesized boundaries.
func Parse(raw string) *Document {
	d := &Document{raw: raw, HeadStart: -1, HeadEnd: -1}

	pos := 0
	lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n\ufeff"))
	if hasPrefixFold(raw[lead:], "<!doctype") {
		if end := strings.IndexByte(raw[lead:], '>'); end >= 0 {
			d.Doctype = raw[lead : lead+end+1]
			pos = lead + end + 1
		}
	}

	if hs := indexTag(raw, "head", pos); hs >= 0 {
		if he := indexFold(raw, "</head>", hs); he >= 0 {
			d.HeadStart = hs
			d.HeadEnd = he + len("</head>")
		}
	}

	searchFrom := pos
	if d.HeadEnd >= 0 {
		searchFrom = d.HeadEnd
	}
	if bs := indexTag(raw, "body", searchFrom); bs >= 0 {
		if gt := strings.IndexByte(raw[bs:], '>'); gt >= 0 {
			d.hasBodyTag = true
			d.BodyStart = bs + gt + 1
		}
	}

	if !d.hasBodyTag {
		d.BodyStart = searchFrom
		if d.HeadEnd < 0 {
			if hs := indexTag(raw, "html", pos); hs >= 0 {
				if gt := strings.IndexByte(raw[hs:], '>'); gt >= 0 {
					d.BodyStart = hs + gt + 1
				}
			}
		}
	}

	d.BodyEnd = len(raw)
	if be := lastIndexFold(raw, "</body", d.BodyStart); be >= 0 && d.hasBodyTag {
		d.BodyEnd = be
	} else if he := lastIndexFold(raw, "</html", d.BodyStart); he >= 0 {
		d.BodyEnd = he
	}
	return d
}

// Raw returns the document text exactly as submitted.
func (d *Document) Raw() string { return d.raw }

// Len returns the document size in bytes.
func (d *Document) Len() int { return len(d.raw) }

// Body returns the body content without the surrounding body tags.
func (d *Document) Body() string { return d.raw[d.BodyStart:d.BodyEnd] }

// HasBodyTag reports whether the source carries an explicit <body> element.
func (d *Document) HasBodyTag() bool { return d.hasBodyTag }

// Head returns the head element including its tags, or "".
func (d *Document) Head() string {
	if d.HeadStart < 0 {
		return ""
	}
	return d.raw[d.HeadStart:d.HeadEnd]
}

// Wrapper returns the markup placed around every fragment of this document.
func (d *Document) Wrapper() Wrapper {
	if d.hasBodyTag {
		return Wrapper{Prefix: d.raw[:d.BodyStart], Suffix: d.raw[d.BodyEnd:]}
	}
	return Wrapper{
		Prefix: d.raw[:d.BodyStart] + "<body>",
		Suffix: "</body>" + d.raw[d.BodyEnd:],
	}
}

// Wrapper is the shared preamble and closing markup that makes a body
// fragment standalone.
type Wrapper struct {
	Prefix string
	Suffix string
}

// Wrap returns fragment as standalone markup. A non-empty annotation is
// written as a comment at the start of the body.
func (w Wrapper) Wrap(fragment, annotation string) string {
	var sb strings.Builder
	sb.Grow(len(w.Prefix) + len(fragment) + len(w.Suffix) + len(annotation) + 9)
	sb.WriteString(w.Prefix)
	if annotation != "" {
		sb.WriteString("<!-- ")
		sb.WriteString(annotation)
		sb.WriteString(" -->")
	}
	sb.WriteString(fragment)
	sb.WriteString(w.Suffix)
	return sb.String()
}

// Unwrap strips the wrapper and any leading annotation comment from standalone
// markup produced by Wrap.
func (w Wrapper) Unwrap(standalone string) (string, error) {
	if !strings.HasPrefix(standalone, w.Prefix) || !strings.HasSuffix(standalone, w.Suffix) ||
		len(standalone) < len(w.Prefix)+len(w.Suffix) {
		return "", fmt.Errorf("markup does not carry the document wrapper")
	}
	body := standalone[len(w.Prefix) : len(standalone)-len(w.Suffix)]
	if strings.HasPrefix(body, "<!-- "+AnnotationPrefix) {
		if end := strings.Index(body, " -->"); end >= 0 {
			body = body[end+len(" -->"):]
		}
	}
	return body, nil
}

// AnnotationPrefix marks boundary comments injected into chunk markup.
const AnnotationPrefix = "docrender:chunk "

// Annotation returns the boundary annotation for chunk index of total.
func Annotation(index, total int) string {
	return fmt.Sprintf("%s%d/%d", AnnotationPrefix, index+1, total)
}

// indexTag finds "<name" followed by '>', '/' or whitespace at or after from.
func indexTag(s, name string, from int) int {
	open := "<" + name
	for from <= len(s) {
		i := indexFold(s, open, from)
		if i < 0 {
			return -1
		}
		next := i + len(open)
		if next >= len(s) {
			return -1
		}
		switch s[next] {
		case '>', '/', ' ', '\t', '\r', '\n', '\f':
			return i
		}
		from = next
	}
	return -1
}

// indexFold is a case-insensitive strings.Index starting at from. substr must
// begin with '<'.
func indexFold(s, substr string, from int) int {
	for i := from; i+len(substr) <= len(s); {
		j := strings.IndexByte(s[i:], substr[0])
		if j < 0 {
			return -1
		}
		i += j
		if i+len(substr) > len(s) {
			return -1
		}
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
		i++
	}
	return -1
}

// lastIndexFold is a case-insensitive strings.LastIndex that ignores matches
// before floor.
func lastIndexFold(s, substr string, floor int) int {
	end := len(s)
	for end > floor {
		i := strings.LastIndexByte(s[:end], substr[0])
		if i < floor {
			return -1
		}
		if i+len(substr) <= len(s) && strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
		end = i
	}
	return -1
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// IsVoid reports whether tag never has a closing tag.
func IsVoid(tag string) bool {
	return voidElements[strings.ToLower(tag)]
}

// impliedEnd lists elements whose end tag may be omitted when a sibling of
// the same kind starts.
var impliedEnd = map[string]bool{
	"p": true, "li": true, "dt": true, "dd": true, "option": true,
	"tr": true, "td": true, "th": true,
}

// closesParagraph lists block elements whose start tag ends an open <p>.
var closesParagraph = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "div": true,
	"dl": true, "fieldset": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"main": true, "nav": true, "ol": true, "pre": true, "section": true, "table": true,
	"ul": true,
}

// ClosedBy reports whether the start tag next implicitly ends the open
// element open, as a second <li> ends the first or a <div> ends a <p>.
// Both names are lower case.
func ClosedBy(open, next string) bool {
	return (impliedEnd[next] && open == next) || (closesParagraph[next] && open == "p")
}

// MayOmitEnd reports whether tag may be left unclosed at the end of input.
func MayOmitEnd(tag string) bool { return impliedEnd[tag] }
