package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docrender/internal/doctree"
	"golang.org/x/net/html"
)

// csvBatchSize is the number of data rows per table section.
const csvBatchSize = 20

// CSVParser handles CSV files. Rows are grouped into tables of
// csvBatchSize, each repeating the header row.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: baseTitle(filename, ".csv")}
	if len(records) == 0 {
		return tree, nil
	}

	// First row is headers.
	headers := records[0]
	dataRows := records[1:]

	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))

		var sb strings.Builder
		sb.WriteString("<table>\n<thead><tr>")
		for _, h := range headers {
			sb.WriteString("<th>" + html.EscapeString(h) + "</th>")
		}
		sb.WriteString("</tr></thead>\n<tbody>\n")
		for _, row := range dataRows[i:end] {
			sb.WriteString("<tr>")
			for _, cell := range row {
				sb.WriteString("<td>" + html.EscapeString(cell) + "</td>")
			}
			sb.WriteString("</tr>\n")
		}
		sb.WriteString("</tbody>\n</table>")

		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: fmt.Sprintf("Rows %d-%d", i+2, end+1), // 1-indexed, skip header
			HTML:  sb.String(),
		})
	}

	return tree, nil
}
