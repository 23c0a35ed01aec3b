package infarmed

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// minRowCells is the number of leading cells every result row carries:
// registration number, name, DCI, form, dosage and holder
const minRowCells = 6

// Candidate is one eligible row of the portal results table
type Candidate struct {
	InfarmedID string `json:"infarmedId"`
	Name       string `json:"name"`
	DCI        string `json:"dci"`
	Form       string `json:"form"`
	Dosage     string `json:"dosage"`
	Holder     string `json:"holder"`
	RCMID      string `json:"rcmId,omitempty"`
	FIID       string `json:"fiId,omitempty"`
}

// HasDocuments reports whether the row links at least one document
func (c Candidate) HasDocuments() bool {
	return c.RCMID != "" || c.FIID != ""
}

// DecodeRows reads the results table markup and returns the rows that link at
// least one document. Rows with fewer than six cells are skipped.
func DecodeRows(r io.Reader) ([]Candidate, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results table: %w", err)
	}

	candidates := []Candidate{}
	for _, row := range findAll(doc, atom.Tr) {
		cells := childCells(row)
		if len(cells) < minRowCells {
			continue
		}

		c := Candidate{
			InfarmedID: cellText(cells[0]),
			Name:       cellText(cells[1]),
			DCI:        cellText(cells[2]),
			Form:       cellText(cells[3]),
			Dosage:     cellText(cells[4]),
			Holder:     cellText(cells[5]),
		}

		docCell := cells[len(cells)-1]
		c.RCMID = anchorID(docCell, func(id string) bool {
			return strings.Contains(id, "RcmIcon")
		})
		// the national leaflet wins over the EMA one
		c.FIID = anchorID(docCell, func(id string) bool {
			return strings.Contains(id, "FiIcon") && !strings.Contains(id, "EmaFiIcon")
		})
		if c.FIID == "" {
			c.FIID = anchorID(docCell, func(id string) bool {
				return strings.Contains(id, "EmaFiIcon")
			})
		}

		if c.HasDocuments() {
			candidates = append(candidates, c)
		}
	}

	return candidates, nil
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func childCells(row *html.Node) []*html.Node {
	var cells []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Td {
			cells = append(cells, c)
		}
	}
	return cells
}

// cellText concatenates the text of a cell and collapses whitespace
func cellText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
			if n.DataAtom == atom.Br {
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// anchorID returns the id of the first anchor below n whose id satisfies match
func anchorID(n *html.Node, match func(string) bool) string {
	for _, a := range findAll(n, atom.A) {
		for _, attr := range a.Attr {
			if attr.Key == "id" && match(attr.Val) {
				return attr.Val
			}
		}
	}
	return ""
}
