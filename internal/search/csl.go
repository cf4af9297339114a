package search

import (
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form,
// consumable by Pandoc and reference managers.
type CSLItem struct {
	ID       string    `yaml:"id"`
	Type     string    `yaml:"type"`
	Title    string    `yaml:"title"`
	Author   []CSLName `yaml:"author,omitempty"`
	Abstract string    `yaml:"abstract,omitempty"`
	Issued   *CSLDate  `yaml:"issued,omitempty"`
	DOI      string    `yaml:"DOI,omitempty"`
	URL      string    `yaml:"URL,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

func (n CSLName) familyOrLiteral() string {
	if n.Family != "" {
		return n.Family
	}
	return n.Literal
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes papers as a CSL-YAML list to w.
func FormatCSL(out Outcome, w io.Writer) error {
	items := make([]CSLItem, len(out.Papers))
	for i, p := range out.Papers {
		items[i] = toCSLItem(p)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

func toCSLItem(p types.Paper) CSLItem {
	item := CSLItem{
		ID:       p.Identifier,
		Type:     "article",
		Title:    p.Title,
		Abstract: p.Summary,
		URL:      p.URL,
	}
	if p.SearchSource == types.SourceWeb {
		item.Type = "webpage"
	}

	for _, a := range p.Authors {
		item.Author = append(item.Author, parseAuthorName(a))
	}

	switch {
	case !p.Published.IsZero():
		item.Issued = &CSLDate{
			DateParts: [][]int{{p.Published.Year(), int(p.Published.Month()), p.Published.Day()}},
		}
	case p.Year > 0:
		item.Issued = &CSLDate{DateParts: [][]int{{p.Year}}}
	}

	if strings.HasPrefix(p.Identifier, "10.") {
		item.DOI = p.Identifier
	}
	return item
}

// parseAuthorName splits on the last space: everything before is given,
// the last token is family. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
