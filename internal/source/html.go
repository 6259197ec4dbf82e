// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mia-platform/bankcap/internal/fetch"
	"github.com/mia-platform/bankcap/internal/logger"
)

const (
	// DefaultSelector matches the first wiki styled table of the page.
	DefaultSelector = "table.wikitable"

	loggerName = "bankcap:source"
)

var _ Reader = &HTMLReader{}

// HTMLReader reads a table out of an HTML document addressed by a locator.
type HTMLReader struct {
	fetcher  *fetch.Fetcher
	locator  string
	selector string
}

// NewHTMLReader returns a Reader for the table matched by selector inside the document at
// locator. An empty selector falls back to DefaultSelector.
func NewHTMLReader(fetcher *fetch.Fetcher, locator, selector string) *HTMLReader {
	if selector == "" {
		selector = DefaultSelector
	}

	return &HTMLReader{
		fetcher:  fetcher,
		locator:  locator,
		selector: selector,
	}
}

// Read implements Reader.
func (r *HTMLReader) Read(ctx context.Context) (*Table, error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	log.Debug("fetching document", "locator", r.locator)
	body, err := r.fetcher.Open(ctx, r.locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer body.Close()

	table, err := ParseHTML(body, r.selector)
	if err != nil {
		return nil, err
	}

	log.Debug("table parsed", "columns", len(table.Headers), "rows", len(table.Rows))
	return table, nil
}

// ParseHTML returns the first table matched by selector in the HTML read from r.
// The header row is the first row made only of th cells; every following row with at least
// one td cell becomes a data row. Footnote markers are removed from the cell text.
func ParseHTML(r io.Reader, selector string) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse document: %w", ErrSourceUnavailable, err)
	}

	region := doc.Find(selector).First()
	if region.Length() == 0 {
		return nil, fmt.Errorf("%w: no element matches %q", ErrStructureNotFound, selector)
	}

	table := &Table{}
	region.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("th, td")
		if cells.Length() == 0 {
			return
		}

		if table.Headers == nil {
			if tr.ChildrenFiltered("td").Length() == 0 {
				table.Headers = cellTexts(cells)
			}
			return
		}

		if tr.ChildrenFiltered("td").Length() == 0 {
			return
		}

		texts := cellTexts(cells)
		row := make(Row, len(table.Headers))
		for i, header := range table.Headers {
			if i < len(texts) {
				row[header] = texts[i]
			} else {
				row[header] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	})

	if table.Headers == nil {
		return nil, fmt.Errorf("%w: no header row in %q", ErrStructureNotFound, selector)
	}

	return table, nil
}

func cellTexts(cells *goquery.Selection) []string {
	texts := make([]string, 0, cells.Length())
	cells.Each(func(_ int, cell *goquery.Selection) {
		clean := cell.Clone()
		clean.Find("sup, style, .reference").Remove()
		clean.Find("br").ReplaceWithHtml(" ")
		texts = append(texts, strings.Join(strings.Fields(clean.Text()), " "))
	})

	return texts
}
