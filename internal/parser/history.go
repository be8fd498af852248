package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RowHoverClass is added to every row taken over from a history page.
const RowHoverClass = "hover:bg-gray-50"

// ExtractHistoryRows takes a full history page rendered by the backend and
// returns the outer HTML of its table rows. Headers and everything outside
// tbody are dropped: the panel writes its own headers.
//
// The first tbody decides emptiness. A page without tbody, or with a
// whitespace-only one, gives no rows and no error.
func ExtractHistoryRows(body io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("read history html: %w", err)
	}

	first := doc.Find("tbody").First()
	if first.Length() == 0 {
		return nil, nil
	}
	inner, err := first.Html()
	if err != nil {
		return nil, fmt.Errorf("read history tbody: %w", err)
	}
	if strings.TrimSpace(inner) == "" {
		return nil, nil
	}

	var rows []string
	var rowErr error
	doc.Find("tbody tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		tr.AddClass(RowHoverClass)
		html, err := goquery.OuterHtml(tr)
		if err != nil {
			rowErr = fmt.Errorf("render history row: %w", err)
			return false
		}
		rows = append(rows, html)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	return rows, nil
}
