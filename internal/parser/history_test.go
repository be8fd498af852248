package parser

import (
	"strings"
	"testing"
)

func TestExtractHistoryRows(t *testing.T) {
	page := `<html><body>
<h1>Lịch sử</h1>
<table>
 <thead><tr><th>ignored</th></tr></thead>
 <tbody>
  <tr class="row"><td>#1</td><td>Nguyen A</td></tr>
  <tr><td>#2</td><td>Tran B</td></tr>
 </tbody>
</table>
<footer>x</footer>
</body></html>`

	rows, err := ExtractHistoryRows(strings.NewReader(page))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(rows), rows)
	}
	if !strings.Contains(rows[0], `class="row hover:bg-gray-50"`) {
		t.Fatalf("hover class not appended: %s", rows[0])
	}
	if !strings.Contains(rows[1], `class="hover:bg-gray-50"`) || !strings.Contains(rows[1], "Tran B") {
		t.Fatalf("unexpected second row: %s", rows[1])
	}
	for _, r := range rows {
		if strings.Contains(r, "ignored") || strings.Contains(r, "footer") {
			t.Fatalf("content outside tbody leaked: %s", r)
		}
	}
}

func TestExtractHistoryRowsEmpty(t *testing.T) {
	cases := map[string]string{
		"no table":         `<html><body><p>Không có phiếu</p></body></html>`,
		"whitespace tbody": "<table><tbody>   \n\t </tbody></table>",
		"empty tbody":      "<table><thead><tr><th>h</th></tr></thead><tbody></tbody></table>",
	}
	for name, page := range cases {
		t.Run(name, func(t *testing.T) {
			rows, err := ExtractHistoryRows(strings.NewReader(page))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(rows) != 0 {
				t.Fatalf("expected no rows, got %v", rows)
			}
		})
	}
}
