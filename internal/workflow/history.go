package workflow

import (
	"bytes"
	"context"

	"library_desk/internal/parser"
)

// HistoryKind selects the header set of the history table.
type HistoryKind int

const (
	BorrowHistory HistoryKind = iota
	ReturnHistory
)

// FilterAll is the default history filter.
const FilterAll = "all"

// Filter values the backend understands for each history list.
var (
	BorrowFilters = []string{FilterAll, "unreturned", "overdue", "returned"}
	ReturnFilters = []string{FilterAll, "ontime", "overdue"}
)

type FilterOption struct {
	Value  string
	Active bool
}

type HistoryView struct {
	Kind    HistoryKind
	Status  ListStatus
	Rows    []string
	Filters []FilterOption
}

type historyFetcher interface {
	HistoryPage(ctx context.Context, endpoint, filter string) ([]byte, error)
}

func normalizeFilter(filter string) string {
	if filter == "" {
		return FilterAll
	}
	return filter
}

func filterOptions(values []string, active string) []FilterOption {
	out := make([]FilterOption, len(values))
	for i, v := range values {
		out[i] = FilterOption{Value: v, Active: v == active}
	}
	return out
}

// fetchHistory loads and extracts one history page. It never fails: errors
// become ListFailed.
func fetchHistory(ctx context.Context, backend historyFetcher, scope, endpoint, filter string) (ListStatus, []string) {
	page, err := backend.HistoryPage(ctx, endpoint, filter)
	if err != nil {
		logFailure(scope+": history", err)
		return ListFailed, nil
	}
	rows, err := parser.ExtractHistoryRows(bytes.NewReader(page))
	if err != nil {
		logFailure(scope+": history", err)
		return ListFailed, nil
	}
	if len(rows) == 0 {
		return ListEmpty, nil
	}
	return ListLoaded, rows
}
