package workflow

import (
	"time"

	"library_desk/internal/models"
	"library_desk/internal/parser"
)

// buildDetail lays out the borrowed books of one reader. A book is overdue
// when its due date lies before today; dates that do not parse count as
// current.
func buildDetail(r models.BorrowingReader, now time.Time) DetailModalView {
	today := parser.StartOfDay(now)

	view := DetailModalView{
		ReaderID: r.ReaderID,
		Name:     r.ReaderName,
		Email:    r.ReaderEmail,
		Rows:     make([]DetailRow, 0, len(r.Books)),
	}
	for _, b := range r.Books {
		row := DetailRow{
			Title:      b.Title,
			BorrowDate: b.BorrowDate,
			DueDate:    b.DueDate,
		}
		if due, err := parser.ParseDMY(b.DueDate, now.Location()); err == nil {
			row.Overdue = due.Before(today)
		}
		view.Rows = append(view.Rows, row)
	}
	return view
}
