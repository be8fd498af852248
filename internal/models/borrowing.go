package models

// BorrowingReader is one row of the "currently borrowing" tab.
type BorrowingReader struct {
	ReaderID      int          `json:"reader_id"`
	ReaderName    string       `json:"reader_name"`
	ReaderEmail   string       `json:"reader_email"`
	IsOverdue     bool         `json:"is_overdue"`
	BorrowedCount int          `json:"borrowed_count"`
	LatestDueDate string       `json:"latest_due_date"`
	Books         []LoanedBook `json:"books"`
}

// LoanedBook is a book inside BorrowingReader.Books.
// Dates come formatted as dd/mm/yyyy.
type LoanedBook struct {
	Title      string `json:"title"`
	BorrowDate string `json:"borrow_date"`
	DueDate    string `json:"due_date"`
}
