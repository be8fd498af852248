package models

// Book is an entry of the book search endpoint (titles with copies left).
type Book struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
	Category  string `json:"category"`
	Remaining int    `json:"remaining"`
}

// BorrowedItem is a copy a reader still holds, as listed on the return page.
type BorrowedItem struct {
	BookItemID  int    `json:"book_item_id"`
	BookTitle   string `json:"book_title"`
	BorrowDate  string `json:"borrow_date"`
	DueDate     string `json:"due_date"`
	IsOverdue   bool   `json:"is_overdue"`
	DaysOverdue int    `json:"days_overdue"`
}
