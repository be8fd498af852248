package workflow

import "library_desk/internal/models"

// ListStatus tells the renderer what a fetched container holds.
type ListStatus int

const (
	ListLoaded ListStatus = iota
	// ListEmpty: the search matched nothing.
	ListEmpty
	// ListFailed: transport, status or payload error.
	ListFailed
	// ListChosen: the reader list is replaced by the chosen reader.
	ListChosen
	// ListUnavailable: there is nothing to search at all.
	ListUnavailable
	// ListIdle: nothing requested yet.
	ListIdle
)

var listStatusNames = [...]string{"loaded", "empty", "failed", "chosen", "unavailable", "idle"}

func (s ListStatus) String() string {
	if s >= 0 && int(s) < len(listStatusNames) {
		return listStatusNames[s]
	}
	return "unknown"
}

type ReaderItem struct {
	ID       int
	Name     string
	Email    string
	Selected bool
}

type ReaderListView struct {
	Status ListStatus
	Items  []ReaderItem
	// Chosen is the reader name shown with ListChosen.
	Chosen string
}

type BookItem struct {
	models.Book
	Selected bool
}

type BookListView struct {
	Status ListStatus
	Items  []BookItem
}

// SelectedReaderView is empty when no reader is chosen.
type SelectedReaderView struct {
	Reader *models.ReaderRef
}

// SelectedBooksView is the "currently selected" summary.
type SelectedBooksView struct {
	Titles []string
	Count  int
}

type FormField struct {
	ID    string
	Name  string
	Value string
}

// FormView mirrors the hidden inputs, the date input and the submit control.
type FormView struct {
	Reader        FormField
	Books         FormField
	Date          FormField
	SubmitEnabled bool
}

type BorrowingListView struct {
	Status  ListStatus
	Readers []models.BorrowingReader
}

type DetailRow struct {
	Title      string
	BorrowDate string
	DueDate    string
	Overdue    bool
}

type DetailModalView struct {
	ReaderID int
	Name     string
	Email    string
	Rows     []DetailRow
}

type ReturnItem struct {
	models.BorrowedItem
	Checked bool
}

type ReturnBooksView struct {
	Status ListStatus
	Items  []ReturnItem
}

// SummaryView is the side panel of the return page.
type SummaryView struct {
	Reader        *models.ReaderRef
	Titles        []string
	ReturnDate    string
	EstimatedFine int
}

type TabView struct {
	Active string
	Tabs   []string
}
