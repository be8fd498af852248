package workflow

import (
	"context"
	"strconv"
	"sync"
	"time"

	"library_desk/internal/models"
	"library_desk/internal/pageconfig"
)

// Tabs of the borrow page.
const (
	TabCheckout  = "checkout"
	TabBorrowing = "borrowing"
	TabHistory   = "history"
)

// Hidden input ids of the borrow form.
const (
	BorrowReaderField = "readerId"
	BorrowBooksField  = "bookId"
)

// Form field names the backend's borrow form handler reads.
const (
	borrowReaderName = "reader_id"
	borrowBooksName  = "book_id"
)

// BorrowBackend is what the borrow page needs from the library backend.
type BorrowBackend interface {
	SearchReaders(ctx context.Context, endpoint, search string) ([]models.Reader, error)
	SearchBooks(ctx context.Context, endpoint, search string) ([]models.Book, error)
	BorrowingReaders(ctx context.Context, endpoint string) ([]models.BorrowingReader, error)
	HistoryPage(ctx context.Context, endpoint, filter string) ([]byte, error)
}

// Borrow is the controller of one borrow page view.
type Borrow struct {
	cfg     pageconfig.BorrowConfig
	backend BorrowBackend
	now     func() time.Time

	mu     sync.Mutex
	tokens *tokens
	reader *models.ReaderRef
	books  toggleSet
	// titles of every book listed during this page view, by id
	titles     map[int]string
	bookList   []models.Book
	bookStatus ListStatus
	date       string

	borrowing       []models.BorrowingReader
	borrowingStatus ListStatus
	modal           *DetailModalView

	tab    string
	filter string
}

func NewBorrow(cfg pageconfig.BorrowConfig, backend BorrowBackend, now func() time.Time) *Borrow {
	if now == nil {
		now = time.Now
	}
	return &Borrow{
		cfg:             cfg,
		backend:         backend,
		now:             now,
		tokens:          newTokens(),
		titles:          make(map[int]string),
		bookStatus:      ListIdle,
		borrowingStatus: ListIdle,
		tab:             TabCheckout,
		filter:          FilterAll,
	}
}

func (b *Borrow) Config() pageconfig.BorrowConfig { return b.cfg }

// LoadReaders runs the reader search and marks the selected reader.
func (b *Borrow) LoadReaders(ctx context.Context, search string) (ReaderListView, error) {
	b.mu.Lock()
	tok := b.tokens.issue(ContainerReaders)
	b.mu.Unlock()

	readers, err := b.backend.SearchReaders(ctx, b.cfg.APIReadersURL, search)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tokens.latest(ContainerReaders, tok) {
		return ReaderListView{}, ErrStale
	}
	if err != nil {
		logFailure("borrow: readers", err)
		return ReaderListView{Status: ListFailed}, nil
	}
	if len(readers) == 0 {
		return ReaderListView{Status: ListEmpty}, nil
	}

	view := ReaderListView{Status: ListLoaded, Items: make([]ReaderItem, 0, len(readers))}
	for _, r := range readers {
		view.Items = append(view.Items, ReaderItem{
			ID:       r.ID,
			Name:     r.DisplayName(),
			Email:    r.Email,
			Selected: b.reader != nil && b.reader.ID == r.ID,
		})
	}
	return view, nil
}

// ReaderSelection is everything a reader change re-renders.
type ReaderSelection struct {
	Selected SelectedReaderView
	// List is nil when the reload was superseded.
	List *ReaderListView
	Form FormView
}

// SelectReader chooses a reader; the reader list collapses to the choice.
func (b *Borrow) SelectReader(id int, name, email string) ReaderSelection {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reader = &models.ReaderRef{ID: id, Name: name, Email: email}
	// Any search still in flight must not replace the collapsed list.
	b.tokens.issue(ContainerReaders)

	ref := *b.reader
	return ReaderSelection{
		Selected: SelectedReaderView{Reader: &ref},
		List:     &ReaderListView{Status: ListChosen, Chosen: name},
		Form:     b.formLocked(),
	}
}

// ClearReader drops the reader and reloads the full reader list.
func (b *Borrow) ClearReader(ctx context.Context) ReaderSelection {
	b.mu.Lock()
	b.reader = nil
	form := b.formLocked()
	b.mu.Unlock()

	out := ReaderSelection{Form: form}
	if list, err := b.LoadReaders(ctx, ""); err == nil {
		out.List = &list
	}
	return out
}

// LoadBooks runs the book search and marks selected books.
func (b *Borrow) LoadBooks(ctx context.Context, search string) (BookListView, error) {
	b.mu.Lock()
	tok := b.tokens.issue(ContainerBooks)
	b.mu.Unlock()

	books, err := b.backend.SearchBooks(ctx, b.cfg.APIBooksURL, search)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tokens.latest(ContainerBooks, tok) {
		return BookListView{}, ErrStale
	}
	b.bookList = nil
	switch {
	case err != nil:
		logFailure("borrow: books", err)
		b.bookStatus = ListFailed
	case len(books) == 0:
		b.bookStatus = ListEmpty
	default:
		b.bookStatus = ListLoaded
		b.bookList = books
		for _, bk := range books {
			b.titles[bk.ID] = bk.Title
		}
	}
	return b.bookListLocked(), nil
}

// BookToggle is everything a book toggle re-renders.
type BookToggle struct {
	List     BookListView
	Selected SelectedBooksView
	Form     FormView
}

// ToggleBook flips one book in or out of the selection.
func (b *Borrow) ToggleBook(id int) BookToggle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.books.flip(id)
	return BookToggle{
		List:     b.bookListLocked(),
		Selected: b.selectedBooksLocked(),
		Form:     b.formLocked(),
	}
}

// SetDate records the borrow date input.
func (b *Borrow) SetDate(value string) FormView {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.date = value
	return b.formLocked()
}

func (b *Borrow) Form() FormView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.formLocked()
}

func (b *Borrow) SelectedReader() SelectedReaderView {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reader == nil {
		return SelectedReaderView{}
	}
	ref := *b.reader
	return SelectedReaderView{Reader: &ref}
}

func (b *Borrow) SelectedBooks() SelectedBooksView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selectedBooksLocked()
}

// LoadBorrowingReaders refreshes the "currently borrowing" tab.
func (b *Borrow) LoadBorrowingReaders(ctx context.Context) (BorrowingListView, error) {
	b.mu.Lock()
	tok := b.tokens.issue(ContainerBorrowing)
	b.mu.Unlock()

	readers, err := b.backend.BorrowingReaders(ctx, b.cfg.APIBorrowingReadersURL)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tokens.latest(ContainerBorrowing, tok) {
		return BorrowingListView{}, ErrStale
	}
	switch {
	case err != nil:
		// Keep the last good list for the detail modal.
		logFailure("borrow: borrowing readers", err)
		b.borrowingStatus = ListFailed
	case len(readers) == 0:
		b.borrowingStatus = ListEmpty
		b.borrowing = nil
	default:
		b.borrowingStatus = ListLoaded
		b.borrowing = readers
	}
	return b.borrowingLocked(), nil
}

// Borrowing returns the last loaded "currently borrowing" list.
func (b *Borrow) Borrowing() BorrowingListView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.borrowingLocked()
}

// OverdueReaders returns the overdue readers of the last successful load.
func (b *Borrow) OverdueReaders() []models.BorrowingReader {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.BorrowingReader
	for _, r := range b.borrowing {
		if r.IsOverdue {
			out = append(out, r)
		}
	}
	return out
}

// ShowDetail opens the detail modal for a reader of the borrowing list,
// replacing any modal already open.
func (b *Borrow) ShowDetail(readerID int) (DetailModalView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range b.borrowing {
		if r.ReaderID == readerID {
			view := buildDetail(r, b.now())
			b.modal = &view
			return view, nil
		}
	}
	return DetailModalView{}, ErrUnknownReader
}

func (b *Borrow) CloseDetail() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modal = nil
}

// Detail returns the open modal, if any.
func (b *Borrow) Detail() (DetailModalView, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.modal == nil {
		return DetailModalView{}, false
	}
	return *b.modal, true
}

// LoadHistory fetches the borrow history for filter and makes it current.
func (b *Borrow) LoadHistory(ctx context.Context, filter string) (HistoryView, error) {
	filter = normalizeFilter(filter)

	b.mu.Lock()
	b.filter = filter
	tok := b.tokens.issue(ContainerHistory)
	b.mu.Unlock()

	status, rows := fetchHistory(ctx, b.backend, "borrow", b.cfg.BorrowBookListURL, filter)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tokens.latest(ContainerHistory, tok) {
		return HistoryView{}, ErrStale
	}
	return HistoryView{
		Kind:    BorrowHistory,
		Status:  status,
		Rows:    rows,
		Filters: filterOptions(BorrowFilters, filter),
	}, nil
}

// ActivateTab switches tabs; the history tab reloads with the current filter.
func (b *Borrow) ActivateTab(ctx context.Context, tab string) (TabView, *HistoryView, error) {
	switch tab {
	case TabCheckout, TabBorrowing, TabHistory:
	default:
		tab = TabCheckout
	}

	b.mu.Lock()
	b.tab = tab
	filter := b.filter
	b.mu.Unlock()

	view := TabView{Active: tab, Tabs: []string{TabCheckout, TabBorrowing, TabHistory}}
	if tab != TabHistory {
		return view, nil, nil
	}
	h, err := b.LoadHistory(ctx, filter)
	if err != nil {
		return view, nil, err
	}
	return view, &h, nil
}

func (b *Borrow) formLocked() FormView {
	f := FormView{
		Reader: FormField{ID: BorrowReaderField, Name: borrowReaderName},
		Books:  FormField{ID: BorrowBooksField, Name: borrowBooksName, Value: JoinCSV(b.books.list())},
		Date:   FormField{ID: b.cfg.BorrowDateInputID, Value: b.date},
	}
	if b.reader != nil {
		f.Reader.Value = strconv.Itoa(b.reader.ID)
	}
	f.SubmitEnabled = SubmitEnabled(b.reader != nil, len(b.books.ids), b.date)
	return f
}

func (b *Borrow) bookListLocked() BookListView {
	view := BookListView{Status: b.bookStatus}
	for _, bk := range b.bookList {
		view.Items = append(view.Items, BookItem{Book: bk, Selected: b.books.has(bk.ID)})
	}
	return view
}

func (b *Borrow) selectedBooksLocked() SelectedBooksView {
	ids := b.books.list()
	view := SelectedBooksView{Count: len(ids)}
	for _, id := range ids {
		if t, ok := b.titles[id]; ok {
			view.Titles = append(view.Titles, t)
		}
	}
	return view
}

func (b *Borrow) borrowingLocked() BorrowingListView {
	return BorrowingListView{
		Status:  b.borrowingStatus,
		Readers: append([]models.BorrowingReader(nil), b.borrowing...),
	}
}

// BorrowState is the part of a borrow page view worth keeping across a
// process restart: the form mirror plus tab and filter.
type BorrowState struct {
	Reader  *models.ReaderRef
	BookIDs []int
	Date    string
	Tab     string
	Filter  string
}

func (b *Borrow) State() BorrowState {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := BorrowState{
		BookIDs: b.books.list(),
		Date:    b.date,
		Tab:     b.tab,
		Filter:  b.filter,
	}
	if b.reader != nil {
		ref := *b.reader
		st.Reader = &ref
	}
	return st
}

// Restore puts a saved state back. Lists stay idle until reloaded.
func (b *Borrow) Restore(st BorrowState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reader = nil
	if st.Reader != nil {
		ref := *st.Reader
		b.reader = &ref
	}
	b.books.reset(st.BookIDs)
	b.date = st.Date
	b.tab = st.Tab
	if b.tab == "" {
		b.tab = TabCheckout
	}
	b.filter = normalizeFilter(st.Filter)
}
