package workflow

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"library_desk/internal/models"
	"library_desk/internal/pageconfig"
	"library_desk/internal/parser"
)

// Tabs of the return page.
const (
	TabReturn = "return"
)

// Hidden input ids of the return form.
const (
	ReturnReaderField = "id_reader_id"
	ReturnBooksField  = "id_book_item_ids"
)

const (
	returnReaderName = "reader_id"
	returnBooksName  = "book_item_ids"
)

// ReaderListLimit caps the return page reader list.
const ReaderListLimit = 5

// vi-VN toLocaleString layout.
const returnDateLayout = "15:04:05 2/1/2006"

// ReturnBackend is what the return page needs from the library backend.
type ReturnBackend interface {
	BorrowedItems(ctx context.Context, endpoint string) ([]models.BorrowedItem, error)
	HistoryPage(ctx context.Context, endpoint, filter string) ([]byte, error)
}

// Return is the controller of one return page view.
type Return struct {
	cfg     pageconfig.ReturnConfig
	backend ReturnBackend
	now     func() time.Time

	readers []pageconfig.ReturnReader
	params  pageconfig.Params

	mu          sync.Mutex
	tokens      *tokens
	reader      *pageconfig.ReturnReader
	items       []models.BorrowedItem
	itemsStatus ListStatus
	checked     []int
	date        string

	tab    string
	filter string
}

// NewReturn decodes the embedded readers and params. Malformed embedded JSON
// is logged and the page continues with what could be decoded.
func NewReturn(cfg pageconfig.ReturnConfig, backend ReturnBackend, now func() time.Time) *Return {
	if now == nil {
		now = time.Now
	}
	readers, params, err := pageconfig.ReturnData(cfg)
	if err != nil {
		log.Printf("return: embedded config: %v", err)
	}
	return &Return{
		cfg:         cfg,
		backend:     backend,
		now:         now,
		readers:     readers,
		params:      params,
		tokens:      newTokens(),
		itemsStatus: ListIdle,
		checked:     []int{},
		tab:         TabReturn,
		filter:      FilterAll,
	}
}

func (r *Return) Config() pageconfig.ReturnConfig { return r.cfg }

// FineRate is the per-day fine from the embedded params.
func (r *Return) FineRate() int { return r.params.FineRate }

// LoadReaders lists the first readers of the embedded data.
func (r *Return) LoadReaders() ReaderListView {
	if len(r.readers) == 0 {
		return ReaderListView{Status: ListUnavailable}
	}
	return r.readerList(r.readers)
}

// FilterReaders matches query case-insensitively against name and email.
func (r *Return) FilterReaders(query string) ReaderListView {
	query = strings.ToLower(query)
	if query == "" {
		return r.LoadReaders()
	}

	var matched []pageconfig.ReturnReader
	for _, rd := range r.readers {
		m := models.Reader{ReaderName: rd.ReaderName, Email: rd.Email}
		if m.Matches(query) {
			matched = append(matched, rd)
			if len(matched) == ReaderListLimit {
				break
			}
		}
	}
	return r.readerList(matched)
}

func (r *Return) readerList(readers []pageconfig.ReturnReader) ReaderListView {
	if len(readers) == 0 {
		return ReaderListView{Status: ListEmpty}
	}
	if len(readers) > ReaderListLimit {
		readers = readers[:ReaderListLimit]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	view := ReaderListView{Status: ListLoaded}
	for _, rd := range readers {
		view.Items = append(view.Items, ReaderItem{
			ID:       rd.ID,
			Name:     rd.ReaderName,
			Email:    rd.Email,
			Selected: r.reader != nil && r.reader.ID == rd.ID,
		})
	}
	return view
}

// ReturnSelection is everything a reader change re-renders on the return page.
type ReturnSelection struct {
	Selected SelectedReaderView
	List     ReaderListView
	// Books is nil when the load was superseded by a newer reader choice.
	Books   *ReturnBooksView
	Summary SummaryView
	Form    FormView
}

// SelectReader switches to a reader, always clearing the book selection,
// and loads the copies that reader still holds.
func (r *Return) SelectReader(ctx context.Context, id int) (ReturnSelection, error) {
	rd, ok := r.findReader(id)
	if !ok {
		return ReturnSelection{}, ErrUnknownReader
	}

	r.mu.Lock()
	r.reader = &rd
	r.checked = []int{}
	r.items = nil
	r.itemsStatus = ListIdle
	tok := r.tokens.issue(ContainerReturn)
	out := ReturnSelection{
		Selected: SelectedReaderView{Reader: refOf(rd)},
		List:     ReaderListView{Status: ListChosen, Chosen: rd.ReaderName},
	}
	r.mu.Unlock()

	items, err := r.backend.BorrowedItems(ctx, r.cfg.BorrowedBooksURL(id))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens.latest(ContainerReturn, tok) {
		switch {
		case err != nil:
			logFailure("return: borrowed items", err)
			r.itemsStatus = ListFailed
		case len(items) == 0:
			r.itemsStatus = ListEmpty
		default:
			r.itemsStatus = ListLoaded
			r.items = items
		}
		books := r.booksLocked()
		out.Books = &books
	}
	out.Summary = r.summaryLocked()
	out.Form = r.formLocked()
	return out, nil
}

// CheckedUpdate is everything a checkbox change re-renders.
type CheckedUpdate struct {
	Selected SelectedBooksView
	Summary  SummaryView
	Form     FormView
}

// UpdateChecked replaces the book selection with the currently checked
// boxes. Ids not in the listed copies are ignored.
func (r *Return) UpdateChecked(checked []int) CheckedUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()

	listed := make([]int, len(r.items))
	for i, it := range r.items {
		listed[i] = it.BookItemID
	}
	r.checked = fromChecked(listed, checked)

	return CheckedUpdate{
		Selected: r.selectedLocked(),
		Summary:  r.summaryLocked(),
		Form:     r.formLocked(),
	}
}

// SetDate records the return date input.
func (r *Return) SetDate(value string) CheckedUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.date = value
	return CheckedUpdate{
		Selected: r.selectedLocked(),
		Summary:  r.summaryLocked(),
		Form:     r.formLocked(),
	}
}

func (r *Return) Form() FormView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.formLocked()
}

func (r *Return) Summary() SummaryView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaryLocked()
}

func (r *Return) SelectedBooks() SelectedBooksView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedLocked()
}

func (r *Return) Books() ReturnBooksView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booksLocked()
}

func (r *Return) SelectedReader() SelectedReaderView {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reader == nil {
		return SelectedReaderView{}
	}
	return SelectedReaderView{Reader: refOf(*r.reader)}
}

// ReloadBooks refetches the copies of the selected reader without touching
// the book selection beyond dropping ids that are no longer listed.
func (r *Return) ReloadBooks(ctx context.Context) (ReturnBooksView, error) {
	r.mu.Lock()
	if r.reader == nil {
		r.mu.Unlock()
		return ReturnBooksView{Status: ListIdle}, nil
	}
	id := r.reader.ID
	tok := r.tokens.issue(ContainerReturn)
	r.mu.Unlock()

	items, err := r.backend.BorrowedItems(ctx, r.cfg.BorrowedBooksURL(id))

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.tokens.latest(ContainerReturn, tok) {
		return ReturnBooksView{}, ErrStale
	}
	switch {
	case err != nil:
		logFailure("return: borrowed items", err)
		r.itemsStatus = ListFailed
		r.items = nil
	case len(items) == 0:
		r.itemsStatus = ListEmpty
		r.items = nil
	default:
		r.itemsStatus = ListLoaded
		r.items = items
	}
	listed := make([]int, len(r.items))
	for i, it := range r.items {
		listed[i] = it.BookItemID
	}
	r.checked = fromChecked(listed, r.checked)
	return r.booksLocked(), nil
}

// LoadHistory fetches the return history for filter and makes it current.
func (r *Return) LoadHistory(ctx context.Context, filter string) (HistoryView, error) {
	filter = normalizeFilter(filter)

	r.mu.Lock()
	r.filter = filter
	tok := r.tokens.issue(ContainerHistory)
	r.mu.Unlock()

	status, rows := fetchHistory(ctx, r.backend, "return", r.cfg.ReturnBookListURL, filter)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.tokens.latest(ContainerHistory, tok) {
		return HistoryView{}, ErrStale
	}
	return HistoryView{
		Kind:    ReturnHistory,
		Status:  status,
		Rows:    rows,
		Filters: filterOptions(ReturnFilters, filter),
	}, nil
}

// ActivateTab switches tabs; the history tab reloads with the current filter.
func (r *Return) ActivateTab(ctx context.Context, tab string) (TabView, *HistoryView, error) {
	if tab != TabHistory {
		tab = TabReturn
	}

	r.mu.Lock()
	r.tab = tab
	filter := r.filter
	r.mu.Unlock()

	view := TabView{Active: tab, Tabs: []string{TabReturn, TabHistory}}
	if tab != TabHistory {
		return view, nil, nil
	}
	h, err := r.LoadHistory(ctx, filter)
	if err != nil {
		return view, nil, err
	}
	return view, &h, nil
}

func (r *Return) findReader(id int) (pageconfig.ReturnReader, bool) {
	for _, rd := range r.readers {
		if rd.ID == id {
			return rd, true
		}
	}
	return pageconfig.ReturnReader{}, false
}

func (r *Return) formLocked() FormView {
	f := FormView{
		Reader: FormField{ID: ReturnReaderField, Name: returnReaderName},
		Books:  FormField{ID: ReturnBooksField, Name: returnBooksName, Value: JoinJSON(r.checked)},
		Date:   FormField{ID: r.cfg.ReturnDateInputID, Value: r.date},
	}
	if r.reader != nil {
		f.Reader.Value = strconv.Itoa(r.reader.ID)
	}
	f.SubmitEnabled = SubmitEnabled(r.reader != nil, len(r.checked), r.date)
	return f
}

func (r *Return) booksLocked() ReturnBooksView {
	view := ReturnBooksView{Status: r.itemsStatus}
	for _, it := range r.items {
		view.Items = append(view.Items, ReturnItem{BorrowedItem: it, Checked: r.isChecked(it.BookItemID)})
	}
	return view
}

func (r *Return) isChecked(id int) bool {
	for _, c := range r.checked {
		if c == id {
			return true
		}
	}
	return false
}

func (r *Return) checkedItems() []models.BorrowedItem {
	var out []models.BorrowedItem
	for _, it := range r.items {
		if r.isChecked(it.BookItemID) {
			out = append(out, it)
		}
	}
	return out
}

func (r *Return) selectedLocked() SelectedBooksView {
	view := SelectedBooksView{Count: len(r.checked)}
	for _, it := range r.checkedItems() {
		view.Titles = append(view.Titles, it.BookTitle)
	}
	return view
}

func (r *Return) summaryLocked() SummaryView {
	if r.reader == nil {
		return SummaryView{}
	}
	view := SummaryView{Reader: refOf(*r.reader)}
	for _, it := range r.checkedItems() {
		view.Titles = append(view.Titles, it.BookTitle)
		if it.IsOverdue && it.DaysOverdue > 0 {
			view.EstimatedFine += it.DaysOverdue * r.params.FineRate
		}
	}
	if r.date != "" {
		view.ReturnDate = r.date
		if t, err := parser.ParseInputDate(r.date, r.now().Location()); err == nil {
			view.ReturnDate = t.Format(returnDateLayout)
		}
	}
	return view
}

func refOf(rd pageconfig.ReturnReader) *models.ReaderRef {
	return &models.ReaderRef{ID: rd.ID, Name: rd.ReaderName, Email: rd.Email}
}

// ReturnState is the part of a return page view kept across a restart.
type ReturnState struct {
	ReaderID   int
	CheckedIDs []int
	Date       string
	Tab        string
	Filter     string
}

func (r *Return) State() ReturnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := ReturnState{
		CheckedIDs: append([]int(nil), r.checked...),
		Date:       r.date,
		Tab:        r.tab,
		Filter:     r.filter,
	}
	if r.reader != nil {
		st.ReaderID = r.reader.ID
	}
	return st
}

// Restore puts a saved state back. Unknown readers are dropped; the copies
// list stays idle until ReloadBooks.
func (r *Return) Restore(st ReturnState) {
	rd, ok := r.findReader(st.ReaderID)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.reader = nil
	r.checked = []int{}
	if ok {
		r.reader = &rd
		r.checked = append(r.checked, st.CheckedIDs...)
	}
	r.date = st.Date
	r.tab = st.Tab
	if r.tab != TabHistory {
		r.tab = TabReturn
	}
	r.filter = normalizeFilter(st.Filter)
}
