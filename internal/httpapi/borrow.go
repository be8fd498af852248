package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"library_desk/internal/pageconfig"
	"library_desk/internal/view"
	"library_desk/internal/workflow"
)

func (s *Server) buildBorrowPanel(ctx context.Context, v *View) view.BorrowPanelView {
	b := v.borrow
	st := b.State()

	panel := view.BorrowPanelView{
		SelectedReader: b.SelectedReader(),
		Form:           b.Form(),
	}
	if r := panel.SelectedReader.Reader; r != nil {
		panel.Readers = workflow.ReaderListView{Status: workflow.ListChosen, Chosen: r.Name}
	} else if list, err := b.LoadReaders(ctx, ""); err == nil {
		panel.Readers = list
	}
	if books, err := b.LoadBooks(ctx, ""); err == nil {
		panel.Books = books
	}
	// titles of a restored selection are known only once books are listed
	panel.SelectedBooks = b.SelectedBooks()
	// Tabs of a page opened mid-session come back as they were.
	panel.Borrowing = b.Borrowing()
	if list, err := b.LoadBorrowingReaders(ctx); err == nil {
		panel.Borrowing = list
	}
	tabs, history, err := b.ActivateTab(ctx, st.Tab)
	if err == nil {
		panel.History = history
	}
	panel.Tabs = tabs
	if modal, ok := b.Detail(); ok {
		panel.Modal = &modal
	}
	return panel
}

func (s *Server) borrowPanel(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	s.writeFragments(w, v, view.Main(view.BorrowPanel, s.buildBorrowPanel(r.Context(), v)))
}

func (s *Server) borrowReaders(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	list, err := v.borrow.LoadReaders(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")))
	if stale(w, err) {
		return
	}
	s.writeFragments(w, v, view.Main(view.ReaderList, list))
}

func (s *Server) borrowSelectReader(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	id, ok := intParam(w, r.FormValue("id"), "reader id")
	if !ok {
		return
	}
	sel := v.borrow.SelectReader(id, r.FormValue("name"), r.FormValue("email"))
	s.writeFragments(w, v,
		view.OOB(view.SelectedReader, sel.Selected),
		view.OOB(view.ReaderList, *sel.List),
		view.OOB(view.BorrowForm, sel.Form),
	)
}

func (s *Server) borrowClearReader(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	sel := v.borrow.ClearReader(r.Context())
	frags := []view.Fragment{
		view.OOB(view.SelectedReader, sel.Selected),
		view.OOB(view.BorrowForm, sel.Form),
	}
	if sel.List != nil {
		frags = append(frags, view.OOB(view.ReaderList, *sel.List))
	}
	s.writeFragments(w, v, frags...)
}

func (s *Server) borrowBooks(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	list, err := v.borrow.LoadBooks(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")))
	if stale(w, err) {
		return
	}
	s.writeFragments(w, v, view.Main(view.BookList, list))
}

func (s *Server) borrowToggleBook(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	id, ok := intParam(w, chi.URLParam(r, "bookID"), "book id")
	if !ok {
		return
	}
	t := v.borrow.ToggleBook(id)
	s.writeFragments(w, v,
		view.OOB(view.BookList, t.List),
		view.OOB(view.SelectedBooks, t.Selected),
		view.OOB(view.BorrowForm, t.Form),
	)
}

func (s *Server) borrowDate(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	name := pageconfig.FieldName(v.borrow.Config().BorrowDateInputID)
	form := v.borrow.SetDate(strings.TrimSpace(r.FormValue(name)))
	s.writeFragments(w, v, view.OOB(view.BorrowForm, form))
}

func (s *Server) borrowingList(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	list, err := v.borrow.LoadBorrowingReaders(r.Context())
	if stale(w, err) {
		return
	}
	s.writeFragments(w, v, view.Main(view.BorrowingList, list))
}

// borrowingCurrent serves the list as last refreshed by the poller.
func (s *Server) borrowingCurrent(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	s.writeFragments(w, v, view.Main(view.BorrowingList, v.borrow.Borrowing()))
}

func (s *Server) borrowDetail(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	id, ok := intParam(w, chi.URLParam(r, "readerID"), "reader id")
	if !ok {
		return
	}
	modal, err := v.borrow.ShowDetail(id)
	if errors.Is(err, workflow.ErrUnknownReader) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reader is not in the borrowing list"})
		return
	}
	s.writeFragments(w, v, view.Main(view.DetailModal, &modal))
}

func (s *Server) borrowCloseDetail(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	v.borrow.CloseDetail()
	s.writeFragments(w, v, view.Main(view.DetailModal, (*workflow.DetailModalView)(nil)))
}

func (s *Server) borrowHistory(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	h, err := v.borrow.LoadHistory(r.Context(), r.URL.Query().Get("filter"))
	if stale(w, err) {
		return
	}
	s.writeFragments(w, v, view.Main(view.History, &h))
}

func (s *Server) borrowTab(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	tabs, history, err := v.borrow.ActivateTab(r.Context(), chi.URLParam(r, "tab"))
	frags := []view.Fragment{view.OOB(view.Tabs, tabs)}
	if err == nil && history != nil {
		frags = append(frags, view.OOB(view.History, history))
	}
	if tabs.Active == workflow.TabBorrowing {
		frags = append(frags, view.OOB(view.BorrowingList, v.borrow.Borrowing()))
	}
	s.writeFragments(w, v, frags...)
}
