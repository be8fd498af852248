package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"library_desk/internal/pageconfig"
	"library_desk/internal/view"
	"library_desk/internal/workflow"
)

// checkboxField is the name the copy checkboxes submit under.
const checkboxField = "book_item_id"

func (s *Server) buildReturnPanel(ctx context.Context, v *View) view.ReturnPanelView {
	rt := v.ret

	panel := view.ReturnPanelView{
		SelectedReader: rt.SelectedReader(),
		Readers:        rt.LoadReaders(),
	}
	if r := panel.SelectedReader.Reader; r != nil {
		panel.Readers = workflow.ReaderListView{Status: workflow.ListChosen, Chosen: r.Name}
		panel.Books = rt.Books()
		if books, err := rt.ReloadBooks(ctx); err == nil {
			panel.Books = books
		}
	}
	panel.SelectedBooks = rt.SelectedBooks()
	panel.Summary = rt.Summary()
	panel.Form = rt.Form()

	tabs, history, err := rt.ActivateTab(ctx, rt.State().Tab)
	if err == nil {
		panel.History = history
	}
	panel.Tabs = tabs
	return panel
}

func (s *Server) returnPanel(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	s.writeFragments(w, v, view.Main(view.ReturnPanel, s.buildReturnPanel(r.Context(), v)))
}

func (s *Server) returnReaders(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	list := v.ret.FilterReaders(strings.TrimSpace(r.URL.Query().Get("q")))
	s.writeFragments(w, v, view.Main(view.ReturnReaderList, list))
}

func (s *Server) returnSelectReader(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	id, ok := intParam(w, r.FormValue("id"), "reader id")
	if !ok {
		return
	}
	sel, err := v.ret.SelectReader(r.Context(), id)
	if errors.Is(err, workflow.ErrUnknownReader) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown reader"})
		return
	}

	frags := []view.Fragment{
		view.OOB(view.ReturnSelectedReader, sel.Selected),
		view.OOB(view.ReturnReaderList, sel.List),
		view.OOB(view.ReturnSelectedBooks, workflow.SelectedBooksView{}),
		view.OOB(view.Summary, sel.Summary),
		view.OOB(view.ReturnForm, sel.Form),
	}
	// A newer reader choice owns the copies list.
	if sel.Books != nil {
		frags = append(frags, view.OOB(view.ReturnBooks, *sel.Books))
	}
	s.writeFragments(w, v, frags...)
}

func (s *Server) returnChecked(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
		return
	}
	var checked []int
	for _, raw := range r.PostForm[checkboxField] {
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "book item id is invalid"})
			return
		}
		checked = append(checked, id)
	}

	upd := v.ret.UpdateChecked(checked)
	s.writeFragments(w, v,
		view.OOB(view.ReturnSelectedBooks, upd.Selected),
		view.OOB(view.Summary, upd.Summary),
		view.OOB(view.ReturnForm, upd.Form),
	)
}

func (s *Server) returnDate(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	name := pageconfig.FieldName(v.ret.Config().ReturnDateInputID)
	upd := v.ret.SetDate(strings.TrimSpace(r.FormValue(name)))
	s.writeFragments(w, v,
		view.OOB(view.Summary, upd.Summary),
		view.OOB(view.ReturnForm, upd.Form),
	)
}

func (s *Server) returnBooks(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	books, err := v.ret.ReloadBooks(r.Context())
	if stale(w, err) {
		return
	}
	// The reload may have dropped copies that were checked.
	s.writeFragments(w, v,
		view.Main(view.ReturnBooks, books),
		view.OOB(view.ReturnSelectedBooks, v.ret.SelectedBooks()),
		view.OOB(view.Summary, v.ret.Summary()),
		view.OOB(view.ReturnForm, v.ret.Form()),
	)
}

func (s *Server) returnHistory(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	h, err := v.ret.LoadHistory(r.Context(), r.URL.Query().Get("filter"))
	if stale(w, err) {
		return
	}
	s.writeFragments(w, v, view.Main(view.History, &h))
}

func (s *Server) returnTab(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	tabs, history, err := v.ret.ActivateTab(r.Context(), chi.URLParam(r, "tab"))
	frags := []view.Fragment{view.OOB(view.Tabs, tabs)}
	if err == nil && history != nil {
		frags = append(frags, view.OOB(view.History, history))
	}
	s.writeFragments(w, v, frags...)
}
