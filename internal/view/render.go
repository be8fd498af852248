// Package view renders workflow view models as HTML fragments for HTMX.
//
// Every fragment is a single element (or a small fixed group of elements)
// carrying a stable id, so it can be swapped either as the primary target of
// a request or out of band with hx-swap-oob.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"library_desk/internal/pageconfig"
	"library_desk/internal/workflow"
)

// Fragment names.
const (
	ReaderList     = "readerList"
	SelectedReader = "selectedReader"
	BookList       = "bookList"
	SelectedBooks  = "selectedBooks"
	BorrowForm     = "borrowForm"
	BorrowingList  = "borrowingList"
	DetailModal    = "detailModal"
	BorrowPanel    = "borrowPanel"

	ReturnReaderList     = "returnReaderList"
	ReturnSelectedReader = "returnSelectedReader"
	ReturnBooks          = "returnBooks"
	ReturnSelectedBooks  = "returnSelectedBooks"
	Summary              = "summary"
	ReturnForm           = "returnForm"
	ReturnPanel          = "returnPanel"

	History = "history"
	Tabs    = "tabs"
)

//go:embed templates/*.html
var templateFS embed.FS

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var messages = map[string]string{
	"readersNotFound": MsgReadersNotFound,
	"booksNotFound":   MsgBooksNotFound,
	"listFailed":      MsgListFailed,
	"readerChosen":    MsgReaderChosen,
	"notChosen":       MsgNotChosen,
	"noBorrowing":     MsgNoBorrowing,
	"noReaders":       MsgNoReaders,
	"noUnreturned":    MsgNoUnreturned,
	"noData":          MsgNoData,
	"dataFailed":      MsgDataFailed,
	"overdue":         MsgOverdue,
	"onTime":          MsgOnTime,
	"dueBy":           MsgDueBy,
	"pickReader":      MsgPickReader,
	"selectedReader":  MsgSelectedReader,
}

// BorrowPanelView is the whole borrow page body, rendered once per page view.
type BorrowPanelView struct {
	Tabs           workflow.TabView
	Readers        workflow.ReaderListView
	SelectedReader workflow.SelectedReaderView
	Books          workflow.BookListView
	SelectedBooks  workflow.SelectedBooksView
	Form           workflow.FormView
	Borrowing      workflow.BorrowingListView
	History        *workflow.HistoryView
	Modal          *workflow.DetailModalView
}

// ReturnPanelView is the whole return page body.
type ReturnPanelView struct {
	Tabs           workflow.TabView
	Readers        workflow.ReaderListView
	SelectedReader workflow.SelectedReaderView
	Books          workflow.ReturnBooksView
	SelectedBooks  workflow.SelectedBooksView
	Summary        workflow.SummaryView
	Form           workflow.FormView
	History        *workflow.HistoryView
}

// Fragment is one named template applied to a view model.
type Fragment struct {
	Name string
	Data any
	OOB  bool
}

// Main is the fragment that replaces the request's target.
func Main(name string, data any) Fragment {
	return Fragment{Name: name, Data: data}
}

// OOB is a fragment swapped out of band by element id.
func OOB(name string, data any) Fragment {
	return Fragment{Name: name, Data: data, OOB: true}
}

// frame is what every template receives.
type frame struct {
	V    any
	OOB  bool
	Base string
	Poll string
}

type Renderer struct {
	tmpl *template.Template
	poll string
}

// NewRenderer parses the embedded templates. poll is the refresh interval
// the borrowing list asks the browser for.
func NewRenderer(poll time.Duration) (*Renderer, error) {
	if poll < time.Second {
		poll = 30 * time.Second
	}
	funcs := template.FuncMap{
		"t":           func(key string) string { return messages[key] },
		"copies":      Copies,
		"overdueDays": OverdueDays,
		"currency":    FormatCurrency,
		"filterLabel": filterLabel,
		"tabLabel":    tabLabel,
		"headers":     historyHeaders,
		"fieldName":   pageconfig.FieldName,
		"qs":          url.QueryEscape,
		"join":        func(s []string) string { return strings.Join(s, ", ") },
		"vals":        vals,
		// Rows are taken verbatim from the backend's own history page.
		"row": func(s string) template.HTML { return template.HTML(s) },
		"sub": func(parent frame, v any) frame {
			return frame{V: v, Base: parent.Base, Poll: parent.Poll}
		},
	}
	tmpl, err := template.New("view").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, poll: fmt.Sprintf("%ds", int(poll/time.Second))}, nil
}

// Render writes the fragments in order. base is the URL prefix of the page
// view the fragments post back to. Nothing is written if any fragment fails.
func (r *Renderer) Render(w io.Writer, base string, frags ...Fragment) error {
	var buf bytes.Buffer
	for _, f := range frags {
		data := frame{V: f.Data, OOB: f.OOB, Base: base, Poll: r.poll}
		if err := r.tmpl.ExecuteTemplate(&buf, f.Name, data); err != nil {
			return fmt.Errorf("render %s: %w", f.Name, err)
		}
		buf.WriteByte('\n')
	}
	_, err := buf.WriteTo(w)
	return err
}

// vals builds an hx-vals JSON object from key/value pairs.
func vals(kv ...any) (string, error) {
	if len(kv)%2 != 0 {
		return "", fmt.Errorf("vals: odd argument count")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return "", fmt.Errorf("vals: key %v is not a string", kv[i])
		}
		m[k] = kv[i+1]
	}
	b, err := json.Marshal(m)
	return string(b), err
}
