// Package pageconfig reads the endpoint URLs and element ids a host page
// embeds as data-* attributes on its config element.
package pageconfig

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Element ids of the config elements on the borrow and return pages.
const (
	BorrowElementID = "borrow-config"
	ReturnElementID = "return-config"
)

// ReaderIDPlaceholder is substituted in ReturnConfig.BorrowedBooksAPIURL.
const ReaderIDPlaceholder = "{readerId}"

// DefaultFineRate is used when params-json carries no fine_rate.
const DefaultFineRate = 1000

// Attrs maps attribute names without the "data-" prefix to values,
// e.g. "api-readers-url" -> "/api/readers/".
type Attrs map[string]string

// Get returns the trimmed attribute value or fallback when it is absent or blank.
func (a Attrs) Get(name, fallback string) string {
	if v := strings.TrimSpace(a[name]); v != "" {
		return v
	}
	return fallback
}

// FromHTML finds the element with elementID in a page (or snippet) and
// collects its data-* attributes. A page without that element gives empty Attrs.
func FromHTML(r io.Reader, elementID string) (Attrs, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}

	attrs := Attrs{}
	el := doc.Find("#" + elementID).First()
	if el.Length() == 0 {
		return attrs, nil
	}

	for _, a := range el.Nodes[0].Attr {
		key := strings.ToLower(a.Key)
		if !strings.HasPrefix(key, "data-") {
			continue
		}
		attrs[strings.TrimPrefix(key, "data-")] = a.Val
	}
	return attrs, nil
}

// BorrowConfig holds the endpoints of the borrow page.
type BorrowConfig struct {
	APIReadersURL          string
	APIBooksURL            string
	APIBorrowingReadersURL string
	BorrowBookListURL      string
	BorrowDateInputID      string
}

// Borrow never fails: missing attributes take the defaults.
func Borrow(attrs Attrs) BorrowConfig {
	return BorrowConfig{
		APIReadersURL:          attrs.Get("api-readers-url", "/api/readers/"),
		APIBooksURL:            attrs.Get("api-books-url", "/api/books/"),
		APIBorrowingReadersURL: attrs.Get("api-borrowing-readers-url", "/api/borrowing-readers/"),
		BorrowBookListURL:      attrs.Get("borrow-book-list-url", "/books/borrow/"),
		BorrowDateInputID:      attrs.Get("borrow-date-input-id", "id_borrow_date"),
	}
}

// Endpoints lists every backend URL the borrow page calls.
func (c BorrowConfig) Endpoints() []string {
	return []string{c.APIReadersURL, c.APIBooksURL, c.APIBorrowingReadersURL, c.BorrowBookListURL}
}

// ReturnConfig holds the endpoints and embedded data of the return page.
type ReturnConfig struct {
	ReturnBookListURL   string
	ReturnDateInputID   string
	BorrowedBooksAPIURL string
	ReadersJSON         string
	ParamsJSON          string
}

// Return never fails: missing attributes take the defaults.
func Return(attrs Attrs) ReturnConfig {
	return ReturnConfig{
		ReturnBookListURL:   attrs.Get("return-book-list-url", "/books/return/"),
		ReturnDateInputID:   attrs.Get("return-date-input-id", "id_return_date"),
		BorrowedBooksAPIURL: attrs.Get("borrowed-books-api-url", "/api/reader/"+ReaderIDPlaceholder+"/borrowed-books/"),
		ReadersJSON:         attrs.Get("readers-json", "[]"),
		ParamsJSON:          attrs.Get("params-json", "{}"),
	}
}

// BorrowedBooksURL fills the reader id into the borrowed-books endpoint.
func (c ReturnConfig) BorrowedBooksURL(readerID int) string {
	return strings.ReplaceAll(c.BorrowedBooksAPIURL, ReaderIDPlaceholder, fmt.Sprint(readerID))
}

// Endpoints lists every backend URL the return page calls.
func (c ReturnConfig) Endpoints() []string {
	return []string{c.ReturnBookListURL, c.BorrowedBooksURL(0)}
}

// FieldName is the form name of an input with the given id; Django names
// inputs "id_<name>".
func FieldName(inputID string) string {
	return strings.TrimPrefix(inputID, "id_")
}

// ReturnReader is an entry of readers-json.
type ReturnReader struct {
	ID         int    `json:"id"`
	ReaderName string `json:"reader_name"`
	Email      string `json:"email"`
}

// Params is the decoded params-json.
type Params struct {
	FineRate int `json:"fine_rate"`
}

// ReturnData decodes the embedded readers and params.
// On malformed JSON it still returns usable values (no readers, default
// fine rate) together with the error, so callers can log and carry on.
func ReturnData(cfg ReturnConfig) ([]ReturnReader, Params, error) {
	params := Params{FineRate: DefaultFineRate}

	var readers []ReturnReader
	if err := json.Unmarshal([]byte(cfg.ReadersJSON), &readers); err != nil {
		return nil, params, fmt.Errorf("readers-json: %w", err)
	}
	if err := json.Unmarshal([]byte(cfg.ParamsJSON), &params); err != nil {
		return readers, Params{FineRate: DefaultFineRate}, fmt.Errorf("params-json: %w", err)
	}
	if params.FineRate <= 0 {
		params.FineRate = DefaultFineRate
	}
	return readers, params, nil
}
