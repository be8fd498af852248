package pageconfig

import (
	"strings"
	"testing"
)

func TestFromHTMLReadsDataAttributes(t *testing.T) {
	page := `<html><body>
<div id="borrow-config" data-api-readers-url="/x/readers/" data-Borrow-Date-Input-Id="d" class="hidden"></div>
</body></html>`

	attrs, err := FromHTML(strings.NewReader(page), BorrowElementID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attrs["api-readers-url"] != "/x/readers/" {
		t.Fatalf("attrs: %v", attrs)
	}
	if _, ok := attrs["class"]; ok {
		t.Fatalf("non data attribute leaked: %v", attrs)
	}

	cfg := Borrow(attrs)
	if cfg.APIReadersURL != "/x/readers/" || cfg.BorrowDateInputID != "d" {
		t.Fatalf("config: %+v", cfg)
	}
	if cfg.APIBooksURL != "/api/books/" {
		t.Fatalf("default not applied: %+v", cfg)
	}
}

func TestFromHTMLMissingElement(t *testing.T) {
	attrs, err := FromHTML(strings.NewReader("<p>nothing here</p>"), ReturnElementID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := Return(attrs)
	want := ReturnConfig{
		ReturnBookListURL:   "/books/return/",
		ReturnDateInputID:   "id_return_date",
		BorrowedBooksAPIURL: "/api/reader/{readerId}/borrowed-books/",
		ReadersJSON:         "[]",
		ParamsJSON:          "{}",
	}
	if cfg != want {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
	if got := cfg.BorrowedBooksURL(7); got != "/api/reader/7/borrowed-books/" {
		t.Fatalf("borrowed books url: %q", got)
	}
}

func TestBlankAttributeFallsBack(t *testing.T) {
	cfg := Borrow(Attrs{"api-books-url": "   "})
	if cfg.APIBooksURL != "/api/books/" {
		t.Fatalf("blank attribute should fall back, got %q", cfg.APIBooksURL)
	}
}

func TestReturnData(t *testing.T) {
	cfg := Return(Attrs{
		"readers-json": `[{"id":7,"reader_name":"Nguyen A","email":"a@x.com"}]`,
		"params-json":  `{"fine_rate":2000}`,
	})
	readers, params, err := ReturnData(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(readers) != 1 || readers[0].ReaderName != "Nguyen A" {
		t.Fatalf("readers: %+v", readers)
	}
	if params.FineRate != 2000 {
		t.Fatalf("fine rate: %d", params.FineRate)
	}
}

func TestReturnDataMalformed(t *testing.T) {
	readers, params, err := ReturnData(Return(Attrs{"readers-json": "[{oops"}))
	if err == nil {
		t.Fatal("expected error for malformed readers-json")
	}
	if readers != nil || params.FineRate != DefaultFineRate {
		t.Fatalf("expected usable fallbacks, got %+v %+v", readers, params)
	}

	readers, params, err = ReturnData(Return(Attrs{
		"readers-json": `[{"id":1}]`,
		"params-json":  "nope",
	}))
	if err == nil {
		t.Fatal("expected error for malformed params-json")
	}
	if len(readers) != 1 || params.FineRate != DefaultFineRate {
		t.Fatalf("readers should survive a params error: %+v %+v", readers, params)
	}
}

func TestFieldName(t *testing.T) {
	if got := FieldName("id_borrow_date"); got != "borrow_date" {
		t.Fatalf("got %q", got)
	}
	if got := FieldName("returnDate"); got != "returnDate" {
		t.Fatalf("got %q", got)
	}
}

func TestEndpointsCoverEveryURL(t *testing.T) {
	b := Borrow(Attrs{"borrow-book-list-url": "http://elsewhere/history/"})
	got := b.Endpoints()
	if len(got) != 4 || got[3] != "http://elsewhere/history/" {
		t.Fatalf("borrow endpoints: %v", got)
	}

	r := Return(Attrs{"borrowed-books-api-url": "http://elsewhere/r/{readerId}/"})
	got = r.Endpoints()
	if len(got) != 2 || got[0] != "/books/return/" || got[1] != "http://elsewhere/r/0/" {
		t.Fatalf("return endpoints: %v", got)
	}
}
