package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library_desk/internal/models"
	"library_desk/internal/pageconfig"
)

const readersJSON = `[
 {"id":7,"reader_name":"Nguyen A","email":"a@x.com"},
 {"id":8,"reader_name":"Tran B","email":"b@x.com"},
 {"id":9,"reader_name":"Le C","email":"c@x.com"},
 {"id":10,"reader_name":"Pham D","email":"d@x.com"},
 {"id":11,"reader_name":"Hoang E","email":"e@x.com"},
 {"id":12,"reader_name":"Vu F","email":"nguyen.f@x.com"}
]`

func newReturn(f *fakeBackend, attrs pageconfig.Attrs) *Return {
	if attrs == nil {
		attrs = pageconfig.Attrs{"readers-json": readersJSON, "params-json": `{"fine_rate":2000}`}
	}
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	return NewReturn(pageconfig.Return(attrs), f, func() time.Time { return now })
}

func returnFake() *fakeBackend {
	return &fakeBackend{items: map[string][]models.BorrowedItem{
		"/api/reader/7/borrowed-books/": {
			{BookItemID: 3, BookTitle: "Dế Mèn", BorrowDate: "01/02/2025", DueDate: "15/02/2025", IsOverdue: true, DaysOverdue: 23},
			{BookItemID: 5, BookTitle: "Số đỏ", BorrowDate: "01/03/2025", DueDate: "15/03/2025"},
		},
		"/api/reader/8/borrowed-books/": {
			{BookItemID: 6, BookTitle: "Truyện Kiều", BorrowDate: "01/03/2025", DueDate: "15/03/2025"},
		},
	}}
}

func TestReturnReaderListing(t *testing.T) {
	r := newReturn(returnFake(), nil)

	list := r.LoadReaders()
	assert.Equal(t, ListLoaded, list.Status)
	assert.Len(t, list.Items, ReaderListLimit)

	list = r.FilterReaders("NGUYEN")
	require.Len(t, list.Items, 2, "matches name and email")
	assert.Equal(t, 7, list.Items[0].ID)
	assert.Equal(t, 12, list.Items[1].ID)

	assert.Equal(t, ListEmpty, r.FilterReaders("zzz").Status)
	assert.Len(t, r.FilterReaders("").Items, ReaderListLimit)

	none := newReturn(returnFake(), pageconfig.Attrs{})
	assert.Equal(t, ListUnavailable, none.LoadReaders().Status)
}

func TestReturnMalformedEmbeddedJSON(t *testing.T) {
	r := newReturn(returnFake(), pageconfig.Attrs{"readers-json": "{broken"})
	assert.Equal(t, ListUnavailable, r.LoadReaders().Status)
	assert.Equal(t, pageconfig.DefaultFineRate, r.FineRate())
}

func TestReturnHiddenFieldsExample(t *testing.T) {
	r := newReturn(returnFake(), nil)
	ctx := context.Background()

	sel, err := r.SelectReader(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "7", sel.Form.Reader.Value)
	assert.Equal(t, "[]", sel.Form.Books.Value)
	assert.Equal(t, ListChosen, sel.List.Status)
	require.NotNil(t, sel.Books)
	assert.Len(t, sel.Books.Items, 2)

	up := r.UpdateChecked([]int{3})
	assert.Equal(t, "[3]", up.Form.Books.Value)
	assert.Equal(t, ReturnBooksField, up.Form.Books.ID)

	up = r.UpdateChecked([]int{5, 3})
	assert.Equal(t, "[3,5]", up.Form.Books.Value, "list order, not click order")
	assert.Equal(t, []string{"Dế Mèn", "Số đỏ"}, up.Selected.Titles)
	assert.Equal(t, 23*2000, up.Summary.EstimatedFine)
	assert.False(t, up.Form.SubmitEnabled)

	up = r.SetDate("2025-03-10T14:30")
	assert.True(t, up.Form.SubmitEnabled)
	assert.Equal(t, "14:30:00 10/3/2025", up.Summary.ReturnDate)
}

func TestReturnSwitchingReaderClearsBooks(t *testing.T) {
	r := newReturn(returnFake(), nil)
	ctx := context.Background()

	_, err := r.SelectReader(ctx, 7)
	require.NoError(t, err)
	r.UpdateChecked([]int{3, 5})

	sel, err := r.SelectReader(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, "[]", sel.Form.Books.Value)
	assert.Empty(t, sel.Summary.Titles)
	for _, it := range sel.Books.Items {
		assert.False(t, it.Checked)
	}

	// ids of the previous reader are not listed any more
	up := r.UpdateChecked([]int{3, 6})
	assert.Equal(t, "[6]", up.Form.Books.Value)

	_, err = r.SelectReader(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, "[]", r.Form().Books.Value, "re-selecting the same reader also clears")
}

func TestReturnSelectUnknownAndFailures(t *testing.T) {
	f := returnFake()
	r := newReturn(f, nil)
	ctx := context.Background()

	_, err := r.SelectReader(ctx, 999)
	assert.ErrorIs(t, err, ErrUnknownReader)

	sel, err := r.SelectReader(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, ListEmpty, sel.Books.Status)

	f.err = errDown
	sel, err = r.SelectReader(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, ListFailed, sel.Books.Status)
	assert.Equal(t, "7", sel.Form.Reader.Value)
}

func TestReturnSummaryWithoutReader(t *testing.T) {
	r := newReturn(returnFake(), nil)
	assert.Nil(t, r.Summary().Reader)
	assert.Equal(t, "[]", r.Form().Books.Value)
	assert.Equal(t, "", r.Form().Reader.Value)
}

func TestReturnHistory(t *testing.T) {
	f := returnFake()
	f.history = map[string]string{"all": "<html><body><table><tbody>\n   \n</tbody></table></body></html>"}
	r := newReturn(f, nil)

	_, hist, err := r.ActivateTab(context.Background(), TabHistory)
	require.NoError(t, err)
	require.NotNil(t, hist)
	assert.Equal(t, ListEmpty, hist.Status)
	assert.Equal(t, ReturnHistory, hist.Kind)
	assert.Len(t, hist.Filters, len(ReturnFilters))
}

func TestReturnStateRestoreAndReload(t *testing.T) {
	r := newReturn(returnFake(), nil)
	ctx := context.Background()
	_, err := r.SelectReader(ctx, 7)
	require.NoError(t, err)
	r.UpdateChecked([]int{5})
	r.SetDate("2025-03-10")

	restored := newReturn(returnFake(), nil)
	restored.Restore(r.State())
	assert.Equal(t, r.Form(), restored.Form())

	books, err := restored.ReloadBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books.Items, 2)
	assert.True(t, books.Items[1].Checked)
	assert.Equal(t, "[5]", restored.Form().Books.Value)
}
