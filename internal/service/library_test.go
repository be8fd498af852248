package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *LibraryClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewLibraryClient(srv.Client(), srv.URL)
	require.NoError(t, err)
	return c
}

func TestSearchReadersAppendsSearchOnlyWhenSet(t *testing.T) {
	var queries []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/readers/", r.URL.Path)
		queries = append(queries, r.URL.RawQuery)
		w.Write([]byte(`{"success":true,"data":[{"id":7,"name":"Nguyen A","email":"a@x.com"},{"id":8,"reader_name":"Tran B","email":"b@x.com"}]}`))
	})

	readers, err := c.SearchReaders(context.Background(), "/api/readers/", "")
	require.NoError(t, err)
	require.Len(t, readers, 2)
	assert.Equal(t, "Nguyen A", readers[0].DisplayName())
	assert.Equal(t, "Tran B", readers[1].DisplayName())

	_, err = c.SearchReaders(context.Background(), "/api/readers/", "nguyễn a")
	require.NoError(t, err)

	require.Len(t, queries, 2)
	assert.Equal(t, "", queries[0])
	assert.Equal(t, "search=nguy%E1%BB%85n+a", queries[1])
}

func TestSearchBooksDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":3,"title":"Dế Mèn","year":1941,"category":"Văn học","remaining":2}]}`))
	})

	books, err := c.SearchBooks(context.Background(), "/api/books/", "dế")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, 3, books[0].ID)
	assert.Equal(t, 2, books[0].Remaining)
}

func TestNon2xxIsStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.BorrowingReaders(context.Background(), "/api/borrowing-readers/")
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusForbidden, se.Code)

	_, err = c.HistoryPage(context.Background(), "/books/borrow/", "all")
	require.True(t, errors.As(err, &se))
}

func TestMalformedPayloadIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>login</html>`))
	})
	_, err := c.BorrowedItems(context.Background(), "/api/reader/7/borrowed-books/")
	require.Error(t, err)
}

func TestHistoryPageSendsFilterAndForwardedHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "overdue", r.URL.Query().Get("filter"))
		assert.Equal(t, "page=2", "page="+r.URL.Query().Get("page"))
		assert.Equal(t, "sessionid=abc", r.Header.Get("Cookie"))
		assert.Empty(t, r.Header.Get("X-Other"))
		w.Write([]byte("<table><tbody><tr><td>1</td></tr></tbody></table>"))
	})

	in := http.Header{}
	in.Set("Cookie", "sessionid=abc")
	in.Set("X-Other", "nope")
	ctx := WithForwarded(context.Background(), in)

	body, err := c.HistoryPage(ctx, "/books/return/?page=2", "overdue")
	require.NoError(t, err)
	assert.Contains(t, string(body), "<td>1</td>")
}

func TestForeignEndpointIsNeverCalled(t *testing.T) {
	var foreignHits int
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignHits++
		w.Write([]byte(`{"data":[{"id":1,"name":"internal-secret"}]}`))
	}))
	t.Cleanup(foreign.Close)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})
	ctx := WithForwarded(context.Background(), http.Header{"Cookie": {"sessionid=abc"}})

	for _, endpoint := range []string{
		foreign.URL + "/internal/admin",
		"//" + strings.TrimPrefix(foreign.URL, "http://") + "/api/readers/",
		"https" + strings.TrimPrefix(c.baseURL.String(), "http") + "/api/readers/",
	} {
		_, err := c.SearchReaders(ctx, endpoint, "")
		assert.ErrorIs(t, err, ErrForeignEndpoint, endpoint)
		assert.ErrorIs(t, c.CheckEndpoint(endpoint), ErrForeignEndpoint, endpoint)
	}
	_, err := c.HistoryPage(ctx, foreign.URL+"/books/borrow/", "all")
	assert.ErrorIs(t, err, ErrForeignEndpoint)
	assert.Zero(t, foreignHits)

	assert.NoError(t, c.CheckEndpoint("/api/readers/"))
	assert.NoError(t, c.CheckEndpoint(c.baseURL.String()+"/api/books/"))
}
