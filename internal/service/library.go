package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"library_desk/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxHistoryPage caps how much of a history page is buffered.
const maxHistoryPage = 8 << 20

// ErrForeignEndpoint is returned for endpoints that resolve outside the
// backend origin. Forwarded session headers never leave that origin.
var ErrForeignEndpoint = errors.New("endpoint is outside the backend origin")

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d for %s", e.Code, e.URL)
}

// LibraryClient talks to the collaborator endpoints of the library backend.
// Endpoints are passed per call because every page view carries its own
// config; relative ones resolve against the backend base URL.
type LibraryClient struct {
	httpClient *http.Client
	baseURL    *url.URL
}

func NewLibraryClient(client *http.Client, baseURL string) (*LibraryClient, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	return &LibraryClient{
		httpClient: client,
		baseURL:    base,
	}, nil
}

type dataEnvelope[T any] struct {
	Data []T `json:"data"`
}

// SearchReaders calls the reader search endpoint; search is sent only when non-empty.
func (c *LibraryClient) SearchReaders(ctx context.Context, endpoint, search string) ([]models.Reader, error) {
	return getData[models.Reader](ctx, c, endpoint, searchQuery(search))
}

// SearchBooks calls the book search endpoint; search is sent only when non-empty.
func (c *LibraryClient) SearchBooks(ctx context.Context, endpoint, search string) ([]models.Book, error) {
	return getData[models.Book](ctx, c, endpoint, searchQuery(search))
}

// BorrowingReaders lists readers currently holding books.
func (c *LibraryClient) BorrowingReaders(ctx context.Context, endpoint string) ([]models.BorrowingReader, error) {
	return getData[models.BorrowingReader](ctx, c, endpoint, nil)
}

// BorrowedItems lists the unreturned copies of one reader. endpoint already
// carries the reader id.
func (c *LibraryClient) BorrowedItems(ctx context.Context, endpoint string) ([]models.BorrowedItem, error) {
	return getData[models.BorrowedItem](ctx, c, endpoint, nil)
}

// HistoryPage fetches a full server-rendered history page for filter.
func (c *LibraryClient) HistoryPage(ctx context.Context, endpoint, filter string) ([]byte, error) {
	q := url.Values{}
	q.Set("filter", filter)

	resp, err := c.get(ctx, endpoint, q, "text/html")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, maxHistoryPage)); err != nil {
		return nil, fmt.Errorf("read history page: %w", err)
	}
	return buf.Bytes(), nil
}

func getData[T any](ctx context.Context, c *LibraryClient, endpoint string, query url.Values) ([]T, error) {
	resp, err := c.get(ctx, endpoint, query, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload dataEnvelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return payload.Data, nil
}

func (c *LibraryClient) get(ctx context.Context, endpoint string, query url.Values, accept string) (*http.Response, error) {
	target, err := c.resolve(endpoint, query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	for k, vals := range Forwarded(ctx) {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: endpoint}
	}
	return resp, nil
}

// resolve joins endpoint onto the base URL and merges query into any query
// the endpoint already carries.
func (c *LibraryClient) resolve(endpoint string, query url.Values) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", fmt.Errorf("endpoint %q: %w", endpoint, err)
	}
	u := c.baseURL.ResolveReference(ref)
	if !strings.EqualFold(u.Scheme, c.baseURL.Scheme) || !strings.EqualFold(u.Host, c.baseURL.Host) {
		return "", fmt.Errorf("%w: %q", ErrForeignEndpoint, endpoint)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vals := range query {
			for _, v := range vals {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// CheckEndpoint reports whether endpoint can be called: it must parse and
// resolve onto the backend origin.
func (c *LibraryClient) CheckEndpoint(endpoint string) error {
	_, err := c.resolve(endpoint, nil)
	return err
}

func searchQuery(search string) url.Values {
	if search == "" {
		return nil
	}
	return url.Values{"search": []string{search}}
}
