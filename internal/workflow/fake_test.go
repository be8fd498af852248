package workflow

import (
	"context"
	"errors"
	"sync"

	"library_desk/internal/models"
)

// fakeBackend serves canned data; a per-call hook can block or fail.
type fakeBackend struct {
	mu sync.Mutex

	readers   []models.Reader
	books     []models.Book
	borrowing []models.BorrowingReader
	items     map[string][]models.BorrowedItem
	history   map[string]string
	err       error

	searches []string
	filters  []string
	hook     func(call string)
}

func (f *fakeBackend) call(name string) error {
	f.mu.Lock()
	hook, err := f.hook, f.err
	f.mu.Unlock()
	if hook != nil {
		hook(name)
	}
	return err
}

func (f *fakeBackend) SearchReaders(_ context.Context, _, search string) ([]models.Reader, error) {
	f.mu.Lock()
	f.searches = append(f.searches, search)
	f.mu.Unlock()
	if err := f.call("readers:" + search); err != nil {
		return nil, err
	}
	return f.readers, nil
}

func (f *fakeBackend) SearchBooks(_ context.Context, _, search string) ([]models.Book, error) {
	if err := f.call("books:" + search); err != nil {
		return nil, err
	}
	return f.books, nil
}

func (f *fakeBackend) BorrowingReaders(context.Context, string) ([]models.BorrowingReader, error) {
	if err := f.call("borrowing"); err != nil {
		return nil, err
	}
	return f.borrowing, nil
}

func (f *fakeBackend) BorrowedItems(_ context.Context, endpoint string) ([]models.BorrowedItem, error) {
	if err := f.call("items:" + endpoint); err != nil {
		return nil, err
	}
	return f.items[endpoint], nil
}

func (f *fakeBackend) HistoryPage(_ context.Context, _, filter string) ([]byte, error) {
	f.mu.Lock()
	f.filters = append(f.filters, filter)
	f.mu.Unlock()
	if err := f.call("history:" + filter); err != nil {
		return nil, err
	}
	page, ok := f.history[filter]
	if !ok {
		return nil, errors.New("no page")
	}
	return []byte(page), nil
}
