package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library_desk/internal/models"
)

type fakeViews struct {
	mu       sync.Mutex
	refresh  int
	sweeps   int
	overdue  []models.BorrowingReader
	stale    bool
	sweepErr error
}

func (f *fakeViews) RefreshBorrowing(context.Context) ([]models.BorrowingReader, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh++
	return f.overdue, !f.stale
}

func (f *fakeViews) Sweep(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return 1, f.sweepErr
}

func (f *fakeViews) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refresh, f.sweeps
}

type fakeNotifier struct {
	got [][]models.BorrowingReader
	err error
}

func (f *fakeNotifier) NotifyOverdue(_ context.Context, readers []models.BorrowingReader) error {
	f.got = append(f.got, readers)
	return f.err
}

func TestTickRefreshesNotifiesAndSweeps(t *testing.T) {
	views := &fakeViews{overdue: []models.BorrowingReader{{ReaderID: 7, IsOverdue: true}}}
	n := &fakeNotifier{}
	p := NewPoller(views, n, time.Minute)

	p.Tick(context.Background())

	refresh, sweeps := views.counts()
	assert.Equal(t, 1, refresh)
	assert.Equal(t, 1, sweeps)
	require.Len(t, n.got, 1)
	assert.Equal(t, 7, n.got[0][0].ReaderID)
}

func TestTickKeepsGoingOnErrors(t *testing.T) {
	views := &fakeViews{sweepErr: errors.New("disk full")}
	n := &fakeNotifier{err: errors.New("telegram down")}
	p := NewPoller(views, n, time.Minute)

	p.Tick(context.Background())
	p.Tick(context.Background())

	refresh, sweeps := views.counts()
	assert.Equal(t, 2, refresh)
	assert.Equal(t, 2, sweeps)
}

func TestTickSkipsDigestWithoutFreshList(t *testing.T) {
	// no borrow page open: an empty result must not reset who was reported
	views := &fakeViews{stale: true}
	n := &fakeNotifier{}
	p := NewPoller(views, n, time.Minute)

	p.Tick(context.Background())

	assert.Empty(t, n.got)
	_, sweeps := views.counts()
	assert.Equal(t, 1, sweeps)
}

func TestTickWithoutNotifier(t *testing.T) {
	views := &fakeViews{}
	NewPoller(views, nil, 0).Tick(context.Background())
	refresh, _ := views.counts()
	assert.Equal(t, 1, refresh)
}

func TestStartStopsWithContext(t *testing.T) {
	views := &fakeViews{}
	ctx, cancel := context.WithCancel(context.Background())
	NewPoller(views, nil, 10*time.Millisecond).Start(ctx)

	require.Eventually(t, func() bool {
		refresh, _ := views.counts()
		return refresh >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(30 * time.Millisecond)
	after, _ := views.counts()
	time.Sleep(50 * time.Millisecond)
	now, _ := views.counts()
	assert.Equal(t, after, now)
}
