package workers

import (
	"context"
	"log"
	"time"

	"library_desk/internal/models"
	"library_desk/internal/notify"
)

// Views is the part of the page-view registry the poller drives.
type Views interface {
	RefreshBorrowing(ctx context.Context) ([]models.BorrowingReader, bool)
	Sweep(ctx context.Context) (int, error)
}

// Poller refreshes the borrowing lists of open borrow pages on a fixed
// interval and drops page views nobody has touched for a while.
type Poller struct {
	views    Views
	notifier notify.Notifier
	interval time.Duration
}

// NewPoller builds a poller. notifier may be nil.
func NewPoller(views Views, notifier notify.Notifier, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{views: views, notifier: notifier, interval: interval}
}

// Start runs Tick every interval until ctx is done. It does not block.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Tick(ctx)
			}
		}
	}()
}

// Tick does one round: refresh, notify, sweep. The digest only runs on a
// fresh borrowing list; with no borrow page open nothing is known.
func (p *Poller) Tick(ctx context.Context) {
	overdue, fresh := p.views.RefreshBorrowing(ctx)

	if p.notifier != nil && fresh {
		if err := p.notifier.NotifyOverdue(ctx, overdue); err != nil {
			log.Printf("worker: overdue digest: %v", err)
		}
	}

	dropped, err := p.views.Sweep(ctx)
	if err != nil {
		log.Printf("worker: sweep: %v", err)
	}
	if dropped > 0 {
		log.Printf("worker: dropped %d idle page views", dropped)
	}
}
