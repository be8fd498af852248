package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"library_desk/internal/db"
	"library_desk/internal/models"
	"library_desk/internal/pageconfig"
	"library_desk/internal/service"
	"library_desk/internal/workflow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Page kinds.
const (
	KindBorrow = "borrow"
	KindReturn = "return"
)

// ErrUnknownView is returned for ids that are neither live nor restorable.
var ErrUnknownView = errors.New("unknown page view")

// ErrInvalidConfig is returned for config attributes a view cannot run with,
// such as endpoints outside the library backend.
var ErrInvalidConfig = errors.New("invalid page config")

// Backend is everything both controllers fetch from the library backend.
type Backend interface {
	workflow.BorrowBackend
	workflow.ReturnBackend
	CheckEndpoint(endpoint string) error
}

// SnapshotStore persists page views across restarts.
type SnapshotStore interface {
	SaveView(ctx context.Context, snap db.Snapshot) error
	LoadView(ctx context.Context, viewID string) (db.Snapshot, error)
	DeleteView(ctx context.Context, viewID string) error
	PurgeViews(ctx context.Context, cutoff time.Time) (int64, error)
}

// View is one open borrow or return page.
type View struct {
	id     string
	kind   string
	attrs  pageconfig.Attrs
	borrow *workflow.Borrow
	ret    *workflow.Return

	mu       sync.Mutex
	closed   bool
	lastSeen time.Time
	// headers of the latest browser request, reused by the background poll
	headers http.Header
}

func (v *View) base() string {
	return "/" + v.kind + "/" + v.id
}

func (v *View) touch(now time.Time, h http.Header) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastSeen = now
	if h != nil {
		v.headers = h.Clone()
	}
}

func (v *View) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *View) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

func (v *View) forwarded(ctx context.Context) context.Context {
	v.mu.Lock()
	h := v.headers
	v.mu.Unlock()
	if h == nil {
		return ctx
	}
	return service.WithForwarded(ctx, h)
}

func (v *View) state() ([]byte, error) {
	if v.kind == KindBorrow {
		return json.Marshal(v.borrow.State())
	}
	return json.Marshal(v.ret.State())
}

// Registry holds the live page views, one controller each.
type Registry struct {
	backend Backend
	store   SnapshotStore
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	views map[string]*View
}

// NewRegistry builds a registry. store may be nil, in which case views do
// not survive a restart.
func NewRegistry(backend Backend, store SnapshotStore, ttl time.Duration) *Registry {
	return &Registry{
		backend: backend,
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		views:   make(map[string]*View),
	}
}

func (r *Registry) build(id, kind string, attrs pageconfig.Attrs) (*View, error) {
	v := &View{id: id, kind: kind, attrs: attrs, lastSeen: r.now()}
	var endpoints []string
	switch kind {
	case KindBorrow:
		cfg := pageconfig.Borrow(attrs)
		endpoints = cfg.Endpoints()
		v.borrow = workflow.NewBorrow(cfg, r.backend, r.now)
	case KindReturn:
		cfg := pageconfig.Return(attrs)
		endpoints = cfg.Endpoints()
		v.ret = workflow.NewReturn(cfg, r.backend, r.now)
	default:
		return nil, fmt.Errorf("unknown page kind %q", kind)
	}
	for _, e := range endpoints {
		if err := r.backend.CheckEndpoint(e); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return v, nil
}

// Create opens a new page view from its config attributes.
func (r *Registry) Create(ctx context.Context, kind string, attrs pageconfig.Attrs) (*View, error) {
	v, err := r.build(uuid.NewString(), kind, attrs)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.views[v.id] = v
	r.mu.Unlock()

	r.Save(ctx, v)
	return v, nil
}

// Get returns a live view or restores it from the snapshot store.
func (r *Registry) Get(ctx context.Context, kind, id string) (*View, error) {
	r.mu.Lock()
	v, ok := r.views[id]
	r.mu.Unlock()
	if ok {
		if v.kind != kind {
			return nil, ErrUnknownView
		}
		return v, nil
	}
	if r.store == nil {
		return nil, ErrUnknownView
	}

	snap, err := r.store.LoadView(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrUnknownView
	}
	if err != nil {
		return nil, err
	}
	if snap.Kind != kind {
		return nil, ErrUnknownView
	}
	if r.ttl > 0 && r.now().Sub(snap.UpdatedAt) > r.ttl {
		return nil, ErrUnknownView
	}

	v, err = r.build(id, kind, snap.Attrs)
	if errors.Is(err, ErrInvalidConfig) {
		log.Printf("views: %s: discard snapshot: %v", id, err)
		return nil, ErrUnknownView
	}
	if err != nil {
		return nil, err
	}
	if err := r.restore(v, snap.State); err != nil {
		log.Printf("views: %s: discard unreadable snapshot: %v", id, err)
	}

	r.mu.Lock()
	// another request may have restored it meanwhile
	if existing, ok := r.views[id]; ok {
		v = existing
	} else {
		r.views[id] = v
	}
	r.mu.Unlock()
	log.Printf("views: restored %s view %s", kind, id)
	return v, nil
}

func (r *Registry) restore(v *View, state []byte) error {
	if v.kind == KindBorrow {
		var st workflow.BorrowState
		if err := json.Unmarshal(state, &st); err != nil {
			return err
		}
		v.borrow.Restore(st)
		return nil
	}
	var st workflow.ReturnState
	if err := json.Unmarshal(state, &st); err != nil {
		return err
	}
	v.ret.Restore(st)
	return nil
}

// Save snapshots a view. Failures are logged; the live view is unaffected.
func (r *Registry) Save(ctx context.Context, v *View) {
	if r.store == nil || v.isClosed() {
		return
	}
	state, err := v.state()
	if err != nil {
		log.Printf("views: %s: encode state: %v", v.id, err)
		return
	}
	snap := db.Snapshot{ViewID: v.id, Kind: v.kind, Attrs: v.attrs, State: state, UpdatedAt: r.now()}
	if err := r.store.SaveView(ctx, snap); err != nil {
		log.Printf("views: %v", err)
	}
}

// Drop closes a view for good.
func (r *Registry) Drop(ctx context.Context, id string) {
	r.mu.Lock()
	if v, ok := r.views[id]; ok {
		v.mu.Lock()
		v.closed = true
		v.mu.Unlock()
		delete(r.views, id)
	}
	r.mu.Unlock()
	if r.store != nil {
		if err := r.store.DeleteView(ctx, id); err != nil {
			log.Printf("views: %v", err)
		}
	}
}

func (r *Registry) borrowViews() []*View {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*View
	for _, v := range r.views {
		if v.kind == KindBorrow {
			out = append(out, v)
		}
	}
	return out
}

// RefreshBorrowing reloads the borrowing list of every live borrow view
// and returns the overdue readers seen, each once. fresh is false when no
// view loaded the list this round; the result then says nothing about who
// is overdue.
func (r *Registry) RefreshBorrowing(ctx context.Context) (overdue []models.BorrowingReader, fresh bool) {
	seen := make(map[int]models.BorrowingReader)
	for _, v := range r.borrowViews() {
		if _, err := v.borrow.LoadBorrowingReaders(v.forwarded(ctx)); err != nil {
			// A browser load issued meanwhile supersedes this one, and this
			// one supersedes a browser load still in flight (that request
			// gets a 204). Either way the view keeps the newer list.
			continue
		}
		if v.borrow.Borrowing().Status == workflow.ListFailed {
			continue
		}
		fresh = true
		for _, rd := range v.borrow.OverdueReaders() {
			seen[rd.ReaderID] = rd
		}
	}

	overdue = make([]models.BorrowingReader, 0, len(seen))
	for _, rd := range seen {
		overdue = append(overdue, rd)
	}
	sort.Slice(overdue, func(i, j int) bool { return overdue[i].ReaderID < overdue[j].ReaderID })
	return overdue, fresh
}

// Sweep drops views idle longer than the TTL and purges old snapshots.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	if r.ttl <= 0 {
		return 0, nil
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	dropped := 0
	for id, v := range r.views {
		if v.idleSince().Before(cutoff) {
			delete(r.views, id)
			dropped++
		}
	}
	r.mu.Unlock()

	if r.store == nil {
		return dropped, nil
	}
	if _, err := r.store.PurgeViews(ctx, cutoff); err != nil {
		return dropped, err
	}
	return dropped, nil
}

// Len is the number of live views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}
