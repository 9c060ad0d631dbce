package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"workbench-backend/internal/cache"
	"workbench-backend/internal/domain"
	"workbench-backend/internal/sequence"
	"workbench-backend/internal/store"
	"workbench-backend/internal/store/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// tickingClock advances by one millisecond on every read so that
// time-keyed items written in a single test never collide.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.WorkItemChangeEvent
	err    error
}

func (p *recordingPublisher) PublishWorkItemChanged(_ context.Context, e domain.WorkItemChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	store     *memory.Store
	clock     *tickingClock
	publisher *recordingPublisher
	clients   *ClientRepository
	elements  *ProductElementRepository
	workItems *WorkItemRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	logger := zaptest.NewLogger(t)
	ids := sequence.NewGenerator(s, logger)
	cfg := NewConfig("workbench-test")
	clock := newTickingClock()
	pub := &recordingPublisher{}
	opts := []Option{WithClock(clock.Now), WithPublisher(pub)}

	return &fixture{
		store:     s,
		clock:     clock,
		publisher: pub,
		clients:   NewClientRepository(s, ids, cache.NewListCache[domain.Client]("clients", time.Minute), cfg, logger, opts...),
		elements:  NewProductElementRepository(s, ids, cfg, logger, opts...),
		workItems: NewWorkItemRepository(s, ids, cfg, logger, opts...),
	}
}

func (f *fixture) addClient(t *testing.T, name string) int64 {
	t.Helper()
	id, err := f.clients.AddClient(context.Background(), name)
	require.NoError(t, err)
	return id
}

func (f *fixture) addElement(t *testing.T, clientID, parentID int64, name string) int64 {
	t.Helper()
	id, err := f.elements.AddProductElement(context.Background(), domain.ProductElement{
		Name: name, ClientID: clientID, ParentID: parentID,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) addWorkItem(t *testing.T, wi domain.WorkItem) int64 {
	t.Helper()
	id, err := f.workItems.AddWorkItem(context.Background(), wi)
	require.NoError(t, err)
	return id
}

func project(clientID int64, name string) domain.WorkItem {
	return domain.WorkItem{Name: name, Type: domain.TypeProject, Status: domain.StatusNew, ClientID: clientID}
}

// spyStore counts every store call and can run a write after a query has
// read its items but before the caller sees them.
type spyStore struct {
	*memory.Store

	mu         sync.Mutex
	calls      int
	afterQuery func()
}

func (s *spyStore) count() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
}

func (s *spyStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *spyStore) GetItem(ctx context.Context, key store.Key, projection ...string) (store.Item, error) {
	s.count()
	return s.Store.GetItem(ctx, key, projection...)
}

func (s *spyStore) PutItem(ctx context.Context, item store.Item, conds ...store.Condition) error {
	s.count()
	return s.Store.PutItem(ctx, item, conds...)
}

func (s *spyStore) UpdateItem(ctx context.Context, key store.Key, upd store.Update) error {
	s.count()
	return s.Store.UpdateItem(ctx, key, upd)
}

func (s *spyStore) DeleteItem(ctx context.Context, key store.Key, conds ...store.Condition) error {
	s.count()
	return s.Store.DeleteItem(ctx, key, conds...)
}

func (s *spyStore) Query(ctx context.Context, in store.QueryInput) ([]store.Item, error) {
	s.count()
	items, err := s.Store.Query(ctx, in)
	s.mu.Lock()
	hook := s.afterQuery
	s.afterQuery = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return items, err
}

func (s *spyStore) BatchGetItems(ctx context.Context, keys []store.Key, projection ...string) ([]store.Item, error) {
	s.count()
	return s.Store.BatchGetItems(ctx, keys, projection...)
}

func (s *spyStore) TransactWrite(ctx context.Context, ops []store.Operation) error {
	s.count()
	return s.Store.TransactWrite(ctx, ops)
}

func (s *spyStore) Increment(ctx context.Context, key store.Key, attr string, delta int64) (int64, error) {
	s.count()
	return s.Store.Increment(ctx, key, attr, delta)
}

func (s *spyStore) Ping(ctx context.Context) error {
	s.count()
	return s.Store.Ping(ctx)
}
