package application_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// --- In-memory fakes with failure injection ---

type fakeLedger struct {
	mu          sync.Mutex
	balances    map[string]int64
	getErr      error
	withdrawErr error
	applyErr    error
}

func newFakeLedger(initial map[string]int64) *fakeLedger {
	l := &fakeLedger{balances: make(map[string]int64)}
	for k, v := range initial {
		l.balances[k] = v
	}
	return l
}

func (l *fakeLedger) Get(_ context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.getErr != nil {
		return 0, l.getErr
	}
	return l.balances[userID], nil
}

func (l *fakeLedger) ApplyDelta(_ context.Context, userID string, delta int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.applyErr != nil {
		return 0, l.applyErr
	}
	l.balances[userID] = max(0, l.balances[userID]+delta)
	return l.balances[userID], nil
}

func (l *fakeLedger) Withdraw(_ context.Context, userID string, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.withdrawErr != nil {
		return 0, l.withdrawErr
	}
	if l.balances[userID] < amount {
		return 0, driven.ErrInsufficientBalance
	}
	l.balances[userID] -= amount
	return l.balances[userID], nil
}

func (l *fakeLedger) balance(userID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID]
}

type fakeInventory struct {
	mu         sync.Mutex
	items      []model.InventoryItem
	nextID     int64
	takeErr    error
	restoreErr error
}

func newFakeInventory(lines ...string) *fakeInventory {
	inv := &fakeInventory{}
	_, _ = inv.Add(context.Background(), lines)
	return inv
}

func (f *fakeInventory) TakeOne(_ context.Context) (model.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.takeErr != nil {
		return model.InventoryItem{}, f.takeErr
	}
	if len(f.items) == 0 {
		return model.InventoryItem{}, driven.ErrNotAvailable
	}
	item := f.items[0]
	f.items = f.items[1:]
	return item, nil
}

func (f *fakeInventory) Add(_ context.Context, lines []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, line := range lines {
		f.nextID++
		f.items = append(f.items, model.InventoryItem{ID: f.nextID, Line: line})
	}
	return len(lines), nil
}

func (f *fakeInventory) Restore(_ context.Context, item model.InventoryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restoreErr != nil {
		return f.restoreErr
	}
	f.items = append(f.items, item)
	sort.Slice(f.items, func(i, j int) bool { return f.items[i].ID < f.items[j].ID })
	return nil
}

func (f *fakeInventory) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.takeErr != nil {
		return 0, f.takeErr
	}
	return len(f.items), nil
}

func (f *fakeInventory) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.items))
	for _, it := range f.items {
		out = append(out, it.Line)
	}
	return out
}

type fakeRegistry struct {
	mu        sync.Mutex
	records   map[string]model.Credential
	seq       int
	createErr error
	lookups   int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{records: make(map[string]model.Credential)}
}

func (r *fakeRegistry) Create(_ context.Context, cred model.Credential) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return "", r.createErr
	}
	r.seq++
	id := fmt.Sprintf("%06x", r.seq)
	r.records[id] = cred
	return id, nil
}

func (r *fakeRegistry) Lookup(_ context.Context, id string) (model.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	cred, ok := r.records[id]
	if !ok {
		return model.Credential{}, driven.ErrNotFound
	}
	return cred, nil
}

func (r *fakeRegistry) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *fakeRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	putErr   error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]model.Session)}
}

func (s *fakeSessionStore) Get(_ context.Context, userID string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return model.NewSession(userID), nil
	}
	return sess, nil
}

func (s *fakeSessionStore) Put(_ context.Context, session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.sessions[session.UserID] = session
	return nil
}

func (s *fakeSessionStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

type fakeTopUpStore struct {
	mu       sync.Mutex
	requests map[string]model.TopUpRequest
	order    []string
}

func newFakeTopUpStore() *fakeTopUpStore {
	return &fakeTopUpStore{requests: make(map[string]model.TopUpRequest)}
}

func (s *fakeTopUpStore) Create(_ context.Context, req model.TopUpRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.TransactionID == req.TransactionID {
			return driven.ErrDuplicateReference
		}
	}
	s.requests[req.ID] = req
	s.order = append(s.order, req.ID)
	return nil
}

func (s *fakeTopUpStore) Get(_ context.Context, id string) (model.TopUpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return model.TopUpRequest{}, driven.ErrNotFound
	}
	return req, nil
}

func (s *fakeTopUpStore) ListByStatus(_ context.Context, status model.TopUpStatus) ([]model.TopUpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TopUpRequest
	for _, id := range s.order {
		if req := s.requests[id]; req.Status == status {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *fakeTopUpStore) Resolve(_ context.Context, id string, status model.TopUpStatus, at time.Time) (model.TopUpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return model.TopUpRequest{}, driven.ErrNotFound
	}
	if req.Status != model.TopUpStatusPending {
		return model.TopUpRequest{}, driven.ErrTopUpNotPending
	}
	req.Status = status
	req.ResolvedAt = at
	s.requests[id] = req
	return req, nil
}

func (s *fakeTopUpStore) Reopen(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return driven.ErrNotFound
	}
	req.Status = model.TopUpStatusPending
	req.ResolvedAt = time.Time{}
	s.requests[id] = req
	return nil
}

type fakeChecker struct {
	mu    sync.Mutex
	calls int
	check func(ctx context.Context, req model.VerificationRequest) (model.VerificationResult, error)
}

func (c *fakeChecker) Check(ctx context.Context, req model.VerificationRequest) (model.VerificationResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.check(ctx, req)
}

type fakeCodes struct {
	code string
	err  error
	got  string
}

func (c *fakeCodes) Generate(secret string) (string, error) {
	c.got = secret
	return c.code, c.err
}
