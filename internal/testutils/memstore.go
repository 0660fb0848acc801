package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/store"
)

// Fault names accepted by MemStore.FailOn.
const (
	FaultAxeGet            = "axes.get"
	FaultAxeList           = "axes.list"
	FaultSelectionGet      = "selections.get"
	FaultSelectionList     = "selections.list"
	FaultSelectionUpsert   = "selections.upsert"
	FaultSelectionDelete   = "selections.delete"
	FaultSessionCreate     = "sessions.create"
	FaultSessionGet        = "sessions.get"
	FaultSessionFindActive = "sessions.find_active"
	FaultSessionList       = "sessions.list"
	FaultSessionUpdate     = "sessions.update"
	FaultAttemptCreate     = "attempts.create"
	FaultAttemptGet        = "attempts.get"
	FaultAttemptList       = "attempts.list"
	FaultAttemptTally      = "attempts.tally"
	FaultCompletionList    = "completions.list"
	FaultCompletionUpsert  = "completions.upsert"
	FaultCommit            = "commit"
)

type selectionKey struct {
	userID uuid.UUID
	axeID  string
}

type completionKey struct {
	userID uuid.UUID
	axeID  string
	stage  domain.Stage
}

type memData struct {
	axes        map[string]*domain.Axe
	selections  map[selectionKey]*domain.UserAxeSelection
	sessions    map[uuid.UUID]*domain.GameSession
	attempts    map[domain.AttemptKey]*domain.PhraseAttempt
	completions map[completionKey]domain.StageCompletion
}

func newMemData() *memData {
	return &memData{
		axes:        make(map[string]*domain.Axe),
		selections:  make(map[selectionKey]*domain.UserAxeSelection),
		sessions:    make(map[uuid.UUID]*domain.GameSession),
		attempts:    make(map[domain.AttemptKey]*domain.PhraseAttempt),
		completions: make(map[completionKey]domain.StageCompletion),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.axes {
		c.axes[k] = copyAxe(v)
	}
	for k, v := range d.selections {
		c.selections[k] = copySelection(v)
	}
	for k, v := range d.sessions {
		c.sessions[k] = copySession(v)
	}
	for k, v := range d.attempts {
		c.attempts[k] = copyAttempt(v)
	}
	for k, v := range d.completions {
		c.completions[k] = copyCompletion(v)
	}
	return c
}

type fault struct {
	err       error
	remaining int
}

// MemStore is an in-memory store.UnitOfWork. Transactions run on a private
// copy of the data that replaces the shared state on commit, so a failing
// transaction leaves no partial writes. Transactions are serialized.
type MemStore struct {
	txMu sync.Mutex

	mu     sync.Mutex
	data   *memData
	faults map[string]*fault
	calls  map[string]int
}

var _ store.UnitOfWork = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		data:   newMemData(),
		faults: make(map[string]*fault),
		calls:  make(map[string]int),
	}
}

// FailOn makes the next times calls of op return err. times <= 0 fails forever.
func (m *MemStore) FailOn(op string, err error, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = &fault{err: err, remaining: times}
}

// ClearFaults removes every injected failure.
func (m *MemStore) ClearFaults() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = make(map[string]*fault)
}

// Calls reports how many times op was invoked, including failed calls.
func (m *MemStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MemStore) check(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	f, ok := m.faults[op]
	if !ok {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(m.faults, op)
		}
	}
	return f.err
}

// Stores implements store.UnitOfWork. The returned stores operate directly on
// the shared state.
func (m *MemStore) Stores() store.Stores {
	return m.bind(&view{m: m, shared: true})
}

// InTx implements store.UnitOfWork.
func (m *MemStore) InTx(ctx context.Context, fn store.StoresFn) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.data.clone()
	m.mu.Unlock()

	v := &view{m: m, private: snapshot}
	if err := fn(ctx, m.bind(v)); err != nil {
		return err
	}
	if err := m.check(FaultCommit); err != nil {
		return fmt.Errorf("%w: %w", store.ErrTransactionFailed, err)
	}

	m.mu.Lock()
	m.data = snapshot
	m.mu.Unlock()
	return nil
}

func (m *MemStore) bind(v *view) store.Stores {
	return store.Stores{
		Axes:        &memAxes{v},
		Selections:  &memSelections{v},
		Sessions:    &memSessions{v},
		Attempts:    &memAttempts{v},
		Completions: &memCompletions{v},
	}
}

// view resolves the data a store operates on: the shared state, guarded by
// MemStore.mu, or a transaction's private copy.
type view struct {
	m       *MemStore
	shared  bool
	private *memData
}

func (v *view) with(fn func(d *memData)) {
	if v.shared {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
		fn(v.m.data)
		return
	}
	fn(v.private)
}

type memAxes struct{ v *view }

func (s *memAxes) Upsert(_ context.Context, axe *domain.Axe) error {
	if err := axe.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	s.v.with(func(d *memData) { d.axes[axe.ID] = copyAxe(axe) })
	return nil
}

func (s *memAxes) Get(_ context.Context, id string) (*domain.Axe, error) {
	if err := s.v.m.check(FaultAxeGet); err != nil {
		return nil, err
	}
	var out *domain.Axe
	s.v.with(func(d *memData) {
		if a, ok := d.axes[id]; ok {
			out = copyAxe(a)
		}
	})
	if out == nil {
		return nil, store.ErrAxeNotFound
	}
	return out, nil
}

func (s *memAxes) List(context.Context) ([]*domain.Axe, error) {
	if err := s.v.m.check(FaultAxeList); err != nil {
		return nil, err
	}
	var out []*domain.Axe
	s.v.with(func(d *memData) {
		for _, a := range d.axes {
			out = append(out, copyAxe(a))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memAxes) WithTx(*sql.Tx) store.AxeStore { return s }

type memSelections struct{ v *view }

func (s *memSelections) Get(_ context.Context, userID uuid.UUID, axeID string) (*domain.UserAxeSelection, error) {
	if err := s.v.m.check(FaultSelectionGet); err != nil {
		return nil, err
	}
	var out *domain.UserAxeSelection
	s.v.with(func(d *memData) {
		if sel, ok := d.selections[selectionKey{userID, axeID}]; ok {
			out = copySelection(sel)
		}
	})
	if out == nil {
		return nil, store.ErrSelectionNotFound
	}
	return out, nil
}

func (s *memSelections) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.UserAxeSelection, error) {
	if err := s.v.m.check(FaultSelectionList); err != nil {
		return nil, err
	}
	var out []*domain.UserAxeSelection
	s.v.with(func(d *memData) {
		for k, sel := range d.selections {
			if k.userID == userID {
				out = append(out, copySelection(sel))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s *memSelections) Upsert(_ context.Context, sel *domain.UserAxeSelection) error {
	if err := s.v.m.check(FaultSelectionUpsert); err != nil {
		return err
	}
	if err := sel.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	var err error
	s.v.with(func(d *memData) {
		if _, ok := d.axes[sel.AxeID]; !ok {
			err = fmt.Errorf("%w: unknown axe %q", store.ErrInvalidEntity, sel.AxeID)
			return
		}
		next := copySelection(sel)
		if prev, ok := d.selections[selectionKey{sel.UserID, sel.AxeID}]; ok {
			next.Started = next.Started || prev.Started
			next.Completed = next.Completed || prev.Completed
			if prev.StartedAt != nil {
				next.StartedAt = copyTime(prev.StartedAt)
			}
			if prev.CompletedAt != nil {
				next.CompletedAt = copyTime(prev.CompletedAt)
			}
			next.CreatedAt = prev.CreatedAt
		}
		d.selections[selectionKey{sel.UserID, sel.AxeID}] = next
	})
	return err
}

func (s *memSelections) Delete(_ context.Context, userID uuid.UUID, axeID string) error {
	if err := s.v.m.check(FaultSelectionDelete); err != nil {
		return err
	}
	found := false
	s.v.with(func(d *memData) {
		key := selectionKey{userID, axeID}
		_, found = d.selections[key]
		delete(d.selections, key)
	})
	if !found {
		return store.ErrSelectionNotFound
	}
	return nil
}

func (s *memSelections) WithTx(*sql.Tx) store.SelectionStore { return s }

type memSessions struct{ v *view }

func (s *memSessions) Create(_ context.Context, session *domain.GameSession) error {
	if err := s.v.m.check(FaultSessionCreate); err != nil {
		return err
	}
	if err := session.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	var err error
	s.v.with(func(d *memData) {
		if _, ok := d.sessions[session.ID]; ok {
			err = store.ErrDuplicate
			return
		}
		if session.Active {
			for _, other := range d.sessions {
				if other.Active && other.UserID == session.UserID &&
					other.AxeID == session.AxeID && other.Stage == session.Stage {
					err = store.ErrActiveSessionExists
					return
				}
			}
		}
		d.sessions[session.ID] = copySession(session)
	})
	return err
}

func (s *memSessions) Get(_ context.Context, id uuid.UUID) (*domain.GameSession, error) {
	if err := s.v.m.check(FaultSessionGet); err != nil {
		return nil, err
	}
	var out *domain.GameSession
	s.v.with(func(d *memData) {
		if session, ok := d.sessions[id]; ok {
			out = copySession(session)
		}
	})
	if out == nil {
		return nil, store.ErrSessionNotFound
	}
	return out, nil
}

// GetForUpdate is Get; transactions are already serialized.
func (s *memSessions) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.GameSession, error) {
	return s.Get(ctx, id)
}

func (s *memSessions) FindActive(
	_ context.Context,
	userID uuid.UUID,
	axeID string,
	stage domain.Stage,
) (*domain.GameSession, error) {
	if err := s.v.m.check(FaultSessionFindActive); err != nil {
		return nil, err
	}
	var out *domain.GameSession
	s.v.with(func(d *memData) {
		for _, session := range d.sessions {
			if session.Active && session.UserID == userID && session.AxeID == axeID && session.Stage == stage {
				out = copySession(session)
				return
			}
		}
	})
	if out == nil {
		return nil, store.ErrSessionNotFound
	}
	return out, nil
}

func (s *memSessions) List(_ context.Context, filter store.SessionFilter) ([]*domain.GameSession, error) {
	if err := s.v.m.check(FaultSessionList); err != nil {
		return nil, err
	}
	var out []*domain.GameSession
	s.v.with(func(d *memData) {
		for _, session := range d.sessions {
			if filter.UserID != uuid.Nil && session.UserID != filter.UserID {
				continue
			}
			if filter.AxeID != "" && session.AxeID != filter.AxeID {
				continue
			}
			if filter.Stage != "" && session.Stage != filter.Stage {
				continue
			}
			if filter.Completed && !session.Completed {
				continue
			}
			out = append(out, copySession(session))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *memSessions) Update(_ context.Context, session *domain.GameSession) error {
	if err := s.v.m.check(FaultSessionUpdate); err != nil {
		return err
	}
	if err := session.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	var err error
	s.v.with(func(d *memData) {
		prev, ok := d.sessions[session.ID]
		if !ok {
			err = store.ErrSessionNotFound
			return
		}
		next := copySession(prev)
		next.CurrentIndex = session.CurrentIndex
		next.CorrectCount = session.CorrectCount
		next.TotalAttempts = session.TotalAttempts
		next.Accuracy = session.Accuracy
		next.Active = session.Active
		next.Completed = session.Completed
		next.CompletedAt = copyTime(session.CompletedAt)
		next.LastActivityAt = session.LastActivityAt
		next.Epoch = session.Epoch
		d.sessions[session.ID] = next
	})
	return err
}

func (s *memSessions) WithTx(*sql.Tx) store.SessionStore { return s }

type memAttempts struct{ v *view }

func (s *memAttempts) Create(_ context.Context, attempt *domain.PhraseAttempt) error {
	if err := s.v.m.check(FaultAttemptCreate); err != nil {
		return err
	}
	if err := attempt.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	var err error
	s.v.with(func(d *memData) {
		if _, ok := d.sessions[attempt.SessionID]; !ok {
			err = fmt.Errorf("%w: unknown session", store.ErrInvalidEntity)
			return
		}
		if _, ok := d.attempts[attempt.Key()]; ok {
			err = store.ErrAttemptExists
			return
		}
		d.attempts[attempt.Key()] = copyAttempt(attempt)
	})
	return err
}

func (s *memAttempts) Get(_ context.Context, key domain.AttemptKey) (*domain.PhraseAttempt, error) {
	if err := s.v.m.check(FaultAttemptGet); err != nil {
		return nil, err
	}
	var out *domain.PhraseAttempt
	s.v.with(func(d *memData) {
		if a, ok := d.attempts[key]; ok {
			out = copyAttempt(a)
		}
	})
	if out == nil {
		return nil, store.ErrAttemptNotFound
	}
	return out, nil
}

func (s *memAttempts) ListBySession(_ context.Context, sessionID uuid.UUID) ([]*domain.PhraseAttempt, error) {
	if err := s.v.m.check(FaultAttemptList); err != nil {
		return nil, err
	}
	var out []*domain.PhraseAttempt
	s.v.with(func(d *memData) {
		for _, a := range d.attempts {
			if a.SessionID == sessionID {
				out = append(out, copyAttempt(a))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptOrdinal < out[j].AttemptOrdinal })
	return out, nil
}

func (s *memAttempts) Tally(_ context.Context, sessionID uuid.UUID) (store.Tally, error) {
	if err := s.v.m.check(FaultAttemptTally); err != nil {
		return store.Tally{}, err
	}
	t := store.Tally{LastOrdinal: -1}
	s.v.with(func(d *memData) {
		for _, a := range d.attempts {
			if a.SessionID != sessionID {
				continue
			}
			t.Total++
			if a.IsCorrect {
				t.Correct++
			}
			if a.AttemptOrdinal > t.LastOrdinal {
				t.LastOrdinal = a.AttemptOrdinal
			}
		}
	})
	return t, nil
}

func (s *memAttempts) WithTx(*sql.Tx) store.AttemptStore { return s }

type memCompletions struct{ v *view }

func (s *memCompletions) Get(
	_ context.Context,
	userID uuid.UUID,
	axeID string,
	stage domain.Stage,
) (*domain.StageCompletion, error) {
	var (
		out domain.StageCompletion
		ok  bool
	)
	s.v.with(func(d *memData) {
		out, ok = d.completions[completionKey{userID, axeID, stage}]
		out = copyCompletion(out)
	})
	if !ok {
		return nil, store.ErrCompletionNotFound
	}
	return &out, nil
}

func (s *memCompletions) ListByAxe(_ context.Context, userID uuid.UUID, axeID string) ([]domain.StageCompletion, error) {
	if err := s.v.m.check(FaultCompletionList); err != nil {
		return nil, err
	}
	var out []domain.StageCompletion
	s.v.with(func(d *memData) {
		for k, c := range d.completions {
			if k.userID == userID && k.axeID == axeID {
				out = append(out, copyCompletion(c))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Stage.Index() < out[j].Stage.Index() })
	return out, nil
}

func (s *memCompletions) Upsert(_ context.Context, c *domain.StageCompletion) (bool, error) {
	if err := s.v.m.check(FaultCompletionUpsert); err != nil {
		return false, err
	}
	if !c.Stage.Valid() || c.UserID == uuid.Nil || c.AxeID == "" {
		return false, fmt.Errorf("%w: incomplete stage completion key", store.ErrInvalidEntity)
	}
	promoted := false
	s.v.with(func(d *memData) {
		key := completionKey{c.UserID, c.AxeID, c.Stage}
		prev, ok := d.completions[key]
		if !ok {
			d.completions[key] = copyCompletion(*c)
			promoted = c.Completed
			return
		}
		promoted = c.Completed && !prev.Completed
		prev.Merge(*c)
		d.completions[key] = copyCompletion(prev)
	})
	return promoted, nil
}

func (s *memCompletions) WithTx(*sql.Tx) store.CompletionStore { return s }
