package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
	"github.com/AECHE7/Fanders-sub003/internal/renderer"
	"github.com/AECHE7/Fanders-sub003/internal/repository"
	"github.com/AECHE7/Fanders-sub003/internal/schedule"
	"github.com/AECHE7/Fanders-sub003/internal/storage/filestore"
	"github.com/AECHE7/Fanders-sub003/internal/storage/wal"
)

// testLogger — логгер, отбрасывающий вывод.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- In-memory хранилище записей ---

// memStore — хранилище в памяти. Транзакции сериализуются txMu,
// при ошибке функции или COMMIT состояние документов откатывается.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	docs   map[int64]*model.SLRDocument
	nextID int64
	access []*model.AccessLogEntry
	events []memEvent
	loans  map[int64]*model.Loan
	rules  []*model.GenerationRule

	ruleLookups atomic.Int64

	// Внедрение ошибок.
	createErr   error
	archiveErr  error
	commitErr   error
	downloadErr error
	accessErr   error
	eventErr    error
}

type memEvent struct {
	name      string
	actorID   int64
	subjectID int64
	details   map[string]any
}

func newMemStore() *memStore {
	return &memStore{
		docs:  make(map[int64]*model.SLRDocument),
		loans: make(map[int64]*model.Loan),
	}
}

func (m *memStore) Repositories() repository.Repositories {
	return repository.Repositories{
		Documents: &memDocuments{m: m},
		Rules:     &memRules{m: m},
		Loans:     &memLoans{m: m},
		Events:    &memEvents{m: m},
	}
}

func (m *memStore) InTx(_ context.Context, fn func(r repository.Repositories) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := make(map[int64]model.SLRDocument, len(m.docs))
	for id, d := range m.docs {
		snapshot[id] = *d
	}
	m.mu.Unlock()

	restore := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.docs = make(map[int64]*model.SLRDocument, len(snapshot))
		for id, d := range snapshot {
			m.docs[id] = &d
		}
	}

	if err := fn(m.Repositories()); err != nil {
		restore()
		return err
	}
	if m.commitErr != nil {
		restore()
		return fmt.Errorf("ошибка фиксации транзакции: %w", m.commitErr)
	}
	return nil
}

func (m *memStore) addLoan(l *model.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[l.ID] = l
}

func (m *memStore) addRule(r *model.GenerationRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.rules) + 1)
	m.rules = append(m.rules, r)
}

func (m *memStore) doc(id int64) *model.SLRDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil
	}
	c := *d
	return &c
}

func (m *memStore) activeCount(loanID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.docs {
		if d.LoanID == loanID && d.Status == model.StatusActive {
			n++
		}
	}
	return n
}

func (m *memStore) accessEntries() []*model.AccessLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.access)
}

func (m *memStore) eventList() []memEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

type memDocuments struct{ m *memStore }

func (r *memDocuments) Create(_ context.Context, d *model.SLRDocument) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.createErr != nil {
		return r.m.createErr
	}
	for _, existing := range r.m.docs {
		if existing.LoanID == d.LoanID && existing.Status == model.StatusActive {
			return repository.ErrConflict
		}
	}
	r.m.nextID++
	d.ID = r.m.nextID
	if d.Status == "" {
		d.Status = model.StatusActive
	}
	d.GeneratedAt = time.Now().UTC()
	d.UpdatedAt = d.GeneratedAt
	c := *d
	r.m.docs[d.ID] = &c
	return nil
}

func (r *memDocuments) GetByID(_ context.Context, id int64) (*model.SLRDocument, error) {
	if d := r.m.doc(id); d != nil {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memDocuments) GetByIDForUpdate(ctx context.Context, id int64) (*model.SLRDocument, error) {
	return r.GetByID(ctx, id)
}

func (r *memDocuments) GetByIDForShare(ctx context.Context, id int64) (*model.SLRDocument, error) {
	return r.GetByID(ctx, id)
}

func (r *memDocuments) GetActiveByLoanID(_ context.Context, loanID int64) (*model.SLRDocument, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, d := range r.m.docs {
		if d.LoanID == loanID && d.Status == model.StatusActive {
			c := *d
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memDocuments) GetByFilePath(_ context.Context, path string) (*model.SLRDocument, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, d := range r.m.docs {
		if d.FilePath == path {
			c := *d
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memDocuments) filtered(f repository.SLRListFilters) []*model.SLRDocument {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*model.SLRDocument
	for _, d := range r.m.docs {
		if f.LoanID != nil && d.LoanID != *f.LoanID {
			continue
		}
		if f.Status != nil && string(d.Status) != *f.Status {
			continue
		}
		if f.Trigger != nil && string(d.GenerationTrigger) != *f.Trigger {
			continue
		}
		c := *d
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *model.SLRDocument) int { return int(b.ID - a.ID) })
	return out
}

func (r *memDocuments) List(_ context.Context, f repository.SLRListFilters, limit, offset int) ([]*model.SLRDocument, error) {
	all := r.filtered(f)
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (r *memDocuments) Count(_ context.Context, f repository.SLRListFilters) (int, error) {
	return len(r.filtered(f)), nil
}

func (r *memDocuments) Archive(_ context.Context, id int64, archivePath, reason string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.archiveErr != nil {
		return r.m.archiveErr
	}
	d, ok := r.m.docs[id]
	if !ok || d.Status != model.StatusActive {
		return repository.ErrNotFound
	}
	d.Status = model.StatusArchived
	d.FilePath = archivePath
	d.ReplacementReason = &reason
	return nil
}

func (r *memDocuments) RecordDownload(_ context.Context, id, actorID int64, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.downloadErr != nil {
		return r.m.downloadErr
	}
	d, ok := r.m.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.DownloadCount++
	d.LastDownloadedAt = &at
	d.LastDownloadedBy = &actorID
	return nil
}

func (r *memDocuments) LogAccess(_ context.Context, e *model.AccessLogEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.accessErr != nil {
		return r.m.accessErr
	}
	e.ID = int64(len(r.m.access) + 1)
	r.m.access = append(r.m.access, e)
	return nil
}

func (r *memDocuments) AccessHistory(_ context.Context, documentID int64, limit int) ([]*model.AccessLogEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*model.AccessLogEntry
	for i := len(r.m.access) - 1; i >= 0 && len(out) < limit; i-- {
		if r.m.access[i].DocumentID == documentID {
			out = append(out, r.m.access[i])
		}
	}
	return out, nil
}

type memRules struct{ m *memStore }

func (r *memRules) FindByTrigger(_ context.Context, trigger model.Trigger) (*model.GenerationRule, error) {
	r.m.ruleLookups.Add(1)
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var found *model.GenerationRule
	for _, rule := range r.m.rules {
		if rule.TriggerEvent != trigger {
			continue
		}
		if found == nil || (rule.IsActive && !found.IsActive) || rule.IsActive == found.IsActive {
			found = rule
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	c := *found
	return &c, nil
}

func (r *memRules) List(_ context.Context) ([]*model.GenerationRule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return slices.Clone(r.m.rules), nil
}

type memLoans struct{ m *memStore }

func (r *memLoans) GetWithClient(_ context.Context, id int64) (*model.Loan, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	l, ok := r.m.loans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *l
	return &c, nil
}

func (r *memLoans) LockWithClient(ctx context.Context, id int64) (*model.Loan, error) {
	return r.GetWithClient(ctx, id)
}

type memEvents struct{ m *memStore }

func (r *memEvents) LogEvent(_ context.Context, name string, actorID, subjectID int64, details map[string]any) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.eventErr != nil {
		return r.m.eventErr
	}
	r.m.events = append(r.m.events, memEvent{name: name, actorID: actorID, subjectID: subjectID, details: details})
	return nil
}

func (r *memEvents) ListByEntity(_ context.Context, entityType string, entityID int64, limit int) ([]*model.AuditEvent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*model.AuditEvent
	for i := len(r.m.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.m.events[i]
		if e.subjectID != entityID {
			continue
		}
		out = append(out, &model.AuditEvent{
			ID:         int64(i + 1),
			EntityType: entityType,
			EntityID:   e.subjectID,
			Action:     e.name,
			ActorID:    e.actorID,
			Details:    e.details,
		})
	}
	return out, nil
}

// --- Рендерер ---

// fakeRenderer возвращает детерминированное содержимое или внедрённую ошибку.
type fakeRenderer struct {
	renderFn func(doc renderer.Document) ([]byte, error)
	calls    atomic.Int64
}

func (f *fakeRenderer) Render(_ context.Context, doc renderer.Document) ([]byte, error) {
	f.calls.Add(1)
	if f.renderFn != nil {
		return f.renderFn(doc)
	}
	return fmt.Appendf(nil, "%%PDF-1.4\n%s loan=%d weeks=%d\n%%%%EOF", doc.DocumentNumber, doc.Loan.ID, len(doc.Schedule)), nil
}

// --- Сборка сервиса ---

var fixedNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memStore
	files    *filestore.FileStore
	journal  *wal.WAL
	renderer *fakeRenderer
	rules    *RuleResolver
	svc      *LifecycleService
}

// newFixture создаёт сервис с займом #123 (10 000, approved) и активными
// правилами manual и loan_approval.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	files, err := filestore.New(filepath.Join(t.TempDir(), "slr"))
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	journal, err := wal.New(filepath.Join(t.TempDir(), "wal"), testLogger())
	if err != nil {
		t.Fatalf("wal.New: %v", err)
	}

	store := newMemStore()
	store.addLoan(&model.Loan{
		ID:         123,
		ClientID:   7,
		ClientName: "Juan Dela Cruz",
		Principal:  10000,
		TermWeeks:  17,
		Status:     "approved",
	})
	store.addRule(&model.GenerationRule{RuleName: "Manual", TriggerEvent: model.TriggerManual, IsActive: true, RequireSignatures: true})
	store.addRule(&model.GenerationRule{RuleName: "Approval", TriggerEvent: model.TriggerLoanApproval, IsActive: true, AutoGenerate: true})

	rr := NewRuleResolver(store.Repositories().Rules, 16, time.Minute, testLogger())
	fr := &fakeRenderer{}
	repos := store.Repositories()
	audit := NewAuditLogger(repos.Documents, repos.Events, testLogger())

	svc := NewLifecycleService(store, rr, fr, schedule.NewFlatRateCalculator(), files, journal, audit, testLogger())
	svc.now = func() time.Time { return fixedNow }

	return &fixture{store: store, files: files, journal: journal, renderer: fr, rules: rr, svc: svc}
}

var testRC = model.RequestContext{RemoteAddr: "10.0.0.1", UserAgent: "go-test", RequestID: "req-1"}

// generate выполняет успешную генерацию для займа #123.
func (f *fixture) generate(t *testing.T) *model.SLRDocument {
	t.Helper()
	res := f.svc.Generate(context.Background(), 123, 1, model.TriggerManual, testRC)
	if res.IsFailure() {
		t.Fatalf("Generate() отказ: %s (%s)", res.Message(), res.Code())
	}
	return res.Data()
}

var errInjected = errors.New("injected failure")
