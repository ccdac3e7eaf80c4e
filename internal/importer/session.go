package importer

// session.go holds the server-side state of each import session as it moves
// through the staged flow: upload, mapping, preview, importing, results.
// Each stage transition invalidates the derived state of later stages, so a
// mapping change always forces a fresh preview and a fresh preview is the
// only thing a commit will read.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stockroom-app/stockroom/internal/csvio"
	"github.com/stockroom-app/stockroom/internal/schema"
)

// Stage identifies where a session sits in the import flow.
type Stage string

const (
	StageUpload    Stage = "upload"
	StageMapping   Stage = "mapping"
	StagePreview   Stage = "preview"
	StageImporting Stage = "importing"
	StageResults   Stage = "results"
)

// DefaultSessionTTL is how long an idle session survives before the janitor
// removes it.
const DefaultSessionTTL = 30 * time.Minute

// DefaultImportTimeout bounds a single commit run.
const DefaultImportTimeout = 10 * time.Minute

// ImportSession is the full state of one user's import flow.
type ImportSession struct {
	ID           string
	FileName     string
	CreatedAt    time.Time
	LastActivity time.Time

	Stage    Stage
	Table    *csvio.RawTable
	Profiles []ColumnProfile
	Mappings []ColumnMapping
	Preview  *ImportPreview
	Progress ImportProgress
	Result   *ImportResult

	cancel context.CancelFunc
	done   chan struct{}

	listenerMu sync.Mutex
	listeners  []chan ImportProgress
}

func (s *ImportSession) notifyProgress(p ImportProgress) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	for _, ch := range s.listeners {
		select {
		case ch <- p:
		default:
			// Slow listeners miss intermediate updates, never block the commit.
		}
	}
}

func (s *ImportSession) closeListeners() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	for _, ch := range s.listeners {
		close(ch)
	}
	s.listeners = nil
}

// ManagerConfig tunes the session manager. Zero values fall back to the
// package defaults.
type ManagerConfig struct {
	MaxConcurrent  int
	MaxWait        time.Duration
	MaxFileSize    int64
	SessionTTL     time.Duration
	ImportTimeout  time.Duration
	PerRowEstimate time.Duration
}

// SessionManager owns all live import sessions and drives the pipeline
// stages against the external sinks. All methods are safe for concurrent
// use.
type SessionManager struct {
	records RecordSink
	lookup  ReferenceLookup
	audit   AuditSink
	limiter *CommitLimiter

	maxFileSize    int64
	sessionTTL     time.Duration
	importTimeout  time.Duration
	perRowEstimate time.Duration

	mu       sync.RWMutex
	sessions map[string]*ImportSession
}

// NewSessionManager wires the pipeline to its collaborators.
func NewSessionManager(records RecordSink, lookup ReferenceLookup, audit AuditSink, cfg ManagerConfig) *SessionManager {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = DefaultImportTimeout
	}
	if cfg.PerRowEstimate <= 0 {
		cfg.PerRowEstimate = DefaultPerRowEstimate
	}

	return &SessionManager{
		records:        records,
		lookup:         lookup,
		audit:          audit,
		limiter:        NewCommitLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		maxFileSize:    cfg.MaxFileSize,
		sessionTTL:     cfg.SessionTTL,
		importTimeout:  cfg.ImportTimeout,
		perRowEstimate: cfg.PerRowEstimate,
	}
}

// Limiter exposes the commit limiter for shutdown draining and status.
func (m *SessionManager) Limiter() *CommitLimiter {
	return m.limiter
}

// Create parses the uploaded file, profiles its columns, and proposes an
// initial mapping. The session lands in the mapping stage.
func (m *SessionManager) Create(fileName string, data []byte) (*ImportSession, error) {
	table, err := csvio.ParseTable(fileName, data, m.maxFileSize)
	if err != nil {
		return nil, err
	}

	session := &ImportSession{
		ID:           uuid.New().String(),
		FileName:     fileName,
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
		Stage:        StageMapping,
		Table:        table,
		Profiles:     ProfileTable(table),
	}
	session.Mappings = BuildMappings(session.Profiles)

	m.mu.Lock()
	if m.sessions == nil {
		m.sessions = make(map[string]*ImportSession)
	}
	m.sessions[session.ID] = session
	m.mu.Unlock()

	slog.Info("import session created",
		"session_id", session.ID,
		"file", fileName,
		"rows", table.RowCount(),
		"columns", len(table.Headers),
	)

	return session, nil
}

// Get returns the session by ID.
func (m *SessionManager) Get(id string) (*ImportSession, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}

	m.touch(session)
	return session, nil
}

func (m *SessionManager) touch(s *ImportSession) {
	m.mu.Lock()
	s.LastActivity = time.Now()
	m.mu.Unlock()
}

// SetMapping reassigns the column at columnIndex to a target field,
// unmapping any other column that currently claims the same field.
// mapped=false parks the column on unmapped notes instead. Any existing
// preview is discarded and the session returns to the mapping stage.
func (m *SessionManager) SetMapping(id string, columnIndex int, field schema.Field, mapped bool) ([]ColumnMapping, error) {
	session, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session.Stage == StageImporting {
		return nil, fmt.Errorf("cannot change mapping while import is running")
	}
	if columnIndex < 0 || columnIndex >= len(session.Mappings) {
		return nil, fmt.Errorf("column index %d out of range", columnIndex)
	}
	if mapped {
		if _, ok := schema.Lookup(field); !ok {
			return nil, fmt.Errorf("unknown inventory field: %s", field)
		}
	}

	session.Mappings = Reassign(session.Mappings, columnIndex, field, mapped)
	session.Preview = nil
	session.Result = nil
	session.Stage = StageMapping
	return session.Mappings, nil
}

// BuildPreview validates the current mapping and, if it passes, runs the
// transformer over every row to produce the preview. Validation failures
// block the preview and are returned as issue strings.
func (m *SessionManager) BuildPreview(ctx context.Context, id string) (*ImportPreview, []string, error) {
	session, err := m.Get(id)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	if session.Stage == StageImporting {
		m.mu.Unlock()
		return nil, nil, fmt.Errorf("import already running for session %s", id)
	}
	table := session.Table
	mappings := make([]ColumnMapping, len(session.Mappings))
	copy(mappings, session.Mappings)
	m.mu.Unlock()

	if issues := ValidateMappings(mappings); len(issues) > 0 {
		return nil, issues, nil
	}

	tr := Transform(ctx, table, mappings, m.lookup)
	preview := BuildPreview(tr, mappings, table.RowCount(), m.perRowEstimate)

	m.mu.Lock()
	session.Preview = preview
	session.Stage = StagePreview
	m.mu.Unlock()

	return preview, nil, nil
}

// StartImport begins an asynchronous commit of the session's current
// preview. Returns immediately once a commit slot is acquired; use
// Progress, SubscribeProgress, or Result to follow the run.
//
// Returns ErrTooManyImports if the concurrent commit limit is reached and
// no slot frees up within the configured wait.
func (m *SessionManager) StartImport(ctx context.Context, id string) error {
	session, err := m.Get(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if session.Stage == StageImporting {
		m.mu.Unlock()
		return fmt.Errorf("import already running for session %s", id)
	}
	preview := session.Preview
	m.mu.Unlock()

	if preview == nil {
		return fmt.Errorf("no preview built for session %s", id)
	}
	if len(preview.MappedData) == 0 {
		return fmt.Errorf("no valid rows to import")
	}

	if err := m.limiter.Acquire(ctx); err != nil {
		return err
	}

	// The commit outlives the initiating request, so it runs on its own
	// context bounded by the import timeout.
	importCtx, cancel := context.WithTimeout(context.Background(), m.importTimeout)

	m.mu.Lock()
	session.Stage = StageImporting
	session.Progress = ImportProgress{TotalRows: len(preview.MappedData)}
	session.Result = nil
	session.cancel = cancel
	session.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer m.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic during import",
					"session_id", session.ID,
					"panic", r,
				)
				m.mu.Lock()
				session.Progress.IsError = true
				session.Progress.IsComplete = true
				session.Progress.Errors = append(session.Progress.Errors, fmt.Sprintf("internal error: %v", r))
				session.Result = &ImportResult{Errors: []CellIssue{{
					Message:  fmt.Sprintf("internal error: %v", r),
					Severity: SeverityError,
				}}}
				session.Stage = StageResults
				m.mu.Unlock()
				session.closeListeners()
				close(session.done)
			}
		}()

		committer := &Committer{Records: m.records, Audit: m.audit}
		result := committer.Run(importCtx, session.ID, session.FileName, preview, session.Table, func(p ImportProgress) {
			m.mu.Lock()
			session.Progress = p
			m.mu.Unlock()
			session.notifyProgress(p)
		})

		m.mu.Lock()
		session.Result = result
		session.Stage = StageResults
		session.LastActivity = time.Now()
		m.mu.Unlock()

		slog.Info("import finished",
			"session_id", session.ID,
			"imported", result.ImportedCount,
			"failed", result.ErrorCount,
			"cancelled", result.Cancelled,
			"duration_ms", result.Duration.Milliseconds(),
		)

		session.closeListeners()
		close(session.done)
	}()

	return nil
}

// Cancel stops a running import. The commit finishes its current row and
// keeps everything imported so far.
func (m *SessionManager) Cancel(id string) error {
	session, err := m.Get(id)
	if err != nil {
		return err
	}

	m.mu.RLock()
	stage := session.Stage
	cancel := session.cancel
	m.mu.RUnlock()

	if stage != StageImporting || cancel == nil {
		return fmt.Errorf("no import running for session %s", id)
	}

	cancel()
	return nil
}

// Progress returns the current commit progress without blocking.
func (m *SessionManager) Progress(id string) (ImportProgress, error) {
	session, err := m.Get(id)
	if err != nil {
		return ImportProgress{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return session.Progress, nil
}

// SubscribeProgress returns a channel receiving progress updates for a
// running import. The channel closes when the commit finishes.
func (m *SessionManager) SubscribeProgress(id string) (<-chan ImportProgress, error) {
	session, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, 10)

	session.listenerMu.Lock()
	session.listeners = append(session.listeners, ch)
	session.listenerMu.Unlock()

	m.mu.RLock()
	current := session.Progress
	m.mu.RUnlock()
	select {
	case ch <- current:
	default:
	}

	return ch, nil
}

// Result returns the import result, blocking until a running commit
// completes. Errors if no import was started.
func (m *SessionManager) Result(id string) (*ImportResult, error) {
	session, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	done := session.done
	m.mu.RUnlock()

	if done == nil {
		return nil, fmt.Errorf("no import started for session %s", id)
	}
	<-done

	m.mu.RLock()
	defer m.mu.RUnlock()
	return session.Result, nil
}

// Reset returns the session to a fresh state so the user can start over
// with a new file. A running import is cancelled first.
func (m *SessionManager) Reset(id string) error {
	session, err := m.Get(id)
	if err != nil {
		return err
	}

	m.mu.RLock()
	cancel := session.cancel
	done := session.done
	running := session.Stage == StageImporting
	m.mu.RUnlock()

	if running && cancel != nil {
		cancel()
		<-done
	}

	m.mu.Lock()
	session.Stage = StageUpload
	session.Table = nil
	session.Profiles = nil
	session.Mappings = nil
	session.Preview = nil
	session.Progress = ImportProgress{}
	session.Result = nil
	session.cancel = nil
	session.done = nil
	session.LastActivity = time.Now()
	m.mu.Unlock()

	return nil
}

// Remove deletes the session outright. A running import is cancelled.
func (m *SessionManager) Remove(id string) error {
	if err := m.Reset(id); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// SessionCount returns the number of live sessions.
func (m *SessionManager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartJanitor runs a background loop that removes sessions idle past the
// TTL. Sessions with a commit in flight are never reaped. The loop stops
// when the context is cancelled.
func (m *SessionManager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	slog.Info("session janitor started", "interval", interval, "ttl", m.sessionTTL)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

func (m *SessionManager) reapIdle() {
	cutoff := time.Now().Add(-m.sessionTTL)

	m.mu.Lock()
	var reaped []string
	for id, s := range m.sessions {
		if s.Stage == StageImporting {
			continue
		}
		if s.LastActivity.Before(cutoff) {
			delete(m.sessions, id)
			reaped = append(reaped, id)
		}
	}
	m.mu.Unlock()

	for _, id := range reaped {
		slog.Info("expired import session removed", "session_id", id)
	}
}
