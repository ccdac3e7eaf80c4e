package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stockroom-app/stockroom/internal/schema"
)

func newTestManager(sink RecordSink, audit AuditSink) *SessionManager {
	return NewSessionManager(sink, nil, audit, ManagerConfig{
		MaxConcurrent:  2,
		MaxWait:        time.Second,
		PerRowEstimate: time.Millisecond,
	})
}

func uploadCSV(t *testing.T, m *SessionManager, data string) *ImportSession {
	t.Helper()
	session, err := m.Create("items.csv", []byte(data))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return session
}

const twoRowCSV = "name,sku,quantity\nWidget,W-1,10\nGadget,G-1,5\n"

// ============================================================================
// Session Lifecycle Tests
// ============================================================================

func TestSessionManager_Create(t *testing.T) {
	m := newTestManager(&stubSink{}, nil)
	session := uploadCSV(t, m, twoRowCSV)

	if session.ID == "" {
		t.Error("session should have an ID")
	}
	if session.Stage != StageMapping {
		t.Errorf("Stage = %q, want %q", session.Stage, StageMapping)
	}
	if session.Table.RowCount() != 2 {
		t.Errorf("RowCount = %d, want 2", session.Table.RowCount())
	}
	if len(session.Profiles) != 3 {
		t.Errorf("len(Profiles) = %d, want 3", len(session.Profiles))
	}

	m2 := mappingFor(t, session.Mappings, "name")
	if !m2.IsMapped || m2.InventoryField != schema.FieldName {
		t.Errorf("name column not auto-mapped: %+v", m2)
	}
	if m.SessionCount() != 1 {
		t.Errorf("SessionCount = %d, want 1", m.SessionCount())
	}
}

func TestSessionManager_CreateRejectsBadFile(t *testing.T) {
	m := newTestManager(&stubSink{}, nil)

	if _, err := m.Create("empty.csv", nil); err == nil {
		t.Error("empty file should fail")
	}
	if m.SessionCount() != 0 {
		t.Errorf("failed create should not register a session")
	}
}

func TestSessionManager_CreateHonorsMaxFileSize(t *testing.T) {
	// The configured limit applies at parse time, not just at the HTTP
	// upload boundary.
	m := NewSessionManager(&stubSink{}, nil, nil, ManagerConfig{MaxFileSize: 10})

	_, err := m.Create("items.csv", []byte(twoRowCSV))
	if err == nil {
		t.Fatal("oversized file should fail")
	}
	if !strings.Contains(err.Error(), "file too large") {
		t.Errorf("err = %v, want file-too-large", err)
	}
}

func TestSessionManager_GetMissing(t *testing.T) {
	m := newTestManager(&stubSink{}, nil)

	if _, err := m.Get("nope"); err == nil {
		t.Error("expected session not found error")
	}
}

func TestSessionManager_SetMappingInvalidatesPreview(t *testing.T) {
	m := newTestManager(&stubSink{}, nil)
	session := uploadCSV(t, m, twoRowCSV)

	if _, issues, err := m.BuildPreview(context.Background(), session.ID); err != nil || len(issues) > 0 {
		t.Fatalf("BuildPreview failed: err=%v issues=%v", err, issues)
	}
	if session.Preview == nil || session.Stage != StagePreview {
		t.Fatal("preview should be set")
	}

	if _, err := m.SetMapping(session.ID, 2, schema.FieldReorderLevel, true); err != nil {
		t.Fatalf("SetMapping failed: %v", err)
	}

	if session.Preview != nil {
		t.Error("mapping change should discard the preview")
	}
	if session.Stage != StageMapping {
		t.Errorf("Stage = %q, want %q", session.Stage, StageMapping)
	}
}

func TestSessionManager_SetMappingValidation(t *testing.T) {
	m := newTestManager(&stubSink{}, nil)
	session := uploadCSV(t, m, twoRowCSV)

	if _, err := m.SetMapping(session.ID, 99, schema.FieldName, true); err == nil {
		t.Error("out-of-range column index should fail")
	}
	if _, err := m.SetMapping(session.ID, 0, "bogus_field", true); err == nil {
		t.Error("unknown field should fail")
	}
}

func TestSessionManager_BuildPreviewBlocksInvalidMapping(t *testing.T) {
	m := newTestManager(&stubSink{}, nil)
	// Only a name column: sku cannot be mapped, so the preview is blocked.
	session := uploadCSV(t, m, "name\nWidget\n")

	preview, issues, err := m.BuildPreview(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("BuildPreview returned error: %v", err)
	}
	if preview != nil {
		t.Error("invalid mapping must not produce a preview")
	}
	if len(issues) == 0 {
		t.Error("expected validation issues")
	}
	if session.Stage != StageMapping {
		t.Errorf("Stage = %q, want %q", session.Stage, StageMapping)
	}
}

// ============================================================================
// Import Execution Tests
// ============================================================================

func TestSessionManager_ImportLifecycle(t *testing.T) {
	sink := &stubSink{}
	audit := &stubAudit{}
	m := newTestManager(sink, audit)
	session := uploadCSV(t, m, twoRowCSV)

	if _, issues, err := m.BuildPreview(context.Background(), session.ID); err != nil || len(issues) > 0 {
		t.Fatalf("BuildPreview failed: err=%v issues=%v", err, issues)
	}
	if err := m.StartImport(context.Background(), session.ID); err != nil {
		t.Fatalf("StartImport failed: %v", err)
	}

	result, err := m.Result(session.ID)
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}

	if !result.Success || result.ImportedCount != 2 {
		t.Errorf("result = success=%v imported=%d, want true/2", result.Success, result.ImportedCount)
	}
	if session.Stage != StageResults {
		t.Errorf("Stage = %q, want %q", session.Stage, StageResults)
	}
	if len(sink.records) != 2 {
		t.Errorf("sink received %d records, want 2", len(sink.records))
	}
	if len(audit.entries) != 1 {
		t.Errorf("audit received %d entries, want 1", len(audit.entries))
	}

	progress, err := m.Progress(session.ID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if !progress.IsComplete || progress.Percentage != 100 {
		t.Errorf("progress = %+v, want complete at 100", progress)
	}
}

func TestSessionManager_StartImportRequiresPreview(t *testing.T) {
	m := newTestManager(&stubSink{}, nil)
	session := uploadCSV(t, m, twoRowCSV)

	if err := m.StartImport(context.Background(), session.ID); err == nil {
		t.Error("StartImport without a preview should fail")
	}
}

func TestSessionManager_StartImportNoValidRows(t *testing.T) {
	m := newTestManager(&stubSink{}, nil)
	// Both rows are missing the required sku value.
	session := uploadCSV(t, m, "name,sku\nWidget,\nGadget,\n")

	if _, issues, err := m.BuildPreview(context.Background(), session.ID); err != nil || len(issues) > 0 {
		t.Fatalf("BuildPreview failed: err=%v issues=%v", err, issues)
	}
	if err := m.StartImport(context.Background(), session.ID); err == nil {
		t.Error("StartImport with zero valid rows should fail")
	}
}

func TestSessionManager_SubscribeProgress(t *testing.T) {
	m := newTestManager(&stubSink{}, nil)
	session := uploadCSV(t, m, twoRowCSV)

	if _, issues, err := m.BuildPreview(context.Background(), session.ID); err != nil || len(issues) > 0 {
		t.Fatalf("BuildPreview failed: err=%v issues=%v", err, issues)
	}

	ch, err := m.SubscribeProgress(session.ID)
	if err != nil {
		t.Fatalf("SubscribeProgress failed: %v", err)
	}
	if err := m.StartImport(context.Background(), session.ID); err != nil {
		t.Fatalf("StartImport failed: %v", err)
	}

	var last ImportProgress
	count := 0
	for p := range ch {
		last = p
		count++
	}

	if count == 0 {
		t.Fatal("expected at least one progress update before the channel closed")
	}
	if !last.IsComplete {
		t.Errorf("last update = %+v, want IsComplete", last)
	}
}

func TestSessionManager_CancelWithoutImport(t *testing.T) {
	m := newTestManager(&stubSink{}, nil)
	session := uploadCSV(t, m, twoRowCSV)

	if err := m.Cancel(session.ID); err == nil {
		t.Error("Cancel with no running import should fail")
	}
}

func TestSessionManager_TooManyImports(t *testing.T) {
	gate := make(chan struct{})
	sink := &stubSink{afterRow: func(int) { <-gate }}
	m := NewSessionManager(sink, nil, nil, ManagerConfig{
		MaxConcurrent: 1,
		MaxWait:       50 * time.Millisecond,
	})

	first := uploadCSV(t, m, twoRowCSV)
	second := uploadCSV(t, m, twoRowCSV)
	for _, s := range []*ImportSession{first, second} {
		if _, issues, err := m.BuildPreview(context.Background(), s.ID); err != nil || len(issues) > 0 {
			t.Fatalf("BuildPreview failed: err=%v issues=%v", err, issues)
		}
	}

	if err := m.StartImport(context.Background(), first.ID); err != nil {
		t.Fatalf("first StartImport failed: %v", err)
	}
	if err := m.StartImport(context.Background(), second.ID); err != ErrTooManyImports {
		t.Errorf("second StartImport = %v, want ErrTooManyImports", err)
	}

	close(gate)
	if _, err := m.Result(first.ID); err != nil {
		t.Fatalf("Result failed: %v", err)
	}
}

// ============================================================================
// Reset and Expiry Tests
// ============================================================================

func TestSessionManager_Reset(t *testing.T) {
	m := newTestManager(&stubSink{}, nil)
	session := uploadCSV(t, m, twoRowCSV)

	if _, issues, err := m.BuildPreview(context.Background(), session.ID); err != nil || len(issues) > 0 {
		t.Fatalf("BuildPreview failed: err=%v issues=%v", err, issues)
	}
	if err := m.StartImport(context.Background(), session.ID); err != nil {
		t.Fatalf("StartImport failed: %v", err)
	}
	if _, err := m.Result(session.ID); err != nil {
		t.Fatalf("Result failed: %v", err)
	}

	if err := m.Reset(session.ID); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if session.Stage != StageUpload {
		t.Errorf("Stage = %q, want %q", session.Stage, StageUpload)
	}
	if session.Table != nil || session.Preview != nil || session.Result != nil {
		t.Error("Reset should clear all derived state")
	}
	if m.SessionCount() != 1 {
		t.Errorf("Reset should keep the session registered, count = %d", m.SessionCount())
	}
}

func TestSessionManager_Remove(t *testing.T) {
	m := newTestManager(&stubSink{}, nil)
	session := uploadCSV(t, m, twoRowCSV)

	if err := m.Remove(session.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if m.SessionCount() != 0 {
		t.Errorf("SessionCount = %d, want 0", m.SessionCount())
	}
	if _, err := m.Get(session.ID); err == nil {
		t.Error("removed session should not be retrievable")
	}
}

func TestSessionManager_ResultWithoutImport(t *testing.T) {
	m := newTestManager(&stubSink{}, nil)
	session := uploadCSV(t, m, twoRowCSV)

	if _, err := m.Result(session.ID); err == nil {
		t.Error("Result before any import should fail")
	}
}
