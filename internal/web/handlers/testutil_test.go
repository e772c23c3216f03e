package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "identities.json")
	return store.New(path, store.Options{KeyPolicy: store.ExternalIDKey})
}

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "attendance.csv")
	return ledger.New(path, ledger.FormatCSV, ledger.Options{
		AttributeColumns: []ledger.Column{
			{Key: "external_id", Label: "External ID"},
			{Key: "class", Label: "Class"},
		},
	})
}

func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d: %s", expected, recorder.Code, recorder.Body.String())
	}
}

func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	if ct := recorder.Header().Get("Content-Type"); ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
}
