package httptransport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appsession "court-rotation/internal/app/session"
	"court-rotation/internal/config"
	"court-rotation/internal/rotation"
	"court-rotation/internal/store"
	"court-rotation/internal/testutil"

	"github.com/go-chi/chi/v5"
)

var testNow = time.Date(2026, 10, 17, 19, 0, 0, 0, time.UTC)

func newTestStore() *testutil.MemStore {
	ms := testutil.NewMemStore()
	ms.AddSession(store.Session{ID: "sess-1", SessionDate: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)},
		store.CourtWindow{ID: "w1", StartTime: "18:00:00", EndTime: "22:00:00", ActiveCourts: []string{"1", "2"}})
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		ms.AddDirectory(store.DirectoryPlayer{ID: id, FirstName: "First" + id, LastName: "Last", Level: 4})
		ms.AddRoster(store.RosterEntry{ID: "r-" + id, SessionID: "sess-1", PlayerID: id, Attended: true, CreatedAt: testNow.Add(-time.Hour)})
	}
	return ms
}

func newTestRouter(t *testing.T, ms *testutil.MemStore, cfg config.ServerConfig) *chi.Mux {
	t.Helper()
	sessions := appsession.NewService(ms, rotation.Options{
		RefreshInterval:  -1,
		WaitListDebounce: time.Millisecond,
		Location:         time.UTC,
		Now:              func() time.Time { return testNow },
	})
	t.Cleanup(sessions.Close)
	return NewRouter(ms, cfg, sessions)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) rotation.View {
	t.Helper()
	var v rotation.View
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode view: %v body=%s", err, w.Body.String())
	}
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	code, _ := resp["error"].(string)
	return code
}
