package httptransport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	appdirectory "court-rotation/internal/app/directory"
	"court-rotation/internal/config"
)

func TestAdminEndpointsAuth(t *testing.T) {
	router := newTestRouter(t, newTestStore(), config.ServerConfig{AdminAPIKey: "admin-key"})

	unauth := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/admin/directory", `{"players":[{"id":"p9","first_name":"Nia","level":3}]}`},
		{http.MethodGet, "/api/debug/vars", ""},
	}
	for _, tc := range unauth {
		req := httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(tc.body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("unauth %s %s expected 401, got %d", tc.method, tc.path, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/debug/vars", nil)
	req.Header.Set("Authorization", "Bearer admin-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("debug vars expected 200, got %d", w.Code)
	}
}

func TestDirectoryUpsertAndList(t *testing.T) {
	router := newTestRouter(t, newTestStore(), config.ServerConfig{AdminAPIKey: "admin-key"})
	adminHeader := http.Header{"X-Admin-Key": []string{"admin-key"}}

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/directory", bytes.NewBufferString(body))
		req.Header = adminHeader.Clone()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := post(`{"players":[{"id":"p9","first_name":"Nia","last_name":"Hart","level":11}]}`)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "invalid_level" {
		t.Fatalf("level 11 = %d", w.Code)
	}
	w = post(`{"players":[]}`)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "invalid_request" {
		t.Fatalf("empty upsert = %d", w.Code)
	}
	w = post(`{"players":[{"id":"p9","first_name":"Nia","last_name":"Hart","level":7}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("upsert = %d body=%s", w.Code, w.Body.String())
	}
	var up appdirectory.UpsertResponse
	if err := json.NewDecoder(w.Body).Decode(&up); err != nil || up.Upserted != 1 {
		t.Fatalf("upsert response = %+v, %v", up, err)
	}

	w = doJSON(t, router, http.MethodGet, "/api/directory", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("directory = %d", w.Code)
	}
	var list appdirectory.PlayersResponse
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode directory: %v", err)
	}
	found := false
	for _, it := range list.Items {
		if it.ID == "p9" {
			found = it.FullName == "Nia Hart" && it.Level == 7
		}
	}
	if !found || len(list.Items) != 7 {
		t.Fatalf("directory items = %+v", list.Items)
	}
}
