package leads

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIntake_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	srv := httptest.NewServer(NewRouter(repo))
	defer srv.Close()

	body := `{"name": "Web Lead", "email": "w@x.com", "notes": "need this asap", "status": "converted"}`
	resp, err := http.Post(srv.URL+"/leads", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var created Lead
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != StatusNew {
		t.Errorf("status = %q, want new regardless of input", created.Status)
	}
	if created.Source != DefaultSource || created.Score != 35 {
		t.Errorf("lead = %+v", created)
	}

	getResp, err := http.Get(srv.URL + "/leads/1")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Errorf("GET status = %d, want 200", getResp.StatusCode)
	}
}

func TestIntake_Errors(t *testing.T) {
	repo := newTestRepo(t)
	srv := httptest.NewServer(NewRouter(repo))
	defer srv.Close()

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/leads", `{"email": "x@y.com"}`, http.StatusBadRequest},
		{http.MethodPost, "/leads", `not json`, http.StatusBadRequest},
		{http.MethodGet, "/leads/abc", "", http.StatusBadRequest},
		{http.MethodGet, "/leads/42", "", http.StatusNotFound},
		{http.MethodGet, "/leads?min_score=x", "", http.StatusBadRequest},
		{http.MethodGet, "/healthz", "", http.StatusOK},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tt.method, tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestIntake_ListEmptyIsArray(t *testing.T) {
	repo := newTestRepo(t)
	rec := httptest.NewRecorder()
	NewRouter(repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads", nil))
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}
