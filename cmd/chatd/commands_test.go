package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"success":false,"error":"not found"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestRememberRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/memory": `{"success":true,"id":"mem-123"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/api/memory", map[string]any{
		"content": "the oven broke last tuesday",
		"type":    "faq",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.ID != "mem-123" {
		t.Errorf("id = %q, want mem-123", result.ID)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" {
		t.Errorf("method = %q, want POST", r.Method)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["content"] != "the oven broke last tuesday" {
		t.Errorf("body.content = %v", body["content"])
	}
	if body["type"] != "faq" {
		t.Errorf("body.type = %v", body["type"])
	}
}

func TestRecallRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/memory": `{"success":true,"memories":[{"id":"m1","score":0.91,"content":"opening hours","type":"faq"}]}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/api/memory?query=opening%20hours&limit=5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Memories []struct {
			ID    string  `json:"id"`
			Score float32 `json:"score"`
		} `json:"memories"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(result.Memories) != 1 || result.Memories[0].ID != "m1" {
		t.Fatalf("memories = %+v", result.Memories)
	}

	if got := ts.requests[0].Path; got != "/api/memory?query=opening%20hours&limit=5" {
		t.Errorf("path = %q", got)
	}
}

func TestDecodeJSONErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)

	client := ts.client()
	resp, err := client.get(ctx, "/api/flows/nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	// The envelope's message is surfaced, not the raw JSON.
	if !strings.Contains(err.Error(), "server returned 404: not found") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestFlowsImportMissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"flows", "import"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for missing flow file argument")
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	path := pidFilePath(t.TempDir())
	if filepath.Base(path) != "chatd.pid" {
		t.Errorf("pid file = %q", path)
	}

	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}

	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error reading removed PID file")
	}
}
