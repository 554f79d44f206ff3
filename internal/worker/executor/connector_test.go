package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeDispatcher struct {
	resp *ExecuteResponse
	err  error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, nodeType string, req *ExecuteRequest) (*ExecuteResponse, error) {
	return d.resp, d.err
}

func TestConnectorExecutorFailsClosedWithNoDispatcher(t *testing.T) {
	t.Parallel()

	exec := NewConnectorExecutor("http", nil)
	resp, err := exec.Execute(context.Background(), &ExecuteRequest{NodeType: "http"})
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected a non-retryable error with no dispatcher bound")
	}
	if resp.Error.Type != ErrorTypeNonRetryable {
		t.Fatalf("error type = %v, want non-retryable", resp.Error.Type)
	}
}

func TestConnectorExecutorForwardsToDispatcher(t *testing.T) {
	t.Parallel()

	want := &ExecuteResponse{Output: json.RawMessage(`{"status":"ok"}`)}
	exec := NewConnectorExecutor("slack", &fakeDispatcher{resp: want})

	resp, err := exec.Execute(context.Background(), &ExecuteRequest{NodeType: "slack"})
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %+v", resp.Error)
	}
	if string(resp.Output) != string(want.Output) {
		t.Fatalf("Output = %s, want %s", resp.Output, want.Output)
	}
}

func TestConnectorExecutorSetDispatcherRebinds(t *testing.T) {
	t.Parallel()

	exec := NewConnectorExecutor("email", nil)
	if resp, _ := exec.Execute(context.Background(), &ExecuteRequest{NodeType: "email"}); resp.Error == nil {
		t.Fatal("expected error before dispatcher is bound")
	}

	exec.SetDispatcher(&fakeDispatcher{resp: &ExecuteResponse{}})
	if resp, _ := exec.Execute(context.Background(), &ExecuteRequest{NodeType: "email"}); resp.Error != nil {
		t.Fatalf("unexpected error after binding dispatcher: %+v", resp.Error)
	}
}

func TestHTTPDispatcherPostsToConnectorRoute(t *testing.T) {
	t.Parallel()

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":{"sent":true}}`))
	}))
	defer server.Close()

	dispatcher := NewHTTPDispatcher(server.URL, time.Second)
	resp, err := dispatcher.Dispatch(context.Background(), "webhook", &ExecuteRequest{NodeType: "webhook"})
	if err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}
	if gotPath != "/nodes/webhook" {
		t.Fatalf("path = %s, want /nodes/webhook", gotPath)
	}
	if resp.Output == nil {
		t.Fatal("expected output in response")
	}
}

func TestHTTPDispatcherReturnsErrorOnNon2xx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("connector unavailable"))
	}))
	defer server.Close()

	dispatcher := NewHTTPDispatcher(server.URL, time.Second)
	if _, err := dispatcher.Dispatch(context.Background(), "http", &ExecuteRequest{NodeType: "http"}); err == nil {
		t.Fatal("expected an error for a non-2xx connector response")
	}
}

func TestConnectorNodeTypesCoversRegistry(t *testing.T) {
	t.Parallel()

	registry := DefaultRegistryInit()
	for _, nodeType := range ConnectorNodeTypes() {
		if _, ok := registry.Get(nodeType); !ok {
			t.Fatalf("node type %q from ConnectorNodeTypes has no registered executor", nodeType)
		}
		if !registry.BindConnector(nodeType, &fakeDispatcher{resp: &ExecuteResponse{}}) {
			t.Fatalf("BindConnector failed for %q", nodeType)
		}
	}
}
