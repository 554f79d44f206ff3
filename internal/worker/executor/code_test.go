package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestCodeExecutorComputesResultFromInput(t *testing.T) {
	t.Parallel()

	exec := NewCodeExecutor()
	cfg, _ := json.Marshal(codeConfig{Code: `result = { total = input.a + input.b }`})
	req := &ExecuteRequest{
		NodeType: "code",
		NodeID:   "node-1",
		Config:   cfg,
		Input:    json.RawMessage(`{"a":2,"b":3}`),
		Timeout:  2 * time.Second,
	}

	resp, err := exec.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("Execute returned error response: %+v", resp.Error)
	}

	var out struct {
		Total float64 `json:"total"`
	}
	if err := json.Unmarshal(resp.Output, &out); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if out.Total != 5 {
		t.Fatalf("total = %v, want 5", out.Total)
	}
}

func TestCodeExecutorCapturesLogCalls(t *testing.T) {
	t.Parallel()

	exec := NewCodeExecutor()
	cfg, _ := json.Marshal(codeConfig{Code: `log("hello from script") result = true`})
	resp, err := exec.Execute(context.Background(), &ExecuteRequest{
		NodeType: "code",
		NodeID:   "node-1",
		Config:   cfg,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("Execute returned error response: %+v", resp.Error)
	}

	found := false
	for _, l := range resp.Logs {
		if l.Message == "hello from script" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected log entry from script, got %+v", resp.Logs)
	}
}

func TestCodeExecutorRejectsEmptyCode(t *testing.T) {
	t.Parallel()

	exec := NewCodeExecutor()
	cfg, _ := json.Marshal(codeConfig{Code: ""})
	resp, err := exec.Execute(context.Background(), &ExecuteRequest{
		NodeType: "code",
		NodeID:   "node-1",
		Config:   cfg,
	})
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if resp.Error == nil || resp.Error.Type != ErrorTypeNonRetryable {
		t.Fatalf("expected non-retryable error for empty code, got %+v", resp.Error)
	}
}

func TestCodeExecutorCannotReachFilesystem(t *testing.T) {
	t.Parallel()

	exec := NewCodeExecutor()
	cfg, _ := json.Marshal(codeConfig{Code: `result = dofile ~= nil`})
	resp, err := exec.Execute(context.Background(), &ExecuteRequest{
		NodeType: "code",
		NodeID:   "node-1",
		Config:   cfg,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("Execute returned error response: %+v", resp.Error)
	}
	var reachable bool
	if err := json.Unmarshal(resp.Output, &reachable); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if reachable {
		t.Fatal("dofile should be stripped from the sandbox, but script saw it defined")
	}
}

func TestCodeExecutorTimesOutOnInfiniteLoop(t *testing.T) {
	t.Parallel()

	exec := NewCodeExecutor()
	cfg, _ := json.Marshal(codeConfig{Code: `while true do end`})
	resp, err := exec.Execute(context.Background(), &ExecuteRequest{
		NodeType: "code",
		NodeID:   "node-1",
		Config:   cfg,
		Timeout:  200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected an error for a script that never terminates")
	}
}
