package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ConnectorDispatcher performs the actual side effect for a pluggable node
// type (an outbound HTTP call, an SMTP send, a Slack/Discord/Twilio API
// call, an AI provider request, a database query, an object-storage put).
// Per spec.md §1, that business logic is an out-of-scope external
// collaborator the engine does not reimplement: "workers dispatch opaque
// node specs to pluggable handlers; the engine does not care what a node
// does, only that it starts, completes, or fails." ConnectorExecutor is the
// engine-side half of that contract; ConnectorDispatcher is implemented by
// whatever process actually owns the connector (a sidecar, a plugin binary,
// an in-process shim wired up at startup for local development).
type ConnectorDispatcher interface {
	Dispatch(ctx context.Context, nodeType string, req *ExecuteRequest) (*ExecuteResponse, error)
}

// ConnectorExecutor satisfies the Executor interface for one pluggable node
// type by forwarding the opaque request to an injected ConnectorDispatcher.
// With no dispatcher configured it fails closed with a non-retryable error
// rather than silently no-op'ing, so a missing wire-up surfaces immediately
// instead of masquerading as a successful node.
type ConnectorExecutor struct {
	nodeType   string
	dispatcher ConnectorDispatcher
	timeout    time.Duration
}

// NewConnectorExecutor builds a pluggable-dispatch executor for nodeType.
// dispatcher may be nil at construction time (e.g. while a deployment's
// connector sidecar is still starting) and is read fresh on every Execute.
func NewConnectorExecutor(nodeType string, dispatcher ConnectorDispatcher) *ConnectorExecutor {
	return &ConnectorExecutor{nodeType: nodeType, dispatcher: dispatcher, timeout: 30 * time.Second}
}

func (e *ConnectorExecutor) NodeType() string { return e.nodeType }

// SetDispatcher rebinds the connector at runtime, letting a worker process
// pick up a newly registered handler without restarting its pollers.
func (e *ConnectorExecutor) SetDispatcher(dispatcher ConnectorDispatcher) {
	e.dispatcher = dispatcher
}

func (e *ConnectorExecutor) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	start := time.Now()

	if e.dispatcher == nil {
		return &ExecuteResponse{
			Error: &ExecutionError{
				Message: fmt.Sprintf("no connector registered to handle node type %q", e.nodeType),
				Type:    ErrorTypeNonRetryable,
			},
			Duration: time.Since(start),
		}, nil
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	dispatchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := e.dispatcher.Dispatch(dispatchCtx, e.nodeType, req)
	if err != nil {
		return &ExecuteResponse{
			Error: &ExecutionError{
				Message: err.Error(),
				Type:    ErrorTypeRetryable,
			},
			Duration: time.Since(start),
		}, nil
	}
	if resp == nil {
		resp = &ExecuteResponse{}
	}
	if resp.Duration == 0 {
		resp.Duration = time.Since(start)
	}
	return resp, nil
}

// connectorNodeTypes lists every node type whose real implementation is an
// out-of-scope external collaborator per spec.md §1's Non-goals. Each gets a
// ConnectorExecutor in the default registry so the engine still schedules
// and completes these nodes end to end; only the business logic behind
// ConnectorDispatcher is left to the deployment.
var connectorNodeTypes = []string{
	"http",
	"email",
	"ai",
	"webhook",
	"slack",
	"discord",
	"twilio",
	"database",
	"storage",
}

// ConnectorNodeTypes returns the node types backed by a ConnectorExecutor in
// DefaultRegistryInit, so a deployment's entrypoint can bind a dispatcher to
// each without duplicating this list.
func ConnectorNodeTypes() []string {
	out := make([]string, len(connectorNodeTypes))
	copy(out, connectorNodeTypes)
	return out
}

// HTTPDispatcher is a ConnectorDispatcher that forwards the opaque node spec
// as JSON to a sidecar or plugin process reachable at baseURL, posting to
// "<baseURL>/nodes/<nodeType>". It is wire glue only — it carries no
// knowledge of what any given node type does.
type HTTPDispatcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDispatcher builds a dispatcher that talks to a connector service at
// baseURL (e.g. "http://localhost:9100").
func NewHTTPDispatcher(baseURL string, timeout time.Duration) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDispatcher{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, nodeType string, req *ExecuteRequest) (*ExecuteResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal connector request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/nodes/"+nodeType, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build connector request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("connector request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read connector response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("connector returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp ExecuteResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode connector response: %w", err)
	}
	return &resp, nil
}
