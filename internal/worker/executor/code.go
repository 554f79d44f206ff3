package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// maxLuaInstructions bounds a single code node's CPU budget so a runaway
// script cannot starve the worker pool.
const maxLuaInstructions = 10_000_000

// CodeExecutor runs user-supplied Lua snippets in a restricted interpreter.
// gopher-lua gives the same pluggable, sandboxed-handler shape the other
// node types use, without pulling a JS engine into the worker just for one
// node type.
type CodeExecutor struct{}

func NewCodeExecutor() *CodeExecutor {
	return &CodeExecutor{}
}

func (e *CodeExecutor) NodeType() string {
	return "code"
}

type codeConfig struct {
	Code    string `json:"code"`
	Timeout int    `json:"timeout"` // seconds, 0 = use request timeout
}

func (e *CodeExecutor) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	start := time.Now()
	logs := []LogEntry{{Timestamp: start, Level: "INFO", Message: fmt.Sprintf("executing code node %s", req.NodeID)}}

	var cfg codeConfig
	if err := json.Unmarshal(req.Config, &cfg); err != nil {
		return &ExecuteResponse{
			Error:    &ExecutionError{Message: fmt.Sprintf("failed to parse code config: %v", err), Type: ErrorTypeNonRetryable},
			Logs:     logs,
			Duration: time.Since(start),
		}, nil
	}
	if cfg.Code == "" {
		return &ExecuteResponse{
			Error:    &ExecutionError{Message: "code config must set a non-empty code string", Type: ErrorTypeNonRetryable},
			Logs:     logs,
			Duration: time.Since(start),
		}, nil
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = req.Timeout
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var input interface{}
	if len(req.Input) > 0 {
		if err := json.Unmarshal(req.Input, &input); err != nil {
			input = map[string]interface{}{}
		}
	}

	output, luaLogs, err := e.run(runCtx, cfg.Code, input)
	logs = append(logs, luaLogs...)
	if err != nil {
		errType := ErrorTypeNonRetryable
		if runCtx.Err() == context.DeadlineExceeded {
			errType = ErrorTypeTimeout
		}
		return &ExecuteResponse{
			Error:    &ExecutionError{Message: err.Error(), Type: errType},
			Logs:     logs,
			Duration: time.Since(start),
		}, nil
	}

	out, err := json.Marshal(output)
	if err != nil {
		return &ExecuteResponse{
			Error:    &ExecutionError{Message: fmt.Sprintf("failed to marshal code output: %v", err), Type: ErrorTypeNonRetryable},
			Logs:     logs,
			Duration: time.Since(start),
		}, nil
	}

	return &ExecuteResponse{Output: out, Logs: logs, Duration: time.Since(start)}, nil
}

// run evaluates code in a fresh interpreter seeded with an `input` global and
// a `log(msg)` builtin; it returns whatever the script assigns to the global
// `result`, or nil if the script never sets one.
func (e *CodeExecutor) run(ctx context.Context, code string, input interface{}) (interface{}, []LogEntry, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true, CallStackSize: 256})
	defer L.Close()
	L.SetContext(ctx)

	for _, pair := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(pair.fn), NRet: 0, Protect: true}, lua.LString(pair.name)); err != nil {
			return nil, nil, fmt.Errorf("failed to open lua stdlib %s: %w", pair.name, err)
		}
	}
	// Base lib carries load/dofile/require, which would let a script reach
	// the filesystem or load arbitrary bytecode; strip them.
	for _, unsafe := range []string{"loadstring", "load", "dofile", "loadfile", "require", "collectgarbage"} {
		L.SetGlobal(unsafe, lua.LNil)
	}
	L.SetMx(maxLuaInstructions)

	var logs []LogEntry
	L.SetGlobal("log", L.NewFunction(func(L *lua.LState) int {
		msg := L.CheckString(1)
		logs = append(logs, LogEntry{Timestamp: time.Now(), Level: "INFO", Message: msg})
		return 0
	}))
	L.SetGlobal("input", goToLua(L, input))

	if err := L.DoString(code); err != nil {
		return nil, logs, fmt.Errorf("code execution failed: %w", err)
	}

	result := L.GetGlobal("result")
	if result == lua.LNil {
		return nil, logs, nil
	}
	return luaToGo(result), logs, nil
}

func goToLua(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case map[string]interface{}:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, goToLua(L, item))
		}
		return t
	case []interface{}:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, goToLua(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}

func luaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if val.Len() > 0 {
			arr := make([]interface{}, 0, val.Len())
			val.ForEach(func(_, item lua.LValue) { arr = append(arr, luaToGo(item)) })
			return arr
		}
		obj := make(map[string]interface{})
		val.ForEach(func(key, item lua.LValue) { obj[key.String()] = luaToGo(item) })
		return obj
	default:
		return nil
	}
}
