package script

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/raniellyferreira/heos-mock-device/fixture"
	"github.com/raniellyferreira/heos-mock-device/protocol"
)

var (
	// ErrNoScript indicates EvalSHA was called with an unknown hash
	ErrNoScript = errors.New("no matching script")

	// ErrNoResponse indicates a script returned neither a string nor an array of strings
	ErrNoResponse = errors.New("script returned no response")
)

// FailError is raised by heos.fail inside a script
type FailError struct {
	Message string
}

// Error implements the error interface
func (e *FailError) Error() string {
	return "script assertion failed: " + e.Message
}

// Engine executes Lua handler scripts
type Engine struct {
	fixtures fixture.Provider
	scripts  sync.Map // map[string]string - SHA1 -> script content
}

// NewEngine creates a new Lua engine that resolves heos.fixture through fixtures
func NewEngine(fixtures fixture.Provider) *Engine {
	return &Engine{
		fixtures: fixtures,
	}
}

// Eval runs script against req and returns the response lines
func (e *Engine) Eval(ctx context.Context, script string, req *protocol.Request) ([]string, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)

	if err := openLibs(L); err != nil {
		return nil, err
	}

	// goErr keeps the Go error behind a Lua error so callers can errors.Is it
	var goErr error
	e.setupAPI(ctx, L, req, &goErr)

	if err := L.DoString(script); err != nil {
		if goErr != nil {
			return nil, goErr
		}
		return nil, fmt.Errorf("script execution error: %w", err)
	}

	return convertResponse(L.Get(-1))
}

// EvalSHA runs a script previously registered with LoadScript
func (e *Engine) EvalSHA(ctx context.Context, sha string, req *protocol.Request) ([]string, error) {
	script, exists := e.scripts.Load(sha)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNoScript, sha)
	}
	return e.Eval(ctx, script.(string), req)
}

// LoadScript caches a script and returns its SHA1 hash
func (e *Engine) LoadScript(script string) string {
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(script)))
	e.scripts.Store(hash, script)
	return hash
}

// ScriptFlush removes all cached scripts
func (e *Engine) ScriptFlush() {
	e.scripts.Range(func(key, value interface{}) bool {
		e.scripts.Delete(key)
		return true
	})
}

func openLibs(L *lua.LState) error {
	libs := []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name))
		if err != nil {
			return fmt.Errorf("failed to open lua library %q: %w", lib.name, err)
		}
	}
	return nil
}

// setupAPI exposes the request and the heos helper table to the script
func (e *Engine) setupAPI(ctx context.Context, L *lua.LState, req *protocol.Request, goErr *error) {
	L.SetGlobal("COMMAND", lua.LString(req.Command))
	L.SetGlobal("GROUP", lua.LString(req.Group))
	L.SetGlobal("ACTION", lua.LString(req.Action))
	L.SetGlobal("RAW", lua.LString(req.Raw))

	query := L.NewTable()
	for k, v := range req.Query {
		query.RawSetString(k, lua.LString(v))
	}
	L.SetGlobal("QUERY", query)

	heos := L.NewTable()
	L.SetFuncs(heos, map[string]lua.LGFunction{
		"fixture": func(L *lua.LState) int {
			name := L.CheckString(1)
			if e.fixtures == nil {
				*goErr = &fixture.NotFoundError{Name: name}
				L.RaiseError("fixture %q not available", name)
				return 0
			}
			text, err := e.fixtures.Fetch(ctx, name)
			if err != nil {
				*goErr = err
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(lua.LString(text))
			return 1
		},
		"substitute": func(L *lua.LState) int {
			text := L.CheckString(1)
			values := L.CheckTable(2)
			L.Push(lua.LString(substitute(text, values)))
			return 1
		},
		"fail": func(L *lua.LState) int {
			msg := L.OptString(1, "failed")
			*goErr = &FailError{Message: msg}
			L.RaiseError("%s", msg)
			return 0
		},
	})
	L.SetGlobal("heos", heos)
}

// substitute replaces "{key}" with each value in a stable order
func substitute(text string, values *lua.LTable) string {
	pairs := make(map[string]string)
	var keys []string
	values.ForEach(func(k, v lua.LValue) {
		keys = append(keys, k.String())
		pairs[k.String()] = v.String()
	})
	sort.Strings(keys)

	for _, k := range keys {
		text = strings.ReplaceAll(text, "{"+k+"}", pairs[k])
	}
	return text
}

// convertResponse converts the script's return value into response lines
func convertResponse(lv lua.LValue) ([]string, error) {
	switch v := lv.(type) {
	case lua.LString:
		return []string{string(v)}, nil
	case *lua.LTable:
		length := v.Len()
		if length == 0 {
			return nil, ErrNoResponse
		}
		lines := make([]string, 0, length)
		for i := 1; i <= length; i++ {
			item, ok := v.RawGetInt(i).(lua.LString)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %s", ErrNoResponse, i, v.RawGetInt(i).Type())
			}
			lines = append(lines, string(item))
		}
		return lines, nil
	default:
		return nil, fmt.Errorf("%w: got %s", ErrNoResponse, lv.Type())
	}
}
