package workflows

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

// route answers one request; a nil value means an empty response body.
type route func(req engine.Request) (any, error)

// fakeTransport dispatches on "METHOD /path/:template" and records every call.
type fakeTransport struct {
	mu     sync.Mutex
	routes map[string]route
	calls  []engine.Request
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{routes: make(map[string]route)}
}

func (f *fakeTransport) on(method, path string, fn route) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = fn
	return f
}

func (f *fakeTransport) Do(_ context.Context, req engine.Request, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn, ok := f.routes[req.Method+" "+req.Path]
	f.mu.Unlock()

	if _, err := req.ExpandPath(); err != nil {
		return err
	}
	if !ok {
		return engine.NewHTTPError(http.StatusNotFound, "", "no route for "+req.Method+" "+req.Path)
	}

	value, err := fn(req)
	if err != nil {
		return err
	}
	if out == nil || value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (f *fakeTransport) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// sequence returns the "METHOD path" of every call in order.
func (f *fakeTransport) sequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Method+" "+c.Path)
	}
	return out
}

func (f *fakeTransport) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func body(req engine.Request) map[string]any {
	m, _ := req.Body.(map[string]any)
	return m
}

// created answers a resource creation with the given ID and echoes the handle.
func created(id string) route {
	return func(req engine.Request) (any, error) {
		return map[string]any{"id": id, "handle": body(req)["handle"]}, nil
	}
}

// operationCreated answers an operation creation with a queued operation.
func operationCreated(id string) route {
	return func(req engine.Request) (any, error) {
		return map[string]any{"id": id, "type": body(req)["type"], "status": "queued"}, nil
	}
}

func failWith(status int, message string) route {
	return func(engine.Request) (any, error) {
		return nil, engine.NewHTTPError(status, "", message)
	}
}

type busFunc func(engine.Action)

func (f busFunc) Emit(a engine.Action) { f(a) }

func actionTypes(actions []engine.Action) []engine.ActionType {
	out := make([]engine.ActionType, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Type)
	}
	return out
}
