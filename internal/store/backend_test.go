package store

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ehr/hospital/internal/platform/apiclient"
	"github.com/ehr/hospital/internal/platform/session"
)

type handler func(req apiclient.Request) (any, error)

// fakeBackend is a counting Backend double. Responses are JSON round-tripped
// into the caller's out value so list envelopes decode like real ones.
type fakeBackend struct {
	mu     sync.Mutex
	routes map[string]handler
	calls  []string

	loginRes    *apiclient.LoginResult
	loginErr    error
	logoutErr   error
	logoutCalls int

	saved    session.Saved
	hasSaved bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{routes: make(map[string]handler)}
}

func routeKey(method, endpoint string) string {
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + endpoint
}

func (f *fakeBackend) on(method, endpoint string, h handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[routeKey(method, endpoint)] = h
}

// reply registers a fixed response.
func (f *fakeBackend) reply(method, endpoint string, v any) {
	f.on(method, endpoint, func(apiclient.Request) (any, error) { return v, nil })
}

func (f *fakeBackend) count(method, endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := routeKey(method, endpoint)
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (f *fakeBackend) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBackend) Do(ctx context.Context, req apiclient.Request, out any) error {
	key := routeKey(req.Method, req.Endpoint)
	f.mu.Lock()
	f.calls = append(f.calls, key)
	h, ok := f.routes[key]
	f.mu.Unlock()
	if !ok {
		return &apiclient.Error{Kind: apiclient.KindServer, Status: http.StatusNotFound, Message: "no route " + key}
	}
	v, err := h(req)
	if err != nil {
		return err
	}
	if out == nil || v == nil || req.Method == http.MethodDelete {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (f *fakeBackend) Login(ctx context.Context, username, password string) (*apiclient.LoginResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, routeKey(http.MethodPost, apiclient.EndpointLogin))
	f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginRes, nil
}

func (f *fakeBackend) Logout(ctx context.Context) error {
	f.mu.Lock()
	f.logoutCalls++
	f.mu.Unlock()
	return f.logoutErr
}

func (f *fakeBackend) Resume(ctx context.Context) (session.Saved, bool) {
	return f.saved, f.hasSaved
}
