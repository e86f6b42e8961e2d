package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Call records one request made against the StubAPIClient.
type Call struct {
	Method string
	Path   string
	Body   any
}

// StubAPIClient is an in-memory APIClient for sync engine tests.
// Responses maps a GET path (including query string) to the value that
// will be JSON round-tripped into out. Errors maps "METHOD path" to an
// error to inject. Safe for concurrent use.
type StubAPIClient struct {
	mu        sync.Mutex
	Responses map[string]any
	Errors    map[string]error
	Calls     []Call
}

func NewStubAPIClient() *StubAPIClient {
	return &StubAPIClient{
		Responses: make(map[string]any),
		Errors:    make(map[string]error),
	}
}

func (c *StubAPIClient) record(method, path string, body any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, Call{Method: method, Path: path, Body: body})
	return c.Errors[method+" "+path]
}

// CallsTo returns the recorded calls matching method and path.
func (c *StubAPIClient) CallsTo(method, path string) []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Call
	for _, call := range c.Calls {
		if call.Method == method && call.Path == path {
			out = append(out, call)
		}
	}
	return out
}

func (c *StubAPIClient) respond(path string, out any) error {
	if out == nil {
		return nil
	}
	c.mu.Lock()
	resp, ok := c.Responses[path]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("no stubbed response for %s", path)
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *StubAPIClient) Get(_ context.Context, path string, out any) error {
	if err := c.record("GET", path, nil); err != nil {
		return err
	}
	return c.respond(path, out)
}

func (c *StubAPIClient) Post(_ context.Context, path string, body any, out any) error {
	if err := c.record("POST", path, body); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return c.respond(path, out)
}

func (c *StubAPIClient) Put(_ context.Context, path string, body any, out any) error {
	if err := c.record("PUT", path, body); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return c.respond(path, out)
}

func (c *StubAPIClient) Delete(_ context.Context, path string) error {
	return c.record("DELETE", path, nil)
}
