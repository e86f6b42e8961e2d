package testutil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// StubTransport serves fixed bodies by URL. Use it as the Transport of an
// http.Client handed to the package manager so downloads never leave the
// test process.
type StubTransport struct {
	// Bodies maps a full URL to the response body.
	Bodies map[string][]byte
	// Statuses maps a full URL to a non-200 status to return.
	Statuses map[string]int
	// ReportLength controls whether Content-Length is set on responses.
	ReportLength bool
}

func NewStubTransport() *StubTransport {
	return &StubTransport{
		Bodies:       make(map[string][]byte),
		Statuses:     make(map[string]int),
		ReportLength: true,
	}
}

// Client returns an http.Client backed by this transport.
func (t *StubTransport) Client() *http.Client {
	return &http.Client{Transport: t}
}

func (t *StubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	url := req.URL.String()

	if status, ok := t.Statuses[url]; ok {
		return &http.Response{
			StatusCode: status,
			Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Request:    req,
		}, nil
	}

	body, ok := t.Bodies[url]
	if !ok {
		return nil, fmt.Errorf("no stubbed body for %s", url)
	}

	resp := &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: -1,
		Request:       req,
	}
	if t.ReportLength {
		resp.ContentLength = int64(len(body))
	}
	return resp, nil
}
