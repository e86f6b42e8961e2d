package lms

import "context"

// APIClient is the remote boundary of the sync engine. Implementations
// unwrap the server's {"data": ...} response envelope into out.
// out may be nil when the caller does not need the response body.
type APIClient interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body any, out any) error
	Put(ctx context.Context, path string, body any, out any) error
	Delete(ctx context.Context, path string) error
}

// Endpoints holds the base paths for each entity collection on the server.
type Endpoints struct {
	Courses     string
	Lessons     string
	Enrollments string
	Progress    string
}
