package classify

import "image"

// Request is a single dispatched classification call. The token correlates
// the request with its eventual completion.
type Request struct {
	Token       string
	Image       image.Image
	Orientation Orientation
	Scaling     ScalePolicy
}

// CompletionFunc is invoked by an engine exactly once per accepted request,
// with either the ranked observations or an error, never both.
type CompletionFunc func(token string, observations []Observation, err error)

// Engine runs image classification asynchronously. Submit returns once the
// request is handed off; the completion runs later on an engine-owned
// goroutine, never synchronously from inside Submit.
type Engine interface {
	Submit(req *Request, done CompletionFunc) error
}
