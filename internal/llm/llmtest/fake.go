// Package llmtest provides a scripted VisionClient for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonathan/guideline-extractor/internal/types"
)

// Reply is one scripted model response
type Reply struct {
	Text  string
	Usage types.Usage
	Err   error
}

// Call records a single Extract invocation
type Call struct {
	Prompt   string
	Image    []byte
	MimeType string
}

// Client answers Extract from a reply function. It is safe for concurrent use.
type Client struct {
	// Respond picks the reply for a call. Image bytes are passed so a test can key on the page.
	Respond func(call Call) Reply

	mu     sync.Mutex
	calls  []Call
	closed bool
}

// New returns a client that answers every call with respond
func New(respond func(call Call) Reply) *Client {
	return &Client{Respond: respond}
}

// ByImage returns a client that keys replies on the image bytes, as a string
func ByImage(replies map[string]Reply) *Client {
	return New(func(call Call) Reply {
		reply, ok := replies[string(call.Image)]
		if !ok {
			return Reply{Err: fmt.Errorf("no scripted reply for image %q", call.Image)}
		}
		return reply
	})
}

// Extract records the call and returns the scripted reply
func (c *Client) Extract(ctx context.Context, prompt string, image []byte, mimeType string) (string, types.Usage, error) {
	call := Call{Prompt: prompt, Image: image, MimeType: mimeType}

	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", types.Usage{}, err
	}
	reply := c.Respond(call)
	return reply.Text, reply.Usage, reply.Err
}

// Close marks the client closed
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Calls returns a copy of the recorded calls
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Closed reports whether Close was called
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
