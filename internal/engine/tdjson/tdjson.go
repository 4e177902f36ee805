// ABOUTME: cgo binding of td_json_client_* to engine.Client.
// ABOUTME: Built only with the tdjson tag; links against libtdjson.

//go:build tdjson

package tdjson

/*
#cgo LDFLAGS: -ltdjson
#include <stdlib.h>
#include <td/telegram/td_json_client.h>
*/
import "C"

import (
	"sync"
	"time"
	"unsafe"

	"github.com/2389/tdsession/internal/engine"
)

// Client owns one native client pointer.
type Client struct {
	// mu guards handle. Receive and Execute copy the returned C string
	// before the next call on the same handle invalidates it.
	mu     sync.Mutex
	recvMu sync.Mutex
	handle unsafe.Pointer
}

// New creates a native client.
func New() (engine.Client, error) {
	h := C.td_json_client_create()
	if h == nil {
		return nil, ErrCreate
	}
	return &Client{handle: h}, nil
}

// Factory returns New as an engine.Factory.
func Factory() engine.Factory {
	return New
}

func (c *Client) ptr() (unsafe.Pointer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return nil, engine.ErrDestroyed
	}
	return c.handle, nil
}

// Send implements engine.Client.
func (c *Client) Send(request []byte) error {
	h, err := c.ptr()
	if err != nil {
		return err
	}
	cs := C.CString(string(request))
	defer C.free(unsafe.Pointer(cs))
	C.td_json_client_send(h, cs)
	return nil
}

// Receive implements engine.Client. Only one receiver may run at a time.
func (c *Client) Receive(timeout time.Duration) ([]byte, error) {
	h, err := c.ptr()
	if err != nil {
		return nil, err
	}
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	res := C.td_json_client_receive(h, C.double(timeout.Seconds()))
	if res == nil {
		return nil, nil
	}
	return []byte(C.GoString(res)), nil
}

// Execute implements engine.Client.
func (c *Client) Execute(request []byte) ([]byte, error) {
	h, err := c.ptr()
	if err != nil {
		return nil, err
	}
	cs := C.CString(string(request))
	defer C.free(unsafe.Pointer(cs))

	res := C.td_json_client_execute(h, cs)
	if res == nil {
		return nil, nil
	}
	return []byte(C.GoString(res)), nil
}

// Destroy implements engine.Client. It waits for a running Receive to return.
func (c *Client) Destroy() error {
	c.mu.Lock()
	h := c.handle
	c.handle = nil
	c.mu.Unlock()
	if h == nil {
		return engine.ErrDestroyed
	}

	c.recvMu.Lock()
	defer c.recvMu.Unlock()
	C.td_json_client_destroy(h)
	return nil
}
