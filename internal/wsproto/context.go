package wsproto

import (
	"net"
	"net/url"

	"github.com/suleymanbyzt/StormSocket"
)

// ErrAlreadyHandled is returned by Accept/Reject when the context has
// already been handled once (spec.md §3 "double-handle is an error").
var ErrAlreadyHandled = stormsocket.ErrAlreadyHandled

// UpgradeContext is the server-side authorization surface for an
// in-flight upgrade (spec.md §3 WsUpgradeContext). It transitions
// new → (Accept | Reject) exactly once.
type UpgradeContext struct {
	Path        string
	QueryString string
	Query       url.Values
	Headers     Header
	Key         string
	RemoteAddr  net.Addr

	handled      bool
	accepted     bool
	rejectStatus int
	rejectReason string
}

// NewUpgradeContext wraps a parsed UpgradeRequest as an authorization
// context.
func NewUpgradeContext(req *UpgradeRequest) *UpgradeContext {
	return &UpgradeContext{
		Path:        req.Path,
		QueryString: req.QueryString,
		Query:       req.Query,
		Headers:     req.Headers,
		Key:         req.Key,
		RemoteAddr:  req.RemoteAddr,
	}
}

// Accept marks the context accepted. Calling Accept or Reject a second
// time returns ErrAlreadyHandled.
func (c *UpgradeContext) Accept() error {
	if c.handled {
		return ErrAlreadyHandled
	}
	c.handled = true
	c.accepted = true
	return nil
}

// Reject marks the context rejected with the given HTTP status and
// reason. Calling Accept or Reject a second time returns
// ErrAlreadyHandled.
func (c *UpgradeContext) Reject(status int, reason string) error {
	if c.handled {
		return ErrAlreadyHandled
	}
	c.handled = true
	c.accepted = false
	c.rejectStatus = status
	c.rejectReason = reason
	return nil
}

// Handled reports whether Accept or Reject has been called.
func (c *UpgradeContext) Handled() bool { return c.handled }

// Accepted reports the decision; valid only once Handled() is true.
func (c *UpgradeContext) Accepted() bool { return c.accepted }

// RejectStatus and RejectReason report the reject decision; valid only
// when Handled() is true and Accepted() is false.
func (c *UpgradeContext) RejectStatus() int    { return c.rejectStatus }
func (c *UpgradeContext) RejectReason() string { return c.rejectReason }
