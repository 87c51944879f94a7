// Package middleware implements the ordered interception pipeline
// (spec.md §4.9): connect/disconnect fire in forward/reverse order,
// receive/send stages may transform or drop a message, and error
// notifications fan out forward.
package middleware

import "github.com/suleymanbyzt/StormSocket/session"

// Middleware implements any subset of the pipeline hooks. Embed
// NopMiddleware to satisfy the interface while implementing only the
// hooks that matter.
type Middleware interface {
	OnConnected(s session.Session)
	OnDataReceived(s session.Session, data []byte) []byte
	OnDataSending(s session.Session, data []byte) []byte
	OnDisconnected(s session.Session)
	OnError(s session.Session, err error)
}

// NopMiddleware is a no-op Middleware. Embed it in a concrete middleware
// to implement only the hooks that matter.
type NopMiddleware struct{}

func (NopMiddleware) OnConnected(session.Session)                          {}
func (NopMiddleware) OnDataReceived(_ session.Session, data []byte) []byte { return data }
func (NopMiddleware) OnDataSending(_ session.Session, data []byte) []byte  { return data }
func (NopMiddleware) OnDisconnected(session.Session)                       {}
func (NopMiddleware) OnError(session.Session, error)                       {}

// Pipeline is an ordered, immutable-after-registration list of
// middleware. It is built once before the server or client starts
// (spec.md §4.9 "immutable after registration").
type Pipeline struct {
	chain []Middleware
}

// NewPipeline constructs a Pipeline over the given middleware, applied
// in the given order for connect/receive/send/error and in reverse order
// for disconnect.
func NewPipeline(chain ...Middleware) *Pipeline {
	return &Pipeline{chain: chain}
}

// FireConnected invokes OnConnected on every middleware in forward order.
func (p *Pipeline) FireConnected(s session.Session) {
	for _, m := range p.chain {
		m.OnConnected(s)
	}
}

// FireDisconnected invokes OnDisconnected on every middleware in reverse
// order, mirroring stack unwinding.
func (p *Pipeline) FireDisconnected(s session.Session) {
	for i := len(p.chain) - 1; i >= 0; i-- {
		p.chain[i].OnDisconnected(s)
	}
}

// FireError invokes OnError on every middleware in forward order.
func (p *Pipeline) FireError(s session.Session, err error) {
	for _, m := range p.chain {
		m.OnError(s, err)
	}
}

// RunReceived runs data through OnDataReceived in forward order. An
// empty result at any stage stops forwarding and drops the message: the
// returned bool is false in that case.
func (p *Pipeline) RunReceived(s session.Session, data []byte) ([]byte, bool) {
	for _, m := range p.chain {
		data = m.OnDataReceived(s, data)
		if len(data) == 0 {
			return nil, false
		}
	}
	return data, true
}

// RunSending runs data through OnDataSending in forward order. An empty
// result at any stage drops the send: the returned bool is false in
// that case.
func (p *Pipeline) RunSending(s session.Session, data []byte) ([]byte, bool) {
	for _, m := range p.chain {
		data = m.OnDataSending(s, data)
		if len(data) == 0 {
			return nil, false
		}
	}
	return data, true
}
