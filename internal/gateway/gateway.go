// Package gateway exposes the entity world to network clients over
// websocket and QUIC. Both transports speak the same JSON command protocol
// and share one dispatcher.
package gateway

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/entitykit/entitykit/internal/core/behaviour"
	"github.com/entitykit/entitykit/internal/core/observability/log"
	"github.com/entitykit/entitykit/internal/core/world"
)

// Options selects which listeners the gateway runs. An empty address
// disables that transport.
type Options struct {
	WebSocketAddr string
	QUICAddr      string
	CertFile      string
	KeyFile       string
	Logger        log.Log
}

// Gateway runs the configured network listeners over one world.
type Gateway struct {
	ws   *WSServer
	quic *QUICServer
	log  log.Log
}

func New(w *world.World, behaviours *behaviour.Registry, opts Options) (*Gateway, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Provide()
	}

	dispatcher := NewDispatcher(w, behaviours, logger)

	g := &Gateway{log: logger}
	if opts.WebSocketAddr != "" {
		g.ws = NewWSServer(opts.WebSocketAddr, dispatcher, logger)
	}
	if opts.QUICAddr != "" {
		qs, err := NewQUICServer(opts.QUICAddr, dispatcher, opts.CertFile, opts.KeyFile, logger)
		if err != nil {
			return nil, err
		}
		g.quic = qs
	}
	return g, nil
}

// Run serves all enabled listeners until ctx is cancelled or one of them
// fails.
func (g *Gateway) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	if g.ws != nil {
		eg.Go(func() error { return g.ws.Serve(ctx) })
	}
	if g.quic != nil {
		eg.Go(func() error { return g.quic.Serve(ctx) })
	}
	return eg.Wait()
}
