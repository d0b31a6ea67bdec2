// Package gateway serves sensor clients over TCP: it accepts connections into
// a bounded registry, decodes each reading, replies with a control directive
// and records threshold crossings.
package gateway

import (
	"context"
	"net"

	"github.com/cyberinferno/sensorgate/logger"
	"github.com/cyberinferno/sensorgate/protocol"
	"github.com/cyberinferno/sensorgate/tcpserver"
)

const (
	DefaultMaxClients     = 10
	DefaultReadBufferSize = 99
)

// Options configures a Gateway.
type Options struct {
	// Name identifies the server in log output.
	Name string
	// Addr is the TCP listen address.
	Addr string
	// MaxClients caps concurrent connections; further connections are closed.
	MaxClients int
	// ReadBufferSize bounds a single reading.
	ReadBufferSize int
	// Protocol holds thresholds and reply encoding.
	Protocol protocol.Options
}

// DefaultOptions returns the reference settings for addr.
func DefaultOptions(addr string) Options {
	return Options{
		Name:           "sensorgate",
		Addr:           addr,
		MaxClients:     DefaultMaxClients,
		ReadBufferSize: DefaultReadBufferSize,
		Protocol:       protocol.DefaultOptions(),
	}
}

// Gateway is the sensor control server.
type Gateway struct {
	server     *tcpserver.TCPServer
	dispatcher *protocol.Dispatcher
	log        logger.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates a Gateway. recorder receives threshold crossings and may be nil.
func New(opts Options, recorder protocol.Recorder, log logger.Logger) *Gateway {
	if opts.ReadBufferSize < 1 {
		opts.ReadBufferSize = DefaultReadBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		dispatcher: protocol.NewDispatcher(opts.Protocol, recorder),
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}

	g.server = tcpserver.NewTCPServer(opts.Name, opts.Addr, opts.MaxClients, func(id uint64, conn net.Conn) tcpserver.TCPServerSession {
		return &Session{
			id:         id,
			conn:       conn,
			dispatcher: g.dispatcher,
			ctx:        g.ctx,
			bufSize:    opts.ReadBufferSize,
			log: log.With(
				logger.Field{Key: "session", Value: id},
				logger.Field{Key: "remote", Value: conn.RemoteAddr().String()}),
		}
	}, log)

	return g
}

// Start listens on the configured address and begins accepting clients.
func (g *Gateway) Start() error {
	return g.server.Start()
}

// Serve accepts clients on ln.
func (g *Gateway) Serve(ln net.Listener) error {
	return g.server.Serve(ln)
}

// Addr returns the bound listen address, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	return g.server.ListenAddr()
}

// ActiveClients returns the number of registered connections.
func (g *Gateway) ActiveClients() int {
	return g.server.Registry.Len()
}

// Stop closes the listener and all client connections and waits for every
// handler to finish.
func (g *Gateway) Stop() error {
	g.cancel()
	return g.server.Stop()
}
