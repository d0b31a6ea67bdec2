// Package sensorclient provides an event-driven TCP client that speaks the
// sensor protocol: it sends decimal readings and reports every reply chunk,
// state change and error to registered handlers. It is used by the sensor
// simulator and by end-to-end tests.
package sensorclient

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// ConnectionState represents the current state of the TCP connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // Not connected
	Connecting                          // Connection attempt in progress
	Connected                           // Successfully connected
	Closed                              // Client has been closed
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ErrNotConnected is returned by Send when there is no live connection.
var ErrNotConnected = errors.New("not connected")

// ConnectionStateEvent is emitted when the connection state changes.
type ConnectionStateEvent struct {
	State     ConnectionState
	Address   string
	Timestamp time.Time
	Error     error
}

// DataReceivedEvent is emitted for every chunk read from the connection.
type DataReceivedEvent struct {
	Data      []byte
	Timestamp time.Time
}

// ErrorEvent is emitted when a read, write, or connection error occurs.
type ErrorEvent struct {
	Error     error
	Timestamp time.Time
}

// ConnectionStateHandler is called when the connection state changes.
type ConnectionStateHandler func(event ConnectionStateEvent)

// DataReceivedHandler is called with each chunk of received data. Chunks are
// delivered in order from the read goroutine; handlers must not block for long.
type DataReceivedHandler func(event DataReceivedEvent)

// ErrorHandler is called when a read, write, or connection error occurs.
type ErrorHandler func(event ErrorEvent)

// Config holds configuration for the client.
type Config struct {
	// Address is the "host:port" of the gateway.
	Address string
	// ReadBufferSize is the size of each read.
	ReadBufferSize int
	// WriteTimeout bounds a single write; 0 means no timeout.
	WriteTimeout time.Duration
	// ConnectionTimeout bounds dialing.
	ConnectionTimeout time.Duration
}

// DefaultConfig returns a Config with default values for address.
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		ReadBufferSize:    64,
		WriteTimeout:      10 * time.Second,
		ConnectionTimeout: 10 * time.Second,
	}
}

// Client is a sensor protocol TCP client. Register handlers, then call
// Connect. It is safe for concurrent use.
type Client struct {
	config Config
	conn   net.Conn
	state  ConnectionState
	closed bool

	onConnectionState ConnectionStateHandler
	onDataReceived    DataReceivedHandler
	onError           ErrorHandler

	mu      sync.RWMutex
	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// New creates a client in the Disconnected state.
func New(config Config) *Client {
	if config.ReadBufferSize < 1 {
		config.ReadBufferSize = 64
	}

	return &Client{
		config: config,
		state:  Disconnected,
	}
}

// OnConnectionState registers the handler for connection state changes,
// replacing any previous one.
func (c *Client) OnConnectionState(handler ConnectionStateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnectionState = handler
}

// OnDataReceived registers the handler for incoming data, replacing any
// previous one.
func (c *Client) OnDataReceived(handler DataReceivedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDataReceived = handler
}

// OnError registers the handler for errors, replacing any previous one.
func (c *Client) OnError(handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// Connect dials the configured address and starts the read goroutine.
//
// Returns:
//   - An error if the client is closed, already connected, or the dial fails
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("client is closed")
	}
	if c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return errors.New("already connected or connecting")
	}
	c.mu.Unlock()

	c.setState(Connecting, nil)

	dialer := net.Dialer{Timeout: c.config.ConnectionTimeout}
	conn, err := dialer.Dial("tcp", c.config.Address)
	if err != nil {
		c.setState(Disconnected, err)
		c.emitError(err)
		return fmt.Errorf("dial %s: %w", c.config.Address, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setState(Connected, nil)

	c.wg.Add(1)
	go c.readLoop(conn)

	return nil
}

// Send writes data to the connection.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if state != Connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}

		defer func() {
			_ = conn.SetWriteDeadline(time.Time{})
		}()
	}

	if _, err := conn.Write(data); err != nil {
		c.emitError(err)
		return err
	}

	return nil
}

// SendReading encodes value and category as value*10+category and sends it in
// decimal.
func (c *Client) SendReading(category int, value int) error {
	return c.Send([]byte(strconv.Itoa(value*10 + category)))
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the client is in the Connected state.
func (c *Client) IsConnected() bool {
	return c.State() == Connected
}

// Close closes the connection and waits for the read goroutine to exit.
// Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}

	c.wg.Wait()
	c.setState(Closed, nil)

	return err
}

func (c *Client) readLoop(conn net.Conn) {
	defer c.wg.Done()

	buffer := make([]byte, c.config.ReadBufferSize)
	for {
		n, err := conn.Read(buffer)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buffer[:n])
			c.emitDataReceived(data)
		}

		if err != nil {
			if c.isClosed() {
				return
			}

			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()

			c.setState(Disconnected, err)
			c.emitError(err)
			_ = conn.Close()
			return
		}
	}
}

func (c *Client) setState(state ConnectionState, err error) {
	c.mu.Lock()
	c.state = state
	handler := c.onConnectionState
	c.mu.Unlock()

	if handler != nil {
		handler(ConnectionStateEvent{
			State:     state,
			Address:   c.config.Address,
			Timestamp: time.Now(),
			Error:     err,
		})
	}
}

func (c *Client) emitDataReceived(data []byte) {
	c.mu.RLock()
	handler := c.onDataReceived
	c.mu.RUnlock()

	if handler != nil {
		handler(DataReceivedEvent{Data: data, Timestamp: time.Now()})
	}
}

func (c *Client) emitError(err error) {
	c.mu.RLock()
	handler := c.onError
	c.mu.RUnlock()

	if handler != nil {
		handler(ErrorEvent{Error: err, Timestamp: time.Now()})
	}
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
