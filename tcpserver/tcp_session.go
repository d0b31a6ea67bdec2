package tcpserver

// TCPServerSession is implemented by each connection handler. The server
// registers the session, runs Handle on a supervised goroutine and, once
// Handle returns, deregisters the session and calls Close.
type TCPServerSession interface {
	// ID returns the session's identifier assigned by the server.
	ID() uint64

	// Handle runs the session's read loop until the peer closes the stream,
	// a transport error occurs or Close is called from another goroutine.
	Handle()

	// Close closes the underlying connection. It must be safe to call
	// multiple times and concurrently with Handle.
	Close() error

	// Send writes data to the connection.
	//
	// Returns:
	//   - An error if the write failed
	Send(data []byte) error
}
