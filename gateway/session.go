package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/cyberinferno/sensorgate/logger"
	"github.com/cyberinferno/sensorgate/protocol"
)

// Session handles one sensor client. Every completed read is treated as one
// reading; the dispatcher's reply, if any, is written back on the same
// connection.
type Session struct {
	id         uint64
	conn       net.Conn
	dispatcher *protocol.Dispatcher
	log        logger.Logger
	ctx        context.Context
	bufSize    int

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// ID implements tcpserver.TCPServerSession.
func (s *Session) ID() uint64 {
	return s.id
}

// Handle implements tcpserver.TCPServerSession. It returns when the client
// closes the stream, a read fails or a reply cannot be written. A failed
// write ends only this connection.
func (s *Session) Handle() {
	s.log.Info("client connected")

	buf := make([]byte, s.bufSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			if werr := s.process(buf[:n]); werr != nil {
				s.log.Error("reply write failed, closing connection", logger.Err(werr))
				return
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				s.log.Info("client disconnected")
			} else {
				s.log.Warn("client read failed", logger.Err(err))
			}
			return
		}
	}
}

func (s *Session) process(data []byte) error {
	s.log.Debug("reading received", logger.Field{Key: "payload", Value: string(data)})

	res := s.dispatcher.Handle(s.ctx, data)
	if res.RecordErr != nil {
		s.log.Error("failed to record threshold crossing",
			logger.Field{Key: "category", Value: res.Message.Category.String()},
			logger.Field{Key: "value", Value: res.Message.Value},
			logger.Err(res.RecordErr))
	} else if res.Entry != nil {
		s.log.Info("threshold crossed",
			logger.Field{Key: "category", Value: res.Message.Category.String()},
			logger.Field{Key: "value", Value: res.Message.Value},
			logger.Field{Key: "sequence", Value: res.Entry.Sequence})
	}

	if res.Payload == nil {
		return nil
	}

	if err := s.Send(res.Payload); err != nil {
		return fmt.Errorf("write %s: %w", res.Reply, err)
	}

	return nil
}

// Send implements tcpserver.TCPServerSession.
func (s *Session) Send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.Write(data)
	return err
}

// Close implements tcpserver.TCPServerSession.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})

	return s.closeErr
}
