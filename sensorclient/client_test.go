package sensorclient

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEchoServer(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ln.Close()
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 64)
				for {
					n, err := c.Read(buf)
					if err != nil {
						return
					}
					if _, err := c.Write(buf[:n]); err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	return ln
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "Disconnected", Disconnected.String())
	assert.Equal(t, "Connecting", Connecting.String())
	assert.Equal(t, "Connected", Connected.String())
	assert.Equal(t, "Closed", Closed.String())
	assert.Equal(t, "Unknown", ConnectionState(42).String())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("localhost:9000")
	assert.Equal(t, "localhost:9000", cfg.Address)
	assert.Equal(t, 64, cfg.ReadBufferSize)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
}

func TestClient_SendReading(t *testing.T) {
	ln := startEchoServer(t)

	c := New(DefaultConfig(ln.Addr().String()))
	received := make(chan []byte, 4)
	c.OnDataReceived(func(e DataReceivedEvent) {
		received <- e.Data
	})

	var mu sync.Mutex
	var states []ConnectionState
	c.OnConnectionState(func(e ConnectionStateEvent) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, e.State)
	})

	require.NoError(t, c.Connect())
	assert.True(t, c.IsConnected())
	assert.Error(t, c.Connect())

	require.NoError(t, c.SendReading(1, 300))
	select {
	case data := <-received:
		assert.Equal(t, "3001", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("no echo received")
	}

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, Closed, c.State())
	assert.ErrorIs(t, c.Send([]byte("1")), ErrNotConnected)
	assert.Error(t, c.Connect())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ConnectionState{Connecting, Connected, Closed}, states)
}

func TestClient_SendBeforeConnect(t *testing.T) {
	c := New(DefaultConfig("127.0.0.1:1"))
	assert.ErrorIs(t, c.Send([]byte("50")), ErrNotConnected)
}

func TestClient_ConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := DefaultConfig(addr)
	cfg.ConnectionTimeout = time.Second
	c := New(cfg)

	errs := make(chan error, 1)
	c.OnError(func(e ErrorEvent) {
		errs <- e.Error
	})

	assert.Error(t, c.Connect())
	assert.Equal(t, Disconnected, c.State())
	assert.Len(t, errs, 1)
}

func TestClient_serverCloses(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			_ = conn.Close()
		}
	}()

	c := New(DefaultConfig(ln.Addr().String()))
	disconnected := make(chan struct{})
	var once sync.Once
	c.OnConnectionState(func(e ConnectionStateEvent) {
		if e.State == Disconnected {
			once.Do(func() { close(disconnected) })
		}
	})

	require.NoError(t, c.Connect())
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not reported")
	}
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Close())
}
