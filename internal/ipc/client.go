package ipc

import (
	"fmt"
	"net"
	"sync"
	"time"

	"splitguard/internal/host"
)

// Client is the host adapter side of the link. Calls are synchronous: each
// frame waits for its commands.
type Client struct {
	conn  net.Conn
	mu    sync.Mutex
	hello HelloMessage
	seq   uint64
	nonce uint64
}

// Dial connects to the core and reads its greeting.
func Dial(socketPath string) (*Client, error) {
	conn, err := ConnectPlatform(socketPath)
	if err != nil {
		return nil, fmt.Errorf("ipc: connect %s: %w", GetPlatformAddress(socketPath), err)
	}
	return handshake(conn)
}

// DialRetry connects with retries, for adapters started before the core.
func DialRetry(socketPath string) (*Client, error) {
	var lastErr error
	for range MaxReconnects {
		c, err := Dial(socketPath)
		if err == nil {
			return c, nil
		}
		lastErr = err
		time.Sleep(ReconnectDelay)
	}
	return nil, fmt.Errorf("connect failed after %d attempts: %w", MaxReconnects, lastErr)
}

func handshake(conn net.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(time.Second))
	msgType, body, err := ReadMessage(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ipc: hello: %w", err)
	}
	if msgType != MsgTypeHello {
		conn.Close()
		return nil, fmt.Errorf("ipc: expected hello, got type %d", msgType)
	}
	hello, err := Decode[HelloMessage](body)
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetReadDeadline(time.Time{})
	return &Client{conn: conn, hello: *hello}, nil
}

// Hello returns the core's greeting.
func (c *Client) Hello() HelloMessage { return c.hello }

// Frame sends one frame and returns the commands to issue.
func (c *Client) Frame(dt float64, state host.State, events ...host.Event) ([]host.Command, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	msg, err := NewFrame(c.seq, dt, state, events...)
	if err != nil {
		return nil, err
	}
	if err := WriteMessage(c.conn, MsgTypeFrame, msg); err != nil {
		return nil, err
	}

	for {
		msgType, body, err := ReadMessage(c.conn)
		if err != nil {
			return nil, err
		}
		if msgType != MsgTypeCommands {
			continue
		}
		reply, err := Decode[CommandsMessage](body)
		if err != nil {
			return nil, err
		}
		if reply.Seq != c.seq {
			return nil, fmt.Errorf("ipc: reply for frame %d, want %d", reply.Seq, c.seq)
		}
		return reply.Commands, nil
	}
}

// Ping measures the round trip.
func (c *Client) Ping() (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nonce++
	start := time.Now()
	if err := WriteMessage(c.conn, MsgTypePing, PingMessage{Nonce: c.nonce, SentAt: start.UnixNano()}); err != nil {
		return 0, err
	}
	for {
		msgType, body, err := ReadMessage(c.conn)
		if err != nil {
			return 0, err
		}
		if msgType != MsgTypePong {
			continue
		}
		pong, err := Decode[PingMessage](body)
		if err != nil {
			return 0, err
		}
		if pong.Nonce == c.nonce {
			return time.Since(start), nil
		}
	}
}

// Close drops the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
