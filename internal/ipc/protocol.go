// Package ipc links the host adapter to the decision core. The adapter sends
// one frame per simulation tick and reads back the commands it must issue.
// Unix domain sockets on Linux/macOS, TCP localhost on Windows.
package ipc

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"splitguard/internal/host"
)

const (
	// DefaultSocketPath is the Unix socket path for IPC
	DefaultSocketPath = "/tmp/splitguard.sock"
	// DefaultTCPAddr is used instead of the socket on Windows
	DefaultTCPAddr = "127.0.0.1:7481"

	// Message types
	MsgTypeFrame    byte = 0x01 // host -> core
	MsgTypeCommands byte = 0x02 // core -> host
	MsgTypePing     byte = 0x03
	MsgTypePong     byte = 0x04
	MsgTypeHello    byte = 0x05 // core -> host on connect

	// Protocol version for compatibility checking
	ProtocolVersion uint16 = 1

	// Connection settings
	MaxMessageSize = 1024 * 1024 // 1MB max message
	WriteTimeout   = 50 * time.Millisecond
	IdleTimeout    = 5 * time.Second // no frame for this long drops the host
	ReconnectDelay = 500 * time.Millisecond
	MaxReconnects  = 20
)

// FrameMessage is one simulation frame. Events are delivered in order and a
// Tick{DT} is delivered after them.
type FrameMessage struct {
	Seq    uint64
	DT     float64
	State  host.State
	Events []EventData
}

// CommandsMessage answers a frame with the commands to issue.
type CommandsMessage struct {
	Seq      uint64
	Commands []host.Command
}

// PingMessage is echoed back as a pong.
type PingMessage struct {
	Nonce  uint64
	SentAt int64 // Unix nano
}

// HelloMessage is sent to a host as soon as it connects.
type HelloMessage struct {
	Protocol    uint16
	Controllers []string
}

// Header is the message header for framing
type Header struct {
	Version  uint16
	Type     byte
	Reserved byte
	Length   uint32
}

const HeaderSize = 8 // 2 + 1 + 1 + 4

// WriteMessage writes a framed message to the connection
func WriteMessage(w io.Writer, msgType byte, data any) error {
	buf := getBuffer()
	defer putBuffer(buf)

	if data != nil {
		if err := gob.NewEncoder(buf).Encode(data); err != nil {
			return fmt.Errorf("gob encode: %w", err)
		}
	}
	if buf.Len() > MaxMessageSize {
		return fmt.Errorf("message too large: %d > %d", buf.Len(), MaxMessageSize)
	}

	headerBuf := make([]byte, HeaderSize, HeaderSize+buf.Len())
	binary.LittleEndian.PutUint16(headerBuf[0:2], ProtocolVersion)
	headerBuf[2] = msgType
	headerBuf[3] = 0
	binary.LittleEndian.PutUint32(headerBuf[4:8], uint32(buf.Len()))

	// One write per message so a frame is never interleaved
	if _, err := w.Write(append(headerBuf, buf.Bytes()...)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// ReadMessage reads a framed message from the connection
func ReadMessage(r io.Reader) (byte, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return 0, nil, fmt.Errorf("read header: %w", err)
	}

	header := Header{
		Version: binary.LittleEndian.Uint16(headerBuf[0:2]),
		Type:    headerBuf[2],
		Length:  binary.LittleEndian.Uint32(headerBuf[4:8]),
	}

	if header.Version != ProtocolVersion {
		return 0, nil, fmt.Errorf("version mismatch: got %d, want %d", header.Version, ProtocolVersion)
	}
	if header.Length > MaxMessageSize {
		return 0, nil, fmt.Errorf("message too large: %d > %d", header.Length, MaxMessageSize)
	}

	var body []byte
	if header.Length > 0 {
		body = make([]byte, header.Length)
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, fmt.Errorf("read body: %w", err)
		}
	}
	return header.Type, body, nil
}

// Decode decodes a gob body into v.
func Decode[T any](data []byte) (*T, error) {
	var msg T
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return nil, fmt.Errorf("gob decode %T: %w", msg, err)
	}
	return &msg, nil
}

// CleanupSocket removes the socket file if it exists
func CleanupSocket(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.Remove(path)
	}
	return nil
}

// Buffer pool for encoding
var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	bufferPool.Put(buf)
}
