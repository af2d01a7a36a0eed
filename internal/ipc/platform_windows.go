//go:build windows

package ipc

import (
	"fmt"
	"net"
	"time"
)

// CreatePlatformListener creates a TCP listener on localhost (Windows)
// Windows doesn't support Unix domain sockets reliably, so we use TCP localhost.
func CreatePlatformListener(socketPath string) (net.Listener, error) {
	listener, err := net.Listen("tcp", DefaultTCPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", DefaultTCPAddr, err)
	}
	return listener, nil
}

// ConnectPlatform connects to the IPC server via TCP (Windows)
func ConnectPlatform(socketPath string) (net.Conn, error) {
	return net.DialTimeout("tcp", DefaultTCPAddr, time.Second)
}

// GetPlatformAddress returns the address string for logging
func GetPlatformAddress(socketPath string) string {
	return DefaultTCPAddr + " (TCP localhost - Windows mode)"
}

func cleanupPlatform(string) {}
