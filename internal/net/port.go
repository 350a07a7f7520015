package net

import (
	"fmt"
	"net"
)

// GetEphemeralTCPPort asks the OS for a currently-unused TCP port by binding a
// loopback listener on port 0 and immediately releasing it. The port is not
// reserved after this returns, so callers must tolerate bind races.
func GetEphemeralTCPPort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("resolving 127.0.0.1:0: %w", err)
	}
	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("listening to acquire port: %w", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
