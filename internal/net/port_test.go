package net

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetEphemeralTCPPort(t *testing.T) {
	port, err := GetEphemeralTCPPort()
	require.NoError(t, err)
	require.Greater(t, port, 0)

	// The port is released, so it is immediately bindable.
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	require.NoError(t, l.Close())
}
