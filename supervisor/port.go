package supervisor

import (
	"net"
	"strconv"

	netutil "github.com/echosmith/echosmith/internal/net"
	"github.com/echosmith/echosmith/launch"
)

// DevPort is the fixed development port. Binding it first lets a companion
// dev proxy target a stable address.
const DevPort = 5179

// PortAllocator chooses the TCP port the backend is told to bind for one
// launch attempt. It must not fail: if no better choice exists it returns
// DevPort and accepts the small collision risk.
type PortAllocator func(attempt int) int

// defaultPortAllocator implements the mode-aware policy: in development the
// first attempt prefers DevPort when it is free; every other case takes an
// OS-assigned ephemeral port.
func defaultPortAllocator(mode launch.Mode) PortAllocator {
	return func(attempt int) int {
		if mode == launch.Development && attempt == 0 {
			if l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(DevPort))); err == nil {
				l.Close()
				return DevPort
			}
		}
		port, err := netutil.GetEphemeralTCPPort()
		if err != nil {
			return DevPort
		}
		return port
	}
}
