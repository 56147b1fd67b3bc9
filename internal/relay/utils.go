package relay

import (
	"fmt"
	"net"
)

// formatAddress - formats specified network address for logging purposes.
func formatAddress(a net.Addr) string {
	if a == nil {
		return "unknown address"
	}
	return fmt.Sprintf("%s %s", a.Network(), a.String())
}

// remoteAddress - formats remote address of connection for logging purposes.
func remoteAddress(c net.Conn) string {
	if c == nil {
		return formatAddress(nil)
	}
	return formatAddress(c.RemoteAddr())
}
