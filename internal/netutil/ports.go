// Package netutil provides port availability checks and local address
// lookup.
package netutil

import (
	"net"
	"strconv"
)

// IsAvailable reports whether host:port can be bound right now.
func IsAvailable(host string, port int) bool {
	return Check(host, port) == nil
}

// Check binds host:port and releases it again, returning the bind error.
func Check(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return ln.Close()
}

// FreePort asks the kernel for an unused loopback port. The port is
// released before returning, so another process may grab it first.
func FreePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		return 0, err
	}
	return port, nil
}

// NextAvailable returns the first port from start upward that is free on
// host, or 0 when none of the next limit ports is.
func NextAvailable(host string, start, limit int) int {
	for p := start; p < start+limit && p <= 65535; p++ {
		if IsAvailable(host, p) {
			return p
		}
	}
	return 0
}

// LocalIP returns the first non-loopback IPv4 address of this host, or
// "127.0.0.1" when there is none.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}
