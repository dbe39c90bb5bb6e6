package netutil

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreePort(t *testing.T) {
	port, err := FreePort()
	require.NoError(t, err)
	assert.Greater(t, port, 0)
	assert.True(t, IsAvailable("127.0.0.1", port))
}

func TestCheck_BusyPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port
	assert.Error(t, Check("127.0.0.1", port))
	assert.False(t, IsAvailable("127.0.0.1", port))

	next := NextAvailable("127.0.0.1", port, 20)
	if next == port {
		t.Fatalf("NextAvailable returned busy port %s", strconv.Itoa(port))
	}
}

func TestLocalIP(t *testing.T) {
	ip := net.ParseIP(LocalIP())
	require.NotNil(t, ip)
	assert.NotNil(t, ip.To4())
}
