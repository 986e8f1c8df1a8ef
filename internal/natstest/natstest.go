// Package natstest runs an embedded JetStream-enabled NATS server for tests.
package natstest

import (
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Start starts a server on a random port, shut down when the test ends.
func Start(tb testing.TB) *natsserver.Server {
	tb.Helper()
	opts := &natsserver.Options{
		Host:           "127.0.0.1",
		Port:           -1,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 2048,
		JetStream:      true,
		StoreDir:       tb.TempDir(),
	}

	server, err := natsserver.NewServer(opts)
	if err != nil {
		tb.Fatalf("start nats server: %v", err)
	}
	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		tb.Fatal("NATS server not ready")
	}
	tb.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

// Connect starts a server and returns a client connection to it.
func Connect(tb testing.TB) *nats.Conn {
	tb.Helper()
	server := Start(tb)
	nc, err := nats.Connect(server.ClientURL())
	if err != nil {
		tb.Fatalf("connect to nats: %v", err)
	}
	tb.Cleanup(nc.Close)
	return nc
}
