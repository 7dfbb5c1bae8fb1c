package nats

import (
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
)

// EmbeddedServer runs a NATS server with JetStream inside the process,
// used by tests and single-binary deployments.
type EmbeddedServer struct {
	server *server.Server
}

// StartEmbeddedServer starts an in-process NATS server on a random port
// and waits until it accepts connections.
func StartEmbeddedServer(storeDir string) (*EmbeddedServer, error) {
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  storeDir,
	}

	s, err := server.NewServer(opts)
	if err != nil {
		return nil, apperr.Internal(err, "NATS-Embed01", "unable to create embedded nats server")
	}
	go s.Start()

	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		return nil, apperr.Internal(nil, "NATS-Embed02", "embedded nats server not ready")
	}
	return &EmbeddedServer{server: s}, nil
}

// URL returns the client connection URL.
func (e *EmbeddedServer) URL() string {
	return e.server.ClientURL()
}

// Shutdown stops the server and waits for it to exit.
func (e *EmbeddedServer) Shutdown() {
	e.server.Shutdown()
	e.server.WaitForShutdown()
}
