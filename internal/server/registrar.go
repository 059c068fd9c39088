package server

import "google.golang.org/grpc"

// Registrar attaches one gRPC service to a server. Tests pass the same
// registrars to a bufconn-backed server.
type Registrar interface {
	Register(s grpc.ServiceRegistrar)
}
