// Package bridge exposes an engine over gRPC and connects to one remotely.
//
// The service has two methods. Events is a bidirectional stream that owns
// one engine client for its lifetime: messages from the caller are passed to
// Send and everything the engine emits is streamed back. Execute is a unary
// call for stateless synchronous requests.
//
// Messages travel as google.protobuf.BytesValue holding the raw JSON, so no
// generated stubs are needed on either side; the service descriptor is
// declared by hand in service.go.
//
// Typical use:
//
//	srv := grpc.NewServer()
//	bridge.NewServer(tdjson.Factory(), logger).Register(srv)
//
//	conn, _ := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
//	factory := bridge.NewRemote(conn, logger).Factory()
package bridge
