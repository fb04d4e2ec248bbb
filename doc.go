// Package canlink drives a CAN link: it owns a transport, keeps one read
// outstanding on a small reactor, and fans received frames and link state
// changes out to listeners.
//
// It includes:
//   - Frame and Header value types with validation and SocketCAN encoding
//   - Core, the transport-independent driver loop
//   - Threaded, which runs a driver on its own goroutine and waits for Ready
//   - StateWaiter, for blocking until a driver reaches a link status
//   - Mux, frame filters and a logging transport decorator
//   - An in-memory loopback transport; SocketCAN lives in package socketcan
package canlink
