// Package socketcan implements a canlink.Transport over Linux SocketCAN raw
// sockets, plus helpers to inspect and configure CAN network interfaces.
//
// Reads and writes go through the runtime poller, so Cancel and Close
// unblock a pending Read without extra goroutines. Controller error frames
// are requested from the kernel according to the error mask and surface as
// frames with Header.Error set.
//
// On platforms other than Linux every operation fails with ErrUnsupported.
package socketcan
