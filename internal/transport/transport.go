// Package transport carries gimbal frames over UDP, a serial line or an
// in-memory pipe. Every transport moves whole datagrams: the UDP transport
// maps one frame to one packet and the serial transport splits the byte
// stream back into frames before handing them up.
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Send and Receive after Close.
var ErrClosed = errors.New("transport: closed")

// Default UDP ports used by SIP-series gimbal cameras.
const (
	DefaultControlPort = 9003 // camera listens for commands
	DefaultListenPort  = 9004 // host receives responses and telemetry
)

// Datagram is one unit received from the gimbal link.
type Datagram struct {
	Data       []byte
	Peer       string
	ReceivedAt time.Time
}

// Transport is a bidirectional datagram link to a gimbal.
type Transport interface {
	// Send writes one datagram to the gimbal.
	Send(ctx context.Context, datagram []byte) error
	// Receive blocks until a datagram arrives, ctx is done or the transport
	// is closed. The returned data is owned by the caller.
	Receive(ctx context.Context) (Datagram, error)
	// Close releases the underlying socket or port and unblocks Receive.
	Close() error
	// String names the link for logs.
	String() string
}
