package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/gimbal/internal/monitoring"
)

// UDPSocket defines the socket operations the UDP transport needs. It lets
// tests replace the network with MockUDPSocket.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// UDPSocketFactory creates UDP sockets.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory implements UDPSocketFactory with net.ListenUDP.
type RealUDPSocketFactory struct{}

// ListenUDP opens a UDP socket bound to laddr.
func (RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// UDPConfig describes the two-port UDP link to a camera.
type UDPConfig struct {
	// ListenAddress is the local address responses arrive on, e.g. ":9004".
	ListenAddress string
	// RemoteAddress is the camera's command address, e.g. "192.168.144.108:9003".
	RemoteAddress string
	// RcvBuf sets the socket receive buffer when positive.
	RcvBuf int
	// PollInterval bounds each blocking read so Receive notices cancellation.
	PollInterval time.Duration
	// Factory defaults to RealUDPSocketFactory.
	Factory UDPSocketFactory
}

// UDPTransport sends commands to the camera's control port and receives
// everything that arrives on the local listen port.
type UDPTransport struct {
	conn   UDPSocket
	remote *net.UDPAddr
	poll   time.Duration

	readMu sync.Mutex
	buf    []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewUDP opens the listen socket described by cfg.
func NewUDP(cfg UDPConfig) (*UDPTransport, error) {
	remote, err := net.ResolveUDPAddr("udp", cfg.RemoteAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve remote address %q: %w", cfg.RemoteAddress, err)
	}
	listen := cfg.ListenAddress
	if listen == "" {
		listen = fmt.Sprintf(":%d", DefaultListenPort)
	}
	laddr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve listen address %q: %w", listen, err)
	}
	factory := cfg.Factory
	if factory == nil {
		factory = RealUDPSocketFactory{}
	}
	conn, err := factory.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", listen, err)
	}
	if cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(cfg.RcvBuf); err != nil {
			monitoring.Logf("Warning: failed to set UDP receive buffer size to %d: %v", cfg.RcvBuf, err)
		}
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	monitoring.Logf("UDP transport listening on %s, sending to %s", conn.LocalAddr(), remote)
	return &UDPTransport{
		conn:   conn,
		remote: remote,
		poll:   poll,
		buf:    make([]byte, 2048),
		closed: make(chan struct{}),
	}, nil
}

// Send writes datagram to the camera's control address.
func (t *UDPTransport) Send(ctx context.Context, datagram []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	n, err := t.conn.WriteToUDP(datagram, t.remote)
	if err != nil {
		return err
	}
	if n != len(datagram) {
		return fmt.Errorf("short UDP write: %d of %d bytes", n, len(datagram))
	}
	return nil
}

// Receive returns the next packet from any peer.
func (t *UDPTransport) Receive(ctx context.Context) (Datagram, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()
	for {
		select {
		case <-t.closed:
			return Datagram{}, ErrClosed
		case <-ctx.Done():
			return Datagram{}, ctx.Err()
		default:
		}

		// Bounded reads let the loop observe cancellation.
		t.conn.SetReadDeadline(time.Now().Add(t.poll))
		n, addr, err := t.conn.ReadFromUDP(t.buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return Datagram{}, ErrClosed
			}
			return Datagram{}, err
		}
		d := Datagram{
			Data:       append([]byte(nil), t.buf[:n]...),
			ReceivedAt: time.Now(),
		}
		if addr != nil {
			d.Peer = addr.String()
		}
		return d, nil
	}
}

// Close closes the socket. It is safe to call more than once.
func (t *UDPTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.conn.Close()
	})
	return err
}

// LocalAddr returns the bound listen address.
func (t *UDPTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

func (t *UDPTransport) String() string {
	return fmt.Sprintf("udp %s->%s", t.conn.LocalAddr(), t.remote)
}
