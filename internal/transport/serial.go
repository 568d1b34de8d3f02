package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/gimbal/internal/gimbal/frame"
	"github.com/banshee-data/gimbal/internal/monitoring"
)

// DefaultBaudRate is the UART rate of SIP-series gimbals.
const DefaultBaudRate = 115200

// SerialPorter is the minimal interface needed for a serial port.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// PortOptions describes the serial connection parameters.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and applies defaults for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}
	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// SerialMode converts the options into the go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{BaudRate: opts.BaudRate, DataBits: opts.DataBits}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	} else {
		mode.StopBits = serial.OneStopBit
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode, nil
}

// OpenSerial opens the UART at path and wraps it in a SerialTransport.
func OpenSerial(path string, opts PortOptions, codec frame.Codec) (*SerialTransport, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	monitoring.Logf("Serial transport opened %s at %d baud", path, mode.BaudRate)
	return NewSerial(path, port, codec), nil
}

// SerialTransport carries frames over a byte stream. Outbound datagrams are
// written as-is; the inbound stream is split into frames with codec.Split.
type SerialTransport struct {
	name string
	port SerialPorter

	writeMu sync.Mutex
	frames  chan []byte
	errc    chan error

	closeOnce sync.Once
	closed    chan struct{}
}

// NewSerial starts reading frames from port. The transport owns port and
// closes it on Close.
func NewSerial(name string, port SerialPorter, codec frame.Codec) *SerialTransport {
	t := &SerialTransport{
		name:   name,
		port:   port,
		frames: make(chan []byte, 64),
		errc:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	go t.read(codec)
	return t
}

func (t *SerialTransport) read(codec frame.Codec) {
	defer close(t.frames)
	scan := bufio.NewScanner(t.port)
	scan.Buffer(make([]byte, 0, 1024), frame.HeaderLen+frame.MaxExtendedPayload+codec.Checksum.Size())
	scan.Split(codec.Split)
	for scan.Scan() {
		tok := append([]byte(nil), scan.Bytes()...)
		select {
		case t.frames <- tok:
		case <-t.closed:
			return
		}
	}
	if err := scan.Err(); err != nil {
		t.errc <- err
	}
}

// Send writes datagram to the port.
func (t *SerialTransport) Send(ctx context.Context, datagram []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	n, err := t.port.Write(datagram)
	if err != nil {
		return err
	}
	if n != len(datagram) {
		return fmt.Errorf("short serial write: %d of %d bytes", n, len(datagram))
	}
	return nil
}

// Receive returns the next frame split from the stream. When the stream
// ends it returns the read error, or io.EOF.
func (t *SerialTransport) Receive(ctx context.Context) (Datagram, error) {
	select {
	case <-ctx.Done():
		return Datagram{}, ctx.Err()
	case <-t.closed:
		return Datagram{}, ErrClosed
	case b, ok := <-t.frames:
		if !ok {
			select {
			case <-t.closed:
				return Datagram{}, ErrClosed
			case err := <-t.errc:
				t.errc <- err
				return Datagram{}, err
			default:
				return Datagram{}, io.EOF
			}
		}
		return Datagram{Data: b, Peer: t.name, ReceivedAt: time.Now()}, nil
	}
}

// Close closes the port, which ends the reader.
func (t *SerialTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.port.Close()
	})
	return err
}

func (t *SerialTransport) String() string { return "serial " + t.name }
