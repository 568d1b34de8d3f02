package gimbal

import (
	"github.com/banshee-data/gimbal/internal/config"
	"github.com/banshee-data/gimbal/internal/gimbal/dispatch"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
	"github.com/banshee-data/gimbal/internal/transport"
)

// ConfigFrom derives session settings from the file configuration.
func ConfigFrom(cfg *config.GimbalConfig) Config {
	return Config{
		Codec:  frame.Codec{Checksum: cfg.GetChecksum()},
		Source: cfg.GetSourceRole(),
		Dispatch: dispatch.Options{
			Timeout:    cfg.GetTimeout(),
			MaxRetries: cfg.GetRetryCount(),
		},
		SubscriberBuffer: cfg.GetSubscriberBuffer(),
	}
}

// OpenLink opens the transport named by cfg: the two-port UDP link by
// default, or the UART when transport is "serial".
func OpenLink(cfg *config.GimbalConfig) (transport.Transport, error) {
	if cfg.GetTransport() == config.TransportSerial {
		codec := frame.Codec{Checksum: cfg.GetChecksum()}
		tr, err := transport.OpenSerial(cfg.GetSerialPort(), transport.PortOptions{BaudRate: cfg.GetBaudRate()}, codec)
		if err != nil {
			return nil, err
		}
		return tr, nil
	}
	tr, err := transport.NewUDP(transport.UDPConfig{
		ListenAddress: cfg.ListenAddress(),
		RemoteAddress: cfg.CameraAddress(),
		RcvBuf:        cfg.GetRcvBuf(),
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}
