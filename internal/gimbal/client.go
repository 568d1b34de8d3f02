package gimbal

import (
	"context"
	"fmt"

	"github.com/banshee-data/gimbal/internal/gimbal/command"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
)

// Client exposes gimbal operations in physical units. Reads wait for the
// device's reply; writes are posted, since the gimbal does not acknowledge
// motion and lens commands.
type Client struct {
	s *Session
	b command.Builder
}

// NewClient returns a Client over s.
func NewClient(s *Session) *Client {
	return &Client{s: s, b: s.Builder()}
}

// Session returns the underlying session.
func (c *Client) Session() *Session { return c.s }

// read sends req and interprets the reply as a T.
func read[T any](ctx context.Context, c *Client, req frame.Frame) (T, error) {
	var zero T
	resp, err := c.s.Send(ctx, req)
	if err != nil {
		return zero, err
	}
	v, err := command.Interpret(resp)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("gimbal: %s reply is %T, want %T", req.Identifier, v, zero)
	}
	return out, nil
}

// Attitude reads the magnetic attitude.
func (c *Client) Attitude(ctx context.Context) (command.Attitude, error) {
	return read[command.Attitude](ctx, c, c.b.ReadAttitude())
}

// GyroAttitude reads the gyro attitude.
func (c *Client) GyroAttitude(ctx context.Context) (command.Attitude, error) {
	return read[command.Attitude](ctx, c, c.b.ReadGyroAttitude())
}

// ZoomPosition reads the lens zoom motor position.
func (c *Client) ZoomPosition(ctx context.Context) (command.ZoomPosition, error) {
	return read[command.ZoomPosition](ctx, c, c.b.ReadZoomPosition())
}

// FocusPosition reads the lens focus motor position.
func (c *Client) FocusPosition(ctx context.Context) (command.FocusPosition, error) {
	return read[command.FocusPosition](ctx, c, c.b.ReadFocusPosition())
}

// Recording reports whether the camera is recording.
func (c *Client) Recording(ctx context.Context) (bool, error) {
	r, err := read[command.Recording](ctx, c, c.b.ReadRecording())
	return bool(r), err
}

// Version reads the firmware version.
func (c *Client) Version(ctx context.Context) (string, error) {
	v, err := read[command.Version](ctx, c, c.b.ReadVersion())
	return string(v), err
}

// Move starts or stops a pan/tilt action.
func (c *Client) Move(ctx context.Context, a command.PTZAction) error {
	return c.s.Post(ctx, c.b.Move(a))
}

// Zoom starts or stops the zoom motor.
func (c *Client) Zoom(ctx context.Context, a command.ZoomAction) error {
	return c.s.Post(ctx, c.b.Zoom(a))
}

// Focus starts or stops the focus motor, or switches focus mode.
func (c *Client) Focus(ctx context.Context, a command.FocusAction) error {
	return c.s.Post(ctx, c.b.Focus(a))
}

// Record starts, stops or toggles recording.
func (c *Client) Record(ctx context.Context, a command.RecordAction) error {
	return c.s.Post(ctx, c.b.Record(a))
}

// SetSpeed drives yaw and pitch at the given rates in degrees per second.
func (c *Client) SetSpeed(ctx context.Context, yaw, pitch float64) error {
	f, err := c.b.SetSpeed(yaw, pitch)
	if err != nil {
		return err
	}
	return c.s.Post(ctx, f)
}

// MoveYaw turns to an absolute yaw angle.
func (c *Client) MoveYaw(ctx context.Context, angle, speed float64) error {
	f, err := c.b.MoveYaw(angle, speed)
	if err != nil {
		return err
	}
	return c.s.Post(ctx, f)
}

// Track starts tracking r; a zero rectangle stops tracking.
func (c *Client) Track(ctx context.Context, r command.TrackingRect) error {
	return c.s.Post(ctx, c.b.Track(r))
}

// SetAttitudeAutoSend turns periodic attitude telemetry on or off. The
// resulting GAC frames arrive as telemetry events.
func (c *Client) SetAttitudeAutoSend(ctx context.Context, on bool) error {
	return c.s.Post(ctx, c.b.SetAttitudeAutoSend(on))
}

// Do sends an arbitrary frame: reads wait for their reply, writes are
// posted and return the zero Frame.
func (c *Client) Do(ctx context.Context, f frame.Frame) (frame.Frame, error) {
	if f.Control == frame.Read {
		return c.s.Send(ctx, f)
	}
	return frame.Frame{}, c.s.Post(ctx, f)
}
