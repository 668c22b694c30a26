// Package client implements the client side of the acquisition protocol.
//
// It is used by the probe command and by tests that exercise a running
// server over a real socket.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/muurk/arrayacq/internal/protocol"
)

// ErrUnexpectedResponse is returned when the server replies with a message
// type that does not match the request.
var ErrUnexpectedResponse = errors.New("client: unexpected response")

// RemoteError is an ERROR_RESPONSE returned by the server.
type RemoteError struct {
	Request protocol.Type
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("client: %s rejected: %s", e.Request, e.Message)
}

// Client is a connection to an acquisition server. Methods are safe for
// concurrent use but requests are serialised.
type Client struct {
	// Timeout bounds each request/response exchange. Zero means no limit.
	Timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	msg  *protocol.Message
}

// Dial connects to addr. It does not send CONNECT_REQUEST.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		msg:  protocol.NewMessage(protocol.DefaultLimits()),
	}
}

// Close closes the connection without DISCONNECT_REQUEST.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Connect performs the version handshake.
func (c *Client) Connect() error {
	return c.ConnectVersion(protocol.Version)
}

// ConnectVersion sends CONNECT_REQUEST with an explicit version.
func (c *Client) ConnectVersion(version uint32) error {
	_, err := c.call(protocol.ConnectRequest, version)
	return err
}

// Disconnect sends DISCONNECT_REQUEST and closes the connection. The server
// does not reply.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msg.Prepare(protocol.DisconnectRequest)
	c.deadline()
	sendErr := c.msg.Send(c.conn)
	closeErr := c.conn.Close()
	if sendErr != nil {
		return sendErr
	}
	return closeErr
}

// SignalLength returns the number of samples per channel.
func (c *Client) SignalLength() (uint32, error) {
	v, err := c.call(protocol.GetSignalLengthRequest)
	if err != nil {
		return 0, err
	}
	return v.Uint32(0), nil
}

// Signal returns one acquisition, all channels concatenated.
func (c *Client) Signal() ([]int16, error) {
	v, err := c.call(protocol.GetSignalRequest)
	if err != nil {
		return nil, err
	}
	return v.Int16Array(0), nil
}

// MaxSampleValue returns the largest sample value the device produces.
func (c *Client) MaxSampleValue() (int16, error) {
	v, err := c.call(protocol.GetMaxSampleValueRequest)
	if err != nil {
		return 0, err
	}
	return v.Int16(0), nil
}

// MinSampleValue returns the smallest sample value the device produces.
func (c *Client) MinSampleValue() (int16, error) {
	v, err := c.call(protocol.GetMinSampleValueRequest)
	if err != nil {
		return 0, err
	}
	return v.Int16(0), nil
}

// SamplingFrequency returns the device sampling frequency in Hz.
func (c *Client) SamplingFrequency() (float32, error) {
	v, err := c.call(protocol.GetSamplingFrequencyRequest)
	if err != nil {
		return 0, err
	}
	return v.Float32(0), nil
}

// SetAcquisitionTime sets the acquisition window in seconds.
func (c *Client) SetAcquisitionTime(seconds float32) error {
	_, err := c.call(protocol.SetAcquisitionTimeRequest, seconds)
	return err
}

// SetActiveReceiveElements sends a receive element mask of '0' and '1' characters.
func (c *Client) SetActiveReceiveElements(mask string) error {
	_, err := c.call(protocol.SetActiveReceiveElementsRequest, mask)
	return err
}

// SetActiveTransmitElements sends a transmit element mask.
func (c *Client) SetActiveTransmitElements(mask string) error {
	_, err := c.call(protocol.SetActiveTransmitElementsRequest, mask)
	return err
}

// SetBaseElement selects the first multiplexer element.
func (c *Client) SetBaseElement(element uint32) error {
	_, err := c.call(protocol.SetBaseElementRequest, element)
	return err
}

// SetCenterFrequency sets the pulse center frequency and number of pulses.
func (c *Client) SetCenterFrequency(hz float32, pulses uint32) error {
	_, err := c.call(protocol.SetCenterFrequencyRequest, hz, pulses)
	return err
}

// SetGain sets the receive gain in dB.
func (c *Client) SetGain(db float32) error {
	_, err := c.call(protocol.SetGainRequest, db)
	return err
}

// SetReceiveDelays sends one receive delay per channel.
func (c *Client) SetReceiveDelays(delays []float32) error {
	_, err := c.call(protocol.SetReceiveDelaysRequest, delays)
	return err
}

// SetSamplingFrequency sets the sampling frequency in Hz.
func (c *Client) SetSamplingFrequency(hz float32) error {
	_, err := c.call(protocol.SetSamplingFrequencyRequest, hz)
	return err
}

// SetTransmitDelays sends one transmit delay per channel.
func (c *Client) SetTransmitDelays(delays []float32) error {
	_, err := c.call(protocol.SetTransmitDelaysRequest, delays)
	return err
}

// ExecPreConfiguration opens a configuration block on the device.
func (c *Client) ExecPreConfiguration() error {
	_, err := c.call(protocol.ExecPreConfigurationRequest)
	return err
}

// ExecPostConfiguration closes a configuration block.
func (c *Client) ExecPostConfiguration() error {
	_, err := c.call(protocol.ExecPostConfigurationRequest)
	return err
}

// ExecPreLoopConfiguration opens an acquisition loop.
func (c *Client) ExecPreLoopConfiguration() error {
	_, err := c.call(protocol.ExecPreLoopConfigurationRequest)
	return err
}

// ExecPostLoopConfiguration closes an acquisition loop.
func (c *Client) ExecPostLoopConfiguration() error {
	_, err := c.call(protocol.ExecPostLoopConfigurationRequest)
	return err
}

// call sends typ with args and decodes the reply against the schema.
func (c *Client) call(typ protocol.Type, args ...any) (protocol.Values, error) {
	schema, ok := protocol.Lookup(typ)
	if !ok {
		return nil, fmt.Errorf("client: %s is not a request", typ)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.msg.Prepare(typ)
	if err := protocol.Encode(c.msg.Payload, schema.Params, args...); err != nil {
		return nil, err
	}
	c.deadline()
	if err := c.msg.Send(c.conn); err != nil {
		return nil, err
	}

	resp, err := c.msg.Receive(c.conn)
	if err != nil {
		return nil, err
	}

	if resp == protocol.ErrorResponse {
		text, err := c.msg.Payload.ReadString()
		if err != nil {
			return nil, fmt.Errorf("client: decode %s: %w", resp, err)
		}
		return nil, &RemoteError{Request: typ, Message: text}
	}
	if resp != schema.Response {
		return nil, fmt.Errorf("%w: %s for %s", ErrUnexpectedResponse, resp, typ)
	}

	values, err := protocol.Decode(c.msg.Payload, schema.Results)
	if err != nil {
		return nil, fmt.Errorf("client: decode %s: %w", resp, err)
	}
	if err := c.msg.Payload.ExpectEnd(); err != nil {
		return nil, fmt.Errorf("client: decode %s: %w", resp, err)
	}
	return values, nil
}

func (c *Client) deadline() {
	if c.Timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.Timeout))
	}
}
