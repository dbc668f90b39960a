package dbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/presentd/internal/model"
)

// Client calls a running presentd over the session bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// NewClient connects to the session bus.
func NewClient() (*Client, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{
		conn: conn,
		obj:  conn.Object(DBusBusName, DBusPath),
	}, nil
}

// Request describes a RequestWindow call.
type Request struct {
	WindowID      string
	InterfaceName string
	Lifespan      model.Lifespan
	Timeout       model.Timeout
	Metadata      string
}

func (c *Client) call(ctx context.Context, method string, args ...any) *dbus.Call {
	return c.obj.CallWithContext(ctx, DBusInterface+"."+method, 0, args...)
}

// RequestWindow asks the daemon for a presentation and returns its token.
func (c *Client) RequestWindow(ctx context.Context, req Request) (model.Token, error) {
	var token uint64
	err := c.call(ctx, "RequestWindow",
		req.WindowID,
		req.InterfaceName,
		req.Lifespan.String(),
		req.Timeout.Millis(),
		req.Metadata,
	).Store(&token)
	if err != nil {
		return 0, fromDBusError(err)
	}
	return model.Token(token), nil
}

// Dismiss dismisses the presentation behind token.
func (c *Client) Dismiss(ctx context.Context, token model.Token) error {
	return fromDBusError(c.call(ctx, "Dismiss", uint64(token)).Err)
}

// Foreground foregrounds the presentation behind token.
func (c *Client) Foreground(ctx context.Context, token model.Token) error {
	return fromDBusError(c.call(ctx, "Foreground", uint64(token)).Err)
}

// SetMetadata replaces the metadata of a presentation.
func (c *Client) SetMetadata(ctx context.Context, token model.Token, metadata string) error {
	return fromDBusError(c.call(ctx, "SetMetadata", uint64(token), metadata).Err)
}

// SetLifespan changes the lifespan of a presentation.
func (c *Client) SetLifespan(ctx context.Context, token model.Token, lifespan model.Lifespan) error {
	return fromDBusError(c.call(ctx, "SetLifespan", uint64(token), lifespan.String()).Err)
}

// SetTimeout changes the timeout of a presentation.
func (c *Client) SetTimeout(ctx context.Context, token model.Token, timeout model.Timeout) error {
	return fromDBusError(c.call(ctx, "SetTimeout", uint64(token), timeout.Millis()).Err)
}

// NavigateBack sends a back event to the focused window and reports
// whether a presentation was dismissed.
func (c *Client) NavigateBack(ctx context.Context) (bool, error) {
	var dismissed bool
	if err := c.call(ctx, "NavigateBack").Store(&dismissed); err != nil {
		return false, fromDBusError(err)
	}
	return dismissed, nil
}

// ClearPresentations clears every window.
func (c *Client) ClearPresentations(ctx context.Context) error {
	return fromDBusError(c.call(ctx, "ClearPresentations").Err)
}

// ClearJournal empties the daemon's state journal and returns how many
// entries were removed.
func (c *Client) ClearJournal(ctx context.Context) (int, error) {
	var removed uint32
	if err := c.call(ctx, "ClearJournal").Store(&removed); err != nil {
		return 0, fromDBusError(err)
	}
	return int(removed), nil
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var raw string
	if err := c.call(ctx, "GetStatus").Store(&raw); err != nil {
		return nil, fromDBusError(err)
	}

	var status Status
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &status, nil
}

// IsRunning reports whether a daemon owns the bus name.
func (c *Client) IsRunning(ctx context.Context) bool {
	var hasOwner bool
	err := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, DBusBusName).Store(&hasOwner)
	return err == nil && hasOwner
}
