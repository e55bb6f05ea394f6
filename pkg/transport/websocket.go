// Package transport carries game messages over a websocket connection.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReadTimeout      = 30 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
)

var ErrClosed = errors.New("connection closed")

// Options tunes the client. A zero Read or Write timeout disables that deadline.
type Options struct {
	HandshakeTimeout   time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	Header             http.Header
	InsecureSkipVerify bool
}

func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: DefaultHandshakeTimeout,
		ReadTimeout:      DefaultReadTimeout,
		WriteTimeout:     DefaultWriteTimeout,
	}
}

// Conn is a websocket client exchanging JSON text messages. Send and Recv
// are meant to be called from a single goroutine; Close may be called from any.
type Conn struct {
	ws   *websocket.Conn
	opts Options

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial opens a websocket connection to url (ws:// or wss://).
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify,
		},
	}

	ws, resp, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s: %w (status %s)", url, err, resp.Status)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return &Conn{ws: ws, opts: opts, closed: make(chan struct{})}, nil
}

// Send writes v as one JSON text message.
func (c *Conn) Send(ctx context.Context, v interface{}) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if err := c.ws.SetWriteDeadline(deadline(ctx, c.opts.WriteTimeout)); err != nil {
		return err
	}
	if err := c.ws.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Recv blocks for the next data message. Cancelling ctx or hitting the read
// timeout fails the read and leaves the connection unusable.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	if err := c.ws.SetReadDeadline(deadline(ctx, c.opts.ReadTimeout)); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		select {
		case <-c.closed:
			return nil, ErrClosed
		default:
		}
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	return data, nil
}

// Close sends a normal close frame and releases the socket.
func (c *Conn) Close() error {
	err := ErrClosed
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) check(ctx context.Context) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	return ctx.Err()
}

// deadline picks the earlier of ctx's deadline and now+timeout. The zero
// time means no deadline.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}
