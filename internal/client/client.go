// Package client implements chat relay client.
//
// Client runs two independent flows over the same connection: inbound flow prints
// everything received from the relay, outbound flow sends lines read from the terminal.
// Each flow may block on its own source without affecting the other one.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wtask/relay/internal/relay/message"
)

// Client - connection to the relay.
type Client struct {
	conn     net.Conn
	bufSize  int
	nickSize int
}

type clientOption func(c *Client) error

// WithBufferSize - overwrites default buffer size (1024).
// Single send is bounded to size-1 bytes, longer lines are split.
func WithBufferSize(size int) clientOption {
	return func(c *Client) error {
		if size <= 1 {
			return fmt.Errorf("client.WithBufferSize: invalid size (%d)", size)
		}
		c.bufSize = size
		return nil
	}
}

// WithNicknameSize - overwrites default nickname size (32).
// Nickname is bounded to size-1 bytes.
func WithNicknameSize(size int) clientOption {
	return func(c *Client) error {
		if size <= 1 {
			return fmt.Errorf("client.WithNicknameSize: invalid size (%d)", size)
		}
		c.nickSize = size
		return nil
	}
}

// New - builds client over established connection.
func New(conn net.Conn, options ...clientOption) (*Client, error) {
	if conn == nil {
		return nil, errors.New("client.New: connection is nil")
	}
	c := &Client{
		conn:     conn,
		bufSize:  1024,
		nickSize: 32,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Dial - connects the relay at addr and announces nickname.
func Dial(ctx context.Context, addr, nickname string, options ...clientOption) (*Client, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client.Dial: %w", err)
	}
	c, err := New(conn, options...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := c.Join(nickname); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Join - sends nickname, which must be the first data sent over connection.
func (c *Client) Join(nickname string) error {
	nickname = strings.TrimSpace(message.Truncate(strings.TrimSpace(nickname), c.nickSize-1))
	if nickname == "" {
		return ErrNickname
	}
	if _, err := io.WriteString(c.conn, nickname); err != nil {
		return fmt.Errorf("client.Join: %w", err)
	}
	return nil
}

// Close - closes connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Run - runs inbound and outbound flows until the relay disconnects, input is over or ctx is done.
// Returns nil when input is over, ErrServerGone when the relay has closed connection
// and ctx error when ctx is done.
func (c *Client) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	g, ctx := errgroup.WithContext(ctx)
	// unblocks inbound flow
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	lines := make(chan string)
	// terminal read can not be interrupted, so the scanner is not a member of the group
	go c.scan(in, lines, ctx.Done())

	g.Go(func() error {
		return c.display(ctx, out)
	})
	g.Go(func() error {
		return c.post(ctx, lines)
	})

	err := g.Wait()
	if errors.Is(err, errInputClosed) {
		return nil
	}
	return err
}

// display - inbound flow, copies received chunks verbatim.
func (c *Client) display(ctx context.Context, out io.Writer) error {
	buf := make([]byte, c.bufSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("client: display: %w", werr)
			}
		}
		switch {
		case err == nil:
			continue
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, io.EOF):
			return ErrServerGone
		default:
			return fmt.Errorf("%w: %v", ErrServerGone, err)
		}
	}
}

// post - outbound flow, sends scanned lines.
func (c *Client) post(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return errInputClosed
			}
			if _, err := io.WriteString(c.conn, line); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("client: send: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// scan - reads input lines and splits them into chunks bounded to bufSize-1 bytes.
func (c *Client) scan(in io.Reader, lines chan<- string, done <-chan struct{}) {
	defer close(lines)
	r := bufio.NewReader(in)
	for {
		line, err := r.ReadString('\n')
		for len(line) > 0 {
			chunk := message.Truncate(line, c.bufSize-1)
			if chunk == "" {
				// single rune is longer than the limit
				chunk = line[:min(len(line), c.bufSize-1)]
			}
			line = line[len(chunk):]
			select {
			case lines <- chunk:
			case <-done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}
