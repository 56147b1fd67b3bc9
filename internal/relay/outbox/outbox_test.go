package outbox

import (
	"bufio"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/wtask/relay/pkg/background"
)

func TestStart_ErrorCase(test *testing.T) {
	scope, cancel := background.NewScope()
	defer cancel()
	c, _ := net.Pipe()
	defer c.Close()

	if _, err := Start(nil, c); err == nil {
		test.Error("Start: expected error for nil scope")
	}
	if _, err := Start(scope, nil); err == nil {
		test.Error("Start: expected error for nil connection")
	}
	if _, err := Start(scope, c, WithQueueSize(0)); err == nil {
		test.Error("Start: expected error for invalid queue size")
	}
	if _, err := Start(scope, c, WithWriteTimeout(-time.Second)); err == nil {
		test.Error("Start: expected error for invalid write timeout")
	}
}

func TestOutbox_Send(test *testing.T) {
	scope, cancel := background.NewScope()
	defer cancel()
	client, server := net.Pipe()
	defer client.Close()

	o, err := Start(scope, server)
	if err != nil {
		test.Fatal("Start: unexpected error", err)
	}
	defer o.Close()

	messages := []string{"alice has joined the chat.\n", "alice: hi\n"}
	for _, m := range messages {
		if err := o.Send(m); err != nil {
			test.Error("Send: unexpected error", err)
		}
	}
	reader := bufio.NewReader(client)
	client.SetReadDeadline(time.Now().Add(time.Second))
	for _, expected := range messages {
		line, err := reader.ReadString('\n')
		if err != nil {
			test.Fatal("client read error", err)
		}
		if line != expected {
			test.Errorf("Expected %q, received %q", expected, line)
		}
	}
}

func TestOutbox_Send_full(test *testing.T) {
	scope, cancel := background.NewScope()
	defer cancel()
	client, server := net.Pipe()
	defer client.Close()

	// nobody reads the client side, so the writer is stuck on the first message
	o, _ := Start(scope, server, WithQueueSize(1), WithWriteTimeout(time.Minute))
	defer o.Close()

	var full bool
	for i := 0; i < 10 && !full; i++ {
		err := o.Send("message\n")
		switch {
		case errors.Is(err, ErrFull):
			full = true
		case err != nil:
			test.Fatal("Send: unexpected error", err)
		}
	}
	if !full {
		test.Error("Expected", ErrFull, "for stalled connection")
	}
}

func TestOutbox_writeFailure(test *testing.T) {
	scope, cancel := background.NewScope()
	defer cancel()
	client, server := net.Pipe()

	o, _ := Start(scope, server, WithWriteTimeout(10*time.Millisecond))
	defer o.Close()

	o.Send("nobody reads me\n")
	deadline := time.Now().Add(time.Second)
	for o.Err() == nil {
		if time.Now().After(deadline) {
			test.Fatal("writer has not failed on write timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := o.Send("next\n"); !errors.Is(err, ErrClosed) {
		test.Error("Expected error:", ErrClosed, "got:", err)
	}
	// writer closes connection, so the peer observes EOF
	client.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 16)
	for {
		if _, err := client.Read(buf); err != nil {
			break
		}
	}
}

func TestOutbox_Close(test *testing.T) {
	scope, cancel := background.NewScope()
	client, server := net.Pipe()
	defer client.Close()

	o, _ := Start(scope, server)
	o.Close()
	o.Close()
	if err := o.Send("late\n"); !errors.Is(err, ErrClosed) {
		test.Error("Expected error:", ErrClosed, "got:", err)
	}
	// scope is able to stop since the writer has returned
	done := make(chan struct{})
	go func() {
		cancel()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		test.Error("writer is still running after Close")
	}
}
