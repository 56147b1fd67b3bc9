package relay

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/wtask/relay/internal/relay/mux"
	"github.com/wtask/relay/internal/relay/registry"
)

type peer struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newServer(test *testing.T, options ...Option) (*Server, net.Listener) {
	test.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		test.Fatal("unable to listen loopback:", err)
	}
	s, err := NewServer(l, options...)
	if err != nil {
		l.Close()
		test.Fatal("relay.NewServer: unexpected error", err)
	}
	test.Cleanup(func() { s.Close() })
	return s, l
}

func startServer(test *testing.T, options ...Option) (*Server, net.Listener) {
	test.Helper()
	s, l := newServer(test, options...)
	if err := s.start(); err != nil {
		test.Fatal("start: unexpected error", err)
	}
	return s, l
}

// cycle - runs single Wait→Dispatch cycle and checks the readiness set is in line with registry.
func cycle(test *testing.T, s *Server) {
	test.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.step(ctx); err != nil {
		test.Fatal("step: unexpected error", err)
	}
	assertReadiness(test, s)
}

func assertReadiness(test *testing.T, s *Server) {
	test.Helper()
	registered := s.clients.Handles()
	slices.Sort(registered)
	if watched := s.mux.Watched(); !reflect.DeepEqual(watched, registered) {
		test.Error("readiness set", watched, "diverged from registry", registered)
	}
}

func dial(test *testing.T, l net.Listener) *peer {
	test.Helper()
	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		test.Fatal("unable to dial:", err)
	}
	test.Cleanup(func() { conn.Close() })
	return &peer{conn, bufio.NewReader(conn)}
}

// join - connects new client with nickname and runs admission cycle.
func join(test *testing.T, s *Server, l net.Listener, nickname string) *peer {
	test.Helper()
	p := dial(test, l)
	p.send(test, nickname)
	cycle(test, s)
	return p
}

func (p *peer) send(test *testing.T, text string) {
	test.Helper()
	if _, err := io.WriteString(p.conn, text); err != nil {
		test.Fatal("client write error", err)
	}
}

func (p *peer) expect(test *testing.T, line string) {
	test.Helper()
	p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	received, err := p.reader.ReadString('\n')
	if err != nil {
		test.Fatalf("expected %q, got error %v", line, err)
	}
	if received != line {
		test.Errorf("expected %q, received %q", line, received)
	}
}

func (p *peer) expectNothing(test *testing.T) {
	test.Helper()
	p.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if received, err := p.reader.ReadString('\n'); err == nil || received != "" {
		test.Errorf("unexpected %q received", received)
	}
}

func (p *peer) expectClosed(test *testing.T) {
	test.Helper()
	p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := p.reader.ReadByte(); err == nil {
		test.Error("connection is still open")
	} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
		test.Error("connection is still open")
	}
}

func TestNewServer(test *testing.T) {
	if _, err := NewServer(nil); err == nil {
		test.Error("expected error for nil listener")
	}
	l, _ := net.Listen("tcp", "127.0.0.1:0")
	defer l.Close()
	options := []Option{
		WithListener(nil),
		WithMaxClients(0),
		WithBufferSize(1),
		WithNicknameSize(1),
		WithHistory(-1),
		WithQueueSize(0),
		WithWriteTimeout(0),
		WithHandshakeTimeout(-time.Second),
	}
	for i, option := range options {
		if _, err := NewServer(l, option); err == nil {
			test.Error("option", i, "expected error")
		}
	}
}

func TestServer_scenario(test *testing.T) {
	s, l := startServer(test, WithHistory(10))

	alice := join(test, s, l, "alice")
	bob := join(test, s, l, "bob")
	bob.expect(test, "alice has joined the chat.\n")
	alice.expect(test, "bob has joined the chat.\n")

	alice.send(test, "hello\n")
	cycle(test, s)
	bob.expect(test, "alice: hello\n")
	alice.expectNothing(test)

	bob.conn.Close()
	cycle(test, s)
	alice.expect(test, "bob has left the chat.\n")
	if s.clients.Len() != 1 {
		test.Error("unexpected number of clients", s.clients.Len())
	}
}

func TestServer_relay(test *testing.T) {
	s, l := startServer(test)
	alice := join(test, s, l, "alice")
	bob := join(test, s, l, "bob")
	carol := join(test, s, l, "carol")
	alice.expect(test, "bob has joined the chat.\n")
	alice.expect(test, "carol has joined the chat.\n")
	bob.expect(test, "carol has joined the chat.\n")

	alice.send(test, "hi\n")
	cycle(test, s)
	bob.expect(test, "alice: hi\n")
	carol.expect(test, "alice: hi\n")
	alice.expectNothing(test)
}

func TestServer_admission_full(test *testing.T) {
	const max = 3
	s, l := startServer(test, WithMaxClients(max), WithHandshakeTimeout(10*time.Second))
	peers := []*peer{}
	for _, name := range []string{"a", "b", "c"} {
		peers = append(peers, join(test, s, l, name))
	}
	if s.clients.Len() != max {
		test.Fatal("expected", max, "clients, got", s.clients.Len())
	}
	watched := s.mux.Watched()

	// idle connection is closed at once, long before handshake timeout
	idle := dial(test, l)
	start := time.Now()
	idle.expectClosed(test)
	if elapsed := time.Since(start); elapsed > time.Second {
		test.Error("connection to full server is kept open for", elapsed)
	}
	extra := dial(test, l)
	io.WriteString(extra.conn, "extra")
	extra.expectClosed(test)

	if s.clients.Len() != max {
		test.Error("rejected connection is registered")
	}
	if !reflect.DeepEqual(s.mux.Watched(), watched) {
		test.Error("rejected connection is watched")
	}
	// rejection is silent
	peers[0].expect(test, "b has joined the chat.\n")
	peers[0].expect(test, "c has joined the chat.\n")
	peers[0].expectNothing(test)

	// slot of leaving client is available again
	peers[2].conn.Close()
	cycle(test, s)
	peers[0].expect(test, "c has left the chat.\n")
	join(test, s, l, "d")
	peers[0].expect(test, "d has joined the chat.\n")
}

func TestServer_admission_fullAfterHandshake(test *testing.T) {
	s, l := startServer(test, WithMaxClients(1))
	alice := join(test, s, l, "alice")

	// admission which has passed accept-time check, but registry is full at dispatch
	conn, late := net.Pipe()
	defer late.Close()
	s.onListenerReady(mux.Event{Kind: mux.EventAdmit, Handle: 1000, Conn: conn, Chunk: []byte("late")})
	late.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := late.Read(make([]byte, 1)); err == nil {
		test.Error("rejected connection is still open")
	}
	if s.clients.Len() != 1 {
		test.Error("rejected connection is registered")
	}
	assertReadiness(test, s)
	alice.expectNothing(test)
}

func TestServer_disconnect_reusesSlot(test *testing.T) {
	s, l := startServer(test, WithMaxClients(2))
	alice := join(test, s, l, "alice")
	bob := join(test, s, l, "bob")
	alice.expect(test, "bob has joined the chat.\n")

	bob.conn.Close()
	cycle(test, s)
	alice.expect(test, "bob has left the chat.\n")
	alice.expectNothing(test)

	join(test, s, l, "carol")
	alice.expect(test, "carol has joined the chat.\n")
	if s.clients.Len() != 2 {
		test.Error("freed slot is not reused", s.clients.Len())
	}
}

func TestServer_disconnect_unknownHandle(test *testing.T) {
	s, l := startServer(test)
	alice := join(test, s, l, "alice")
	bob := join(test, s, l, "bob")
	alice.expect(test, "bob has joined the chat.\n")

	bob.conn.Close()
	cycle(test, s)
	alice.expect(test, "bob has left the chat.\n")

	// repeated and unknown removals do not affect live connections
	for _, h := range []registry.Handle{2, 2, 999} {
		s.onConnectionReady(mux.Event{Kind: mux.EventClosed, Handle: h})
	}
	assertReadiness(test, s)
	if s.clients.Len() != 1 {
		test.Error("live connection is affected", s.clients.Len())
	}
	alice.expectNothing(test)
}

func TestServer_admission_noNickname(test *testing.T) {
	s, l := startServer(test, WithHandshakeTimeout(50*time.Millisecond))
	alice := join(test, s, l, "alice")

	gone := dial(test, l)
	gone.conn.Close()
	cycle(test, s)

	silent := dial(test, l)
	cycle(test, s)
	silent.expectClosed(test)

	if s.clients.Len() != 1 {
		test.Error("connection without nickname is admitted")
	}
	alice.expectNothing(test)
}

func TestServer_admission_emptyNickname(test *testing.T) {
	s, l := startServer(test)
	alice := join(test, s, l, "alice")
	join(test, s, l, " \r\n")

	alice.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := alice.reader.ReadString('\n')
	if err != nil {
		test.Fatal("expected join announcement, got", err)
	}
	if !strings.HasPrefix(line, "guest-") || !strings.HasSuffix(line, " has joined the chat.\n") {
		test.Errorf("unexpected announcement %q", line)
	}
}

func TestServer_admission_boundedNickname(test *testing.T) {
	s, l := startServer(test, WithNicknameSize(6))
	alice := join(test, s, l, "alice")
	join(test, s, l, "maximilian")
	alice.expect(test, "maxim has joined the chat.\n")
}

func TestServer_relay_boundedChunk(test *testing.T) {
	s, l := startServer(test, WithBufferSize(5))
	alice := join(test, s, l, "alice")
	bob := join(test, s, l, "bob")
	alice.expect(test, "bob has joined the chat.\n")

	bob.send(test, "abcdef\n")
	cycle(test, s)
	cycle(test, s)
	alice.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, len("bob: abcdbob: ef\n"))
	if _, err := io.ReadFull(alice.reader, buf); err != nil {
		test.Fatal("read error", err)
	}
	if string(buf) != "bob: abcdbob: ef\n" {
		test.Errorf("unexpected relayed chunks %q", buf)
	}
}

type recorder struct {
	received []string
	err      error
}

func (r *recorder) Send(message string) error {
	if r.err != nil {
		return r.err
	}
	r.received = append(r.received, message)
	return nil
}

func (r *recorder) Close() {}

func TestServer_broadcast(test *testing.T) {
	const max = 5
	for live := 0; live <= max; live++ {
		s, _ := newServer(test, WithMaxClients(max))
		recorders := map[registry.Handle]*recorder{}
		for i := 1; i <= live; i++ {
			h := registry.Handle(i)
			recorders[h] = &recorder{}
			s.clients.Insert(registry.Connection{Handle: h, Name: "c", Sender: recorders[h]})
		}
		for excluded := registry.Handle(1); excluded <= registry.Handle(max); excluded++ {
			for _, r := range recorders {
				r.received = nil
			}
			delivered := s.broadcast("text\n", excluded)
			expected := live
			if int(excluded) <= live {
				expected--
			}
			if delivered != expected {
				test.Error("live", live, "excluded", excluded, "delivered", delivered, "expected", expected)
			}
			for h, r := range recorders {
				switch {
				case h == excluded && len(r.received) != 0:
					test.Error("excluded handle", h, "received", r.received)
				case h != excluded && !reflect.DeepEqual(r.received, []string{"text\n"}):
					test.Error("handle", h, "received", r.received)
				}
			}
		}
		s.Close()
	}
}

func TestServer_broadcast_failure(test *testing.T) {
	s, _ := newServer(test)
	broken := &recorder{err: errors.New("queue is full")}
	first, last := &recorder{}, &recorder{}
	s.clients.Insert(registry.Connection{Handle: 1, Name: "first", Sender: first})
	s.clients.Insert(registry.Connection{Handle: 2, Name: "broken", Sender: broken})
	s.clients.Insert(registry.Connection{Handle: 3, Name: "last", Sender: last})

	if n := s.broadcast("text\n", 0); n != 2 {
		test.Error("unexpected delivered count", n)
	}
	if len(first.received) != 1 || len(last.received) != 1 {
		test.Error("failure of single recipient aborts broadcast")
	}
}

func TestServer_Run(test *testing.T) {
	s, l := newServer(test)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	alice := dial(test, l)
	alice.send(test, "alice")
	bob := dial(test, l)
	// wait alice is admitted before bob sends nickname, so bob is not missed by the announcement
	time.Sleep(50 * time.Millisecond)
	bob.send(test, "bob")
	alice.expect(test, "bob has joined the chat.\n")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			test.Error("Run: unexpected error", err)
		}
	case <-time.After(2 * time.Second):
		test.Fatal("Run has not stopped")
	}
	alice.expectClosed(test)
}

func TestServer_Run_fatal(test *testing.T) {
	s, l := newServer(test)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)
	l.Close()

	select {
	case err := <-done:
		merr := &mux.MultiplexError{}
		if !errors.As(err, &merr) {
			test.Error("expected MultiplexError, got", err)
		}
	case <-time.After(2 * time.Second):
		test.Fatal("Run has not stopped")
	}
}
