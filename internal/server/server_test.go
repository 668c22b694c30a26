package server

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/muurk/arrayacq/internal/client"
	"github.com/muurk/arrayacq/internal/dataset"
	"github.com/muurk/arrayacq/internal/device"
	"github.com/muurk/arrayacq/internal/protocol"
	"github.com/muurk/arrayacq/internal/session"
)

func newDispatcher(t *testing.T) *session.Dispatcher {
	t.Helper()
	dev, err := device.NewSimulated(dataset.Synthetic(2, 16, 40e6, 5e6), device.Config{Pause: -1, Seed: 3})
	if err != nil {
		t.Fatalf("NewSimulated() error = %v", err)
	}
	return session.New(dev)
}

func dial(t *testing.T, addr string) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	c.Timeout = 2 * time.Second
	t.Cleanup(func() { c.Close() })
	return c
}

func TestAcceptorServeOne(t *testing.T) {
	acc, err := NewAcceptor("127.0.0.1:0", newDispatcher(t))
	if err != nil {
		t.Fatalf("NewAcceptor() error = %v", err)
	}
	defer acc.Close()

	var accepted string
	acc.OnAccept = func(remote string) { accepted = remote }

	done := make(chan error, 1)
	go func() { done <- acc.ServeOne(context.Background()) }()

	c := dial(t, acc.Addr().String())
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if n, err := c.SignalLength(); err != nil || n != 16 {
		t.Errorf("SignalLength() = %d, %v; want 16", n, err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeOne() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ServeOne did not return")
	}
	if accepted == "" {
		t.Error("OnAccept was not called")
	}
}

func TestAcceptorBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	acc, err := NewAcceptor(ln.Addr().String(), newDispatcher(t))
	if err == nil {
		acc.Close()
		t.Fatal("NewAcceptor() on a bound port error = nil, want error")
	}
	if acc != nil {
		t.Error("NewAcceptor() returned an acceptor with an error")
	}
}

func TestAcceptorCloseInterruptsSession(t *testing.T) {
	acc, err := NewAcceptor("127.0.0.1:0", newDispatcher(t))
	if err != nil {
		t.Fatalf("NewAcceptor() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- acc.ServeOne(context.Background()) }()

	c := dial(t, acc.Addr().String())
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := acc.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("ServeOne() error = %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not interrupt ServeOne")
	}

	if _, err := c.SignalLength(); err == nil {
		t.Error("request after Close succeeded, want error")
	}
	if err := acc.ServeOne(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("ServeOne() after Close error = %v, want ErrClosed", err)
	}
}

func TestAcceptorUnknownTypeEndsSession(t *testing.T) {
	acc, err := NewAcceptor("127.0.0.1:0", newDispatcher(t))
	if err != nil {
		t.Fatalf("NewAcceptor() error = %v", err)
	}
	defer acc.Close()

	done := make(chan error, 1)
	go func() { done <- acc.ServeOne(context.Background()) }()

	conn, err := net.Dial("tcp", acc.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	m := protocol.NewMessage(protocol.DefaultLimits())
	m.Prepare(protocol.Type(9999))
	if err := m.Send(conn); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case err := <-done:
		var pv *session.ProtocolViolation
		if !errors.As(err, &pv) {
			t.Errorf("ServeOne() error = %v, want ProtocolViolation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ServeOne did not return")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := m.Receive(conn); !errors.Is(err, protocol.ErrPeerClosed) {
		t.Errorf("Receive() error = %v, want ErrPeerClosed (no response)", err)
	}
}

func waitState(t *testing.T, c *Controller, want State) Status {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if st := c.Status(); st.State == want {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", c.State(), want)
	return Status{}
}

type fakeAdvertiser struct {
	mu       sync.Mutex
	ports    []int
	withdraw int
}

func (f *fakeAdvertiser) Advertise(port int) (func(), error) {
	f.mu.Lock()
	f.ports = append(f.ports, port)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.withdraw++
		f.mu.Unlock()
	}, nil
}

func TestControllerLifecycle(t *testing.T) {
	adv := &fakeAdvertiser{}
	ctrl := NewController(ControllerConfig{
		Host:       "127.0.0.1",
		Dispatcher: newDispatcher(t),
		Pause:      10 * time.Millisecond,
		Advertiser: adv,
	})
	events, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	if ctrl.State() != StateIdle {
		t.Fatalf("initial state = %s, want idle", ctrl.State())
	}
	if err := ctrl.Enable(0); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if err := ctrl.Enable(0); !errors.Is(err, ErrAlreadyEnabled) {
		t.Errorf("second Enable() error = %v, want ErrAlreadyEnabled", err)
	}

	st := waitState(t, ctrl, StateListening)
	if st.Port == 0 {
		t.Fatal("listening status has no port")
	}
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(st.Port))

	// Two sessions in a row on the same listener.
	for i := 0; i < 2; i++ {
		c := dial(t, addr)
		if err := c.Connect(); err != nil {
			t.Fatalf("session %d: Connect() error = %v", i, err)
		}
		if st := waitState(t, ctrl, StateServing); st.Remote == "" {
			t.Errorf("session %d: serving status has no remote address", i)
		}
		if err := c.Disconnect(); err != nil {
			t.Fatalf("session %d: Disconnect() error = %v", i, err)
		}
		waitState(t, ctrl, StateListening)
	}

	if got := ctrl.Status().Stats.Sessions; got != 2 {
		t.Errorf("Stats.Sessions = %d, want 2", got)
	}

	ctrl.Disable()
	waitState(t, ctrl, StateIdle)
	if _, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		t.Error("dial after Disable succeeded, want refused")
	}

	adv.mu.Lock()
	if len(adv.ports) != 1 || adv.ports[0] != st.Port || adv.withdraw != 1 {
		t.Errorf("advertiser ports = %v, withdrawn = %d", adv.ports, adv.withdraw)
	}
	adv.mu.Unlock()

	ctrl.Exit()
	select {
	case <-ctrl.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Exit")
	}
	if ctrl.State() != StateExiting {
		t.Errorf("state = %s, want exiting", ctrl.State())
	}
	if err := ctrl.Enable(0); !errors.Is(err, ErrExiting) {
		t.Errorf("Enable() after Exit error = %v, want ErrExiting", err)
	}

	// The subscriber saw the full sequence.
	var seen []State
	for {
		select {
		case ev := <-events:
			seen = append(seen, ev.State)
			continue
		default:
		}
		break
	}
	want := []State{StateListening, StateServing, StateListening, StateServing, StateListening, StateIdle, StateExiting}
	if len(seen) != len(want) {
		t.Fatalf("events = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("events = %v, want %v", seen, want)
			break
		}
	}
}

func TestControllerSessionErrorDisables(t *testing.T) {
	ctrl := NewController(ControllerConfig{
		Host:       "127.0.0.1",
		Dispatcher: newDispatcher(t),
		Pause:      10 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)
	defer func() {
		cancel()
		<-ctrl.Done()
	}()

	if err := ctrl.Enable(0); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	st := waitState(t, ctrl, StateListening)

	// Dropping the connection without DISCONNECT is a session error.
	c := dial(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(st.Port)))
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	c.Close()

	st = waitState(t, ctrl, StateIdle)
	if st.LastError == "" {
		t.Error("LastError is empty after a failed session")
	}

	// It can be enabled again.
	if err := ctrl.Enable(0); err != nil {
		t.Errorf("Enable() after error = %v", err)
	}
	waitState(t, ctrl, StateListening)
}

func TestControllerKeepEnabled(t *testing.T) {
	ctrl := NewController(ControllerConfig{
		Host:        "127.0.0.1",
		Dispatcher:  newDispatcher(t),
		Pause:       10 * time.Millisecond,
		KeepEnabled: true,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)
	defer func() {
		cancel()
		<-ctrl.Done()
	}()

	if err := ctrl.Enable(0); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	st := waitState(t, ctrl, StateListening)
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(st.Port))

	c := dial(t, addr)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	c.Close()

	// Still accepting.
	c2 := dial(t, addr)
	if err := c2.Connect(); err != nil {
		t.Fatalf("Connect() on second session error = %v", err)
	}
	if ctrl.Status().LastError == "" {
		t.Error("LastError is empty after a failed session")
	}
}

func TestControllerBindErrorDisables(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	ctrl := NewController(ControllerConfig{Host: "127.0.0.1", Dispatcher: newDispatcher(t)})
	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)
	defer func() {
		cancel()
		<-ctrl.Done()
	}()

	if err := ctrl.Enable(port); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for ctrl.Status().LastError == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	st := ctrl.Status()
	if st.State != StateIdle || st.LastError == "" {
		t.Errorf("status after bind error = %+v, want idle with error", st)
	}
}

func TestControllerContextCancelExits(t *testing.T) {
	ctrl := NewController(ControllerConfig{Host: "127.0.0.1", Dispatcher: newDispatcher(t)})
	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)

	if err := ctrl.Enable(0); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	waitState(t, ctrl, StateListening)
	cancel()

	select {
	case <-ctrl.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	ctrl := NewController(ControllerConfig{Host: "127.0.0.1", Dispatcher: newDispatcher(t)})
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-ctrl.Done()
	}()
	go ctrl.Run(ctx)

	ch, unsubscribe := ctrl.Subscribe()
	unsubscribe()
	unsubscribe()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("received an event after unsubscribe, want closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel still open after unsubscribe")
	}

	// State changes after unsubscribe must not touch the closed channel.
	if err := ctrl.Enable(0); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	waitState(t, ctrl, StateListening)
}

func TestStateJSON(t *testing.T) {
	for s, want := range map[State]string{StateIdle: "idle", StateServing: "serving", State(42): "unknown"} {
		b, _ := s.MarshalText()
		if string(b) != want {
			t.Errorf("MarshalText(%d) = %q, want %q", int(s), b, want)
		}
	}
}
