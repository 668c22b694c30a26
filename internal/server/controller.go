package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/arrayacq/internal/logging"
	"github.com/muurk/arrayacq/internal/metrics"
	"github.com/muurk/arrayacq/internal/session"
)

// State is the lifecycle state of a Controller.
type State int

const (
	StateIdle State = iota
	StateListening
	StateServing
	StateExiting
)

var stateNames = []string{"idle", "listening", "serving", "exiting"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DefaultPause is the delay between the end of a session and the next accept.
const DefaultPause = time.Second

var (
	// ErrAlreadyEnabled is returned by Enable while the server is enabled.
	ErrAlreadyEnabled = errors.New("server: already enabled")
	// ErrExiting is returned by Enable after Exit.
	ErrExiting = errors.New("server: exiting")
)

// Advertiser publishes the listening port. The returned function withdraws
// the advertisement.
type Advertiser interface {
	Advertise(port int) (func(), error)
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	// Host is the interface to listen on. Empty means all interfaces.
	Host string
	// Dispatcher serves every accepted connection.
	Dispatcher *session.Dispatcher
	// Pause separates sessions. Zero means DefaultPause.
	Pause time.Duration
	// KeepEnabled keeps listening after a session fails instead of
	// disabling the server.
	KeepEnabled bool
	// Advertiser, if set, is called whenever a listener is opened.
	Advertiser Advertiser
	// Metrics, if set, tracks the current state.
	Metrics *metrics.Metrics
}

// Status is a snapshot of a Controller.
type Status struct {
	State     State         `json:"state"`
	Port      int           `json:"port,omitempty"`
	Remote    string        `json:"remote,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Stats     session.Stats `json:"stats"`
}

// Event is published to subscribers on every state change.
type Event struct {
	Status
	Time time.Time `json:"time"`
}

// Controller enables and disables a single-connection server. It owns the
// serve loop; callers drive it through Enable, Disable and Exit.
type Controller struct {
	cfg ControllerConfig

	mu        sync.Mutex
	state     State
	enabled   bool
	exiting   bool
	port      int
	remote    string
	lastErr   string
	acceptor  *Acceptor
	unadvert  func()
	subs      map[int]chan Event
	nextSubID int

	wake chan struct{}
	done chan struct{}
}

// NewController creates an idle controller. Call Run to start its loop.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Pause == 0 {
		cfg.Pause = DefaultPause
	}
	c := &Controller{
		cfg:  cfg,
		subs: make(map[int]chan Event),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	cfg.Metrics.SetState(StateIdle.String(), stateNames)
	return c
}

// Enable requests listening on port. Port 0 picks a free port.
func (c *Controller) Enable(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("server: invalid port %d", port)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exiting {
		return ErrExiting
	}
	if c.enabled {
		return ErrAlreadyEnabled
	}
	c.enabled = true
	c.port = port
	c.lastErr = ""
	logging.Info("Server enabled", zap.Int("port", port))
	c.signal()
	return nil
}

// Disable stops listening and drops any active session.
func (c *Controller) Disable() {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = false
	c.port = 0
	acc := c.detachLocked()
	c.setStateLocked(StateIdle, "")
	c.mu.Unlock()

	logging.Info("Server disabled")
	c.release(acc)
	c.signal()
}

// Exit stops the loop. It does not wait; use Done for that.
func (c *Controller) Exit() {
	c.mu.Lock()
	if c.exiting {
		c.mu.Unlock()
		return
	}
	c.exiting = true
	c.enabled = false
	acc := c.detachLocked()
	c.setStateLocked(StateExiting, "")
	c.mu.Unlock()

	c.release(acc)
	c.signal()
}

// Done is closed when Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Subscribe returns a channel of state changes and a function that
// unsubscribes and closes the channel. Events are dropped for subscribers
// that fall behind.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			close(ch)
			c.mu.Unlock()
		})
	}
}

// Run executes the serve loop until Exit is called or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	stop := context.AfterFunc(ctx, c.Exit)
	defer stop()

	for {
		c.mu.Lock()
		exiting, enabled, port, acc := c.exiting, c.enabled, c.port, c.acceptor
		c.mu.Unlock()

		if exiting {
			logging.Debug("Server loop exiting")
			return nil
		}
		if !enabled {
			<-c.wake
			continue
		}

		if acc == nil {
			var err error
			acc, err = c.listen(port)
			if err != nil {
				c.fail(err)
				continue
			}
		}

		c.transition(StateListening, "")
		err := acc.ServeOne(ctx)
		switch {
		case errors.Is(err, ErrClosed):
			continue
		case err != nil && !c.cfg.KeepEnabled:
			c.fail(err)
			continue
		case err != nil:
			logging.Warn("Session ended with error",
				zap.String("kind", session.Kind(err)),
				zap.Error(err),
			)
			c.recordError(err)
		}

		c.transition(StateListening, "")
		select {
		case <-time.After(c.cfg.Pause):
		case <-c.wake:
		}
	}
}

// listen opens the acceptor for an enabled controller.
func (c *Controller) listen(port int) (*Acceptor, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(port))
	acc, err := NewAcceptor(addr, c.cfg.Dispatcher)
	if err != nil {
		return nil, err
	}
	acc.OnAccept = func(remote string) { c.transition(StateServing, remote) }

	var unadvert func()
	if c.cfg.Advertiser != nil {
		unadvert, err = c.cfg.Advertiser.Advertise(acc.Port())
		if err != nil {
			logging.Warn("Service advertisement failed", zap.Error(err))
		}
	}

	c.mu.Lock()
	if !c.enabled || c.exiting {
		c.mu.Unlock()
		_ = acc.Close()
		if unadvert != nil {
			unadvert()
		}
		return nil, ErrClosed
	}
	c.acceptor = acc
	c.unadvert = unadvert
	c.port = acc.Port()
	c.mu.Unlock()
	return acc, nil
}

// fail disables the server after err, as a failed session or bind does.
func (c *Controller) fail(err error) {
	if errors.Is(err, ErrClosed) {
		return
	}
	logging.Error("Server error", zap.String("kind", session.Kind(err)), zap.Error(err))

	c.mu.Lock()
	c.lastErr = err.Error()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = false
	c.port = 0
	acc := c.detachLocked()
	c.setStateLocked(StateIdle, "")
	c.mu.Unlock()

	c.release(acc)
}

func (c *Controller) recordError(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
}

// transition moves to s unless a concurrent Disable or Exit has already
// taken the controller out of the enabled states.
func (c *Controller) transition(s State, remote string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exiting || !c.enabled {
		return
	}
	c.setStateLocked(s, remote)
}

func (c *Controller) setStateLocked(s State, remote string) {
	if c.state == s && c.remote == remote {
		return
	}
	logging.Debug("Server state", zap.Stringer("from", c.state), zap.Stringer("to", s))
	c.state = s
	c.remote = remote
	c.cfg.Metrics.SetState(s.String(), stateNames)

	ev := Event{Status: c.statusLocked(), Time: time.Now()}
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (c *Controller) statusLocked() Status {
	st := Status{
		State:     c.state,
		Port:      c.port,
		Remote:    c.remote,
		LastError: c.lastErr,
	}
	if c.cfg.Dispatcher != nil {
		st.Stats = c.cfg.Dispatcher.Stats()
	}
	return st
}

// detached holds resources removed from the controller under its lock and
// released after unlocking.
type detached struct {
	acc      *Acceptor
	unadvert func()
}

// detachLocked takes the acceptor and advertisement out of the controller.
func (c *Controller) detachLocked() detached {
	d := detached{acc: c.acceptor, unadvert: c.unadvert}
	c.acceptor = nil
	c.unadvert = nil
	return d
}

func (c *Controller) release(d detached) {
	if d.acc != nil {
		if err := d.acc.Close(); err != nil {
			logging.Debug("Error closing listener", zap.Error(err))
		}
	}
	if d.unadvert != nil {
		d.unadvert()
	}
}

func (c *Controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
