package robot

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// callbackQueueSize bounds the dispatch queue between broker
	// goroutines and the callback worker.
	callbackQueueSize = 100

	// AttrSnapshot is the pseudo-attribute announced after a full
	// state snapshot replaces the previous state.
	AttrSnapshot = "snapshot"
)

// MQTTConn is the broker connection used by the client. Satisfied by
// *mqtt.Client from the infrastructure package.
type MQTTConn interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic. Handler errors are
	// logged by the connection.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error

	// IsConnected returns true while the broker session is up.
	IsConnected() bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Stats holds client counters for health and metrics endpoints.
type Stats struct {
	CommandsSent      uint64
	EventsReceived    uint64
	DeltasReceived    uint64
	SnapshotsReceived uint64
	CallbacksDropped  uint64
	PendingCommands   int
	Connected         bool
}

// ClientOptions holds configuration for creating a robot client.
type ClientOptions struct {
	// Conn is the broker connection. Required.
	Conn MQTTConn

	// TopicPrefix is the root of the robot link topics, without a
	// trailing slash (e.g. "robodhs/robot"). Required.
	TopicPrefix string

	// QoS is the quality of service for both directions. Defaults to 1.
	QoS byte

	// Logger is optional structured logging.
	Logger Logger
}

// Client maintains the live robot state and issues commands.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Change and command callbacks run on a single worker goroutine,
//     so events for one command are observed in order.
type Client struct {
	conn   MQTTConn
	prefix string
	qos    byte

	mu    sync.RWMutex
	state *State

	callbackMu sync.Mutex
	callbacks  map[string]Callback

	changeMu sync.RWMutex
	onChange func(attr string)

	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	commandsSent      atomic.Uint64
	eventsReceived    atomic.Uint64
	deltasReceived    atomic.Uint64
	snapshotsReceived atomic.Uint64
	callbacksDropped  atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewClient creates a robot client. Call Start to subscribe and request
// the first snapshot.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Conn == nil {
		return nil, fmt.Errorf("broker connection is required")
	}
	if opts.TopicPrefix == "" {
		return nil, fmt.Errorf("topic prefix is required")
	}
	qos := opts.QoS
	if qos == 0 {
		qos = 1
	}

	c := &Client{
		conn:      opts.Conn,
		prefix:    opts.TopicPrefix,
		qos:       qos,
		state:     NewState(),
		callbacks: make(map[string]Callback),
		queue:     make(chan func(), callbackQueueSize),
		done:      make(chan struct{}),
		logger:    opts.Logger,
	}

	c.wg.Add(1)
	go c.worker()

	return c, nil
}

// Start subscribes to the robot link topics and requests a fresh
// snapshot from the controller.
func (c *Client) Start() error {
	if err := c.conn.Subscribe(c.topicStateFull(), c.qos, c.handleFullState); err != nil {
		return fmt.Errorf("subscribe state: %w", err)
	}
	if err := c.conn.Subscribe(c.topicStateDelta(), c.qos, c.handleDelta); err != nil {
		return fmt.Errorf("subscribe deltas: %w", err)
	}
	if err := c.conn.Subscribe(c.topicOperation(), c.qos, c.handleOperationEvent); err != nil {
		return fmt.Errorf("subscribe operations: %w", err)
	}

	if err := c.RequestRefresh(); err != nil {
		// The retained snapshot still arrives once the broker is back.
		c.logWarn("initial state request failed", "error", err)
	}

	c.logInfo("robot client started", "prefix", c.prefix)
	return nil
}

// Stop shuts down the callback worker after draining queued callbacks.
// Pending command callbacks never fire after Stop returns.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()

		c.callbackMu.Lock()
		c.callbacks = make(map[string]Callback)
		c.callbackMu.Unlock()
	})
}

// Snapshot returns a deep copy of the current robot state.
func (c *Client) Snapshot() *State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

// SetOnChange registers the attribute change callback. The callback
// receives the attribute name from the delta, or AttrSnapshot when a
// full snapshot replaced the state.
func (c *Client) SetOnChange(fn func(attr string)) {
	c.changeMu.Lock()
	c.onChange = fn
	c.changeMu.Unlock()
}

// Connected reports whether the broker session is up.
func (c *Client) Connected() bool {
	return c.conn.IsConnected()
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	c.callbackMu.Lock()
	pending := len(c.callbacks)
	c.callbackMu.Unlock()

	return Stats{
		CommandsSent:      c.commandsSent.Load(),
		EventsReceived:    c.eventsReceived.Load(),
		DeltasReceived:    c.deltasReceived.Load(),
		SnapshotsReceived: c.snapshotsReceived.Load(),
		CallbacksDropped:  c.callbacksDropped.Load(),
		PendingCommands:   pending,
		Connected:         c.conn.IsConnected(),
	}
}

// RequestRefresh asks the controller to republish its full state. Call
// after a broker reconnect or a DCSS login.
func (c *Client) RequestRefresh() error {
	return c.send(actionReportState, nil, nil)
}

// Clear acknowledges the robot's current fault status.
func (c *Client) Clear(cb Callback) error {
	return c.send(actionClear, nil, cb)
}

// ClearAll acknowledges fault status and discards probe data.
func (c *Client) ClearAll(cb Callback) error {
	return c.send(actionClearAll, nil, cb)
}

// SetOutput drives a digital output to the given value.
func (c *Client) SetOutput(output Output, value int, cb Callback) error {
	return c.send(actionSetOutput, &CommandParams{Output: output, Value: &value}, cb)
}

// ResetPorts resets the selected ports to unknown. The mask holds a
// 96-element 0/1 selection per position.
func (c *Client) ResetPorts(ports map[Position][]int, cb Callback) error {
	return c.send(actionResetPorts, &CommandParams{Ports: ports}, cb)
}

// ResetHolder resets one position's holder type and all of its ports to
// unknown.
func (c *Client) ResetHolder(position Position, cb Callback) error {
	return c.send(actionResetHolder, &CommandParams{Position: position}, cb)
}

// ResetMountCounters zeroes the pins-mounted and pins-lost counters.
func (c *Client) ResetMountCounters(cb Callback) error {
	return c.send(actionResetMountCounters, nil, cb)
}

// SetMounted records a port as mounted on the goniometer without moving
// the robot.
func (c *Client) SetMounted(position Position, column string, row int, cb Callback) error {
	return c.send(actionSetMounted, &CommandParams{Position: position, Column: column, Row: row}, cb)
}

// Probe runs a port probe. The spec holds a 96-element 0/1 selection
// per position.
func (c *Client) Probe(spec map[Position][]int, cb Callback) error {
	return c.send(actionProbe, &CommandParams{Ports: spec}, cb)
}

// Calibrate runs a calibration against the given target with the given
// run arguments.
func (c *Client) Calibrate(target, runArgs string, cb Callback) error {
	return c.send(actionCalibrate, &CommandParams{Target: target, RunArgs: runArgs}, cb)
}

// PrepareForMount moves the robot to its staging position.
func (c *Client) PrepareForMount(cb Callback) error {
	return c.send(actionPrepareForMount, nil, cb)
}

// Mount mounts the sample from the addressed port on the goniometer.
func (c *Client) Mount(position Position, column string, row int, cb Callback) error {
	return c.send(actionMount, &CommandParams{Position: position, Column: column, Row: row}, cb)
}

// Dismount returns the goniometer sample to the addressed port.
func (c *Client) Dismount(position Position, column string, row int, cb Callback) error {
	return c.send(actionDismount, &CommandParams{Position: position, Column: column, Row: row}, cb)
}

// Abort requests an immediate stop of whatever the robot is doing.
// There is no progress event for an abort.
func (c *Client) Abort() error {
	return c.send(actionAbort, nil, nil)
}

// send publishes a command, registering cb for its progress events.
func (c *Client) send(action string, params *CommandParams, cb Callback) error {
	msg := CommandMessage{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Params:    params,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", action, err)
	}

	if cb != nil {
		c.callbackMu.Lock()
		c.callbacks[msg.ID] = cb
		c.callbackMu.Unlock()
	}

	if err := c.conn.Publish(c.topicCommand(), payload, c.qos, false); err != nil {
		if cb != nil {
			c.callbackMu.Lock()
			delete(c.callbacks, msg.ID)
			c.callbackMu.Unlock()
		}
		return fmt.Errorf("%w: %s: %v", ErrPublishFailed, action, err)
	}

	c.commandsSent.Add(1)
	c.logDebug("command sent", "action", action, "id", msg.ID)
	return nil
}

// handleFullState replaces the state with a controller snapshot.
func (c *Client) handleFullState(_ string, payload []byte) error {
	fresh := &State{}
	if err := json.Unmarshal(payload, fresh); err != nil {
		return fmt.Errorf("%w: snapshot: %v", ErrBadMessage, err)
	}
	fresh.normalize()

	c.mu.Lock()
	c.state = fresh
	c.mu.Unlock()

	c.snapshotsReceived.Add(1)
	c.notify(AttrSnapshot)
	return nil
}

// handleDelta applies a single attribute change.
func (c *Client) handleDelta(_ string, payload []byte) error {
	var delta DeltaMessage
	if err := json.Unmarshal(payload, &delta); err != nil {
		return fmt.Errorf("%w: delta: %v", ErrBadMessage, err)
	}

	c.mu.Lock()
	err := c.state.applyAttribute(delta.Attr, delta.Value)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.deltasReceived.Add(1)
	c.notify(delta.Attr)
	return nil
}

// handleOperationEvent routes a progress event to its command callback.
func (c *Client) handleOperationEvent(_ string, payload []byte) error {
	var event EventMessage
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: event: %v", ErrBadMessage, err)
	}

	c.eventsReceived.Add(1)

	c.callbackMu.Lock()
	cb, ok := c.callbacks[event.ID]
	if ok && event.Stage == StageEnd {
		delete(c.callbacks, event.ID)
	}
	c.callbackMu.Unlock()

	if !ok {
		// Events for commands from a previous gateway run.
		c.logDebug("event for unknown command", "id", event.ID, "stage", event.Stage)
		return nil
	}

	var evErr error
	if event.Error != "" {
		evErr = fmt.Errorf("%s", event.Error)
	}
	c.dispatch(func() { cb(event.Stage, event.Message, evErr) })
	return nil
}

// notify queues the attribute change callback.
func (c *Client) notify(attr string) {
	c.changeMu.RLock()
	fn := c.onChange
	c.changeMu.RUnlock()

	if fn == nil {
		return
	}
	c.dispatch(func() { fn(attr) })
}

// dispatch queues a callback for the worker. Drops with a counter when
// the queue is full rather than blocking a broker goroutine.
func (c *Client) dispatch(job func()) {
	select {
	case <-c.done:
	case c.queue <- job:
	default:
		c.callbacksDropped.Add(1)
		c.logWarn("callback queue full, dropping", "queued", len(c.queue))
	}
}

// worker runs queued callbacks. A single worker preserves the order of
// events for a command.
func (c *Client) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			// Drain remaining callbacks before exiting.
			for {
				select {
				case job := <-c.queue:
					c.invoke(job)
				default:
					return
				}
			}
		case job := <-c.queue:
			c.invoke(job)
		}
	}
}

// invoke runs one callback, recovering panics so a broken callback
// cannot kill the worker.
func (c *Client) invoke(job func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logError("callback panic", "panic", r)
		}
	}()
	job()
}

func (c *Client) topicStateFull() string  { return c.prefix + "/state/full" }
func (c *Client) topicStateDelta() string { return c.prefix + "/state/delta" }
func (c *Client) topicOperation() string  { return c.prefix + "/operation" }
func (c *Client) topicCommand() string    { return c.prefix + "/command" }

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) logDebug(msg string, keysAndValues ...any) {
	if l := c.getLogger(); l != nil {
		l.Debug(msg, keysAndValues...)
	}
}

func (c *Client) logInfo(msg string, keysAndValues ...any) {
	if l := c.getLogger(); l != nil {
		l.Info(msg, keysAndValues...)
	}
}

func (c *Client) logWarn(msg string, keysAndValues ...any) {
	if l := c.getLogger(); l != nil {
		l.Warn(msg, keysAndValues...)
	}
}

func (c *Client) logError(msg string, keysAndValues ...any) {
	if l := c.getLogger(); l != nil {
		l.Error(msg, keysAndValues...)
	}
}
