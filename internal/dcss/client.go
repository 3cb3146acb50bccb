package dcss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and intervals for control server communication.
const (
	// defaultConnectTimeout is the maximum time to wait for dialing and
	// the login exchange.
	defaultConnectTimeout = 10 * time.Second

	// defaultReadTimeout is the timeout for individual read operations.
	// The server is quiet between operations, so hitting it is normal.
	defaultReadTimeout = 30 * time.Second

	// defaultWriteTimeout is the timeout for write operations.
	defaultWriteTimeout = 5 * time.Second

	// defaultReconnectInterval is the initial delay between
	// reconnection attempts.
	defaultReconnectInterval = 5 * time.Second

	// maxReconnectInterval is the maximum delay between reconnection
	// attempts.
	maxReconnectInterval = 2 * time.Minute

	// readBufferSize is the read buffer for incoming frames. Probe
	// dispatches with 291 port values are the largest inbound payloads.
	readBufferSize = 4096

	// maxFrameSize is the largest frame length accepted from the
	// header before the stream is considered corrupted.
	maxFrameSize = 64 * 1024

	// callbackQueueSize is the buffer size for the message callback
	// queue.
	callbackQueueSize = 100
)

// Config holds control server connection configuration.
type Config struct {
	// Address is the control server endpoint as host:port.
	Address string

	// ClientName is the hardware host name announced at login.
	// Default: "robot".
	ClientName string

	// ConnectTimeout is the maximum time to wait for connection.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// ReadTimeout is the timeout for read operations.
	// Default: 30 seconds.
	ReadTimeout time.Duration

	// ReconnectInterval is the initial delay between reconnection
	// attempts. Default: 5 seconds.
	ReconnectInterval time.Duration
}

// Stats holds operational statistics.
type Stats struct {
	MessagesTx      uint64
	MessagesRx      uint64
	MessagesDropped uint64 // Messages dropped due to full callback queue
	ErrorsTotal     uint64
	ReconnectsTotal uint64 // Successful reconnections
	LastActivity    time.Time
	Connected       bool
	Reconnecting    bool // True if currently attempting to reconnect
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Client maintains a hardware-client session with a DCSS control
// server.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The message callback runs on one worker goroutine, preserving
//     arrival order.
//
// Auto-Reconnection:
//   - When the session drops, the client reconnects with exponential
//     backoff starting at ReconnectInterval up to maxReconnectInterval.
//   - The login exchange is re-run and the connect callback fires after
//     every successful login.
//   - Reconnection stops only when Close() is called.
type Client struct {
	cfg Config

	// Connection state
	conn      net.Conn
	connMu    sync.RWMutex
	connected bool

	// Outbound frames are serialized onto the socket.
	writeMu sync.Mutex

	// Reconnection state
	reconnecting   atomic.Bool
	reconnectCount atomic.Int32

	// Callbacks
	onMessage  func(Message)
	onConnect  func()
	callbackMu sync.RWMutex

	// Message callback queue (bounded, single worker for ordering)
	callbackQueue chan Message

	// Shutdown coordination
	done *closeOnce
	wg   sync.WaitGroup

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for performance)
	messagesTx      atomic.Uint64
	messagesRx      atomic.Uint64
	messagesDropped atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64 // Unix timestamp
}

// New creates an unconnected client. Register callbacks with
// SetOnMessage and SetOnConnect before calling Connect so the first
// login is observed.
func New(cfg Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrConnectionFailed)
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "robot"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}

	return &Client{
		cfg:           cfg,
		done:          newCloseOnce(),
		callbackQueue: make(chan Message, callbackQueueSize),
	}, nil
}

// Connect dials the control server, performs the login exchange and
// starts the receive loop. Call once; reconnection after that is
// automatic.
func (c *Client) Connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(connectCtx, "tcp", c.cfg.Address)
	if err != nil {
		return fmt.Errorf("%w: dial failed: %w", ErrConnectionFailed, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	if err := c.login(connectCtx); err != nil {
		conn.Close()
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
		return fmt.Errorf("%w: login failed: %w", ErrConnectionFailed, err)
	}

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()
	c.lastActivity.Store(time.Now().Unix())

	c.wg.Add(1)
	go c.callbackWorker()
	c.wg.Add(1)
	go c.receiveLoop()

	c.notifyConnect()
	return nil
}

// login performs the raw 200-byte exchange that opens a session: the
// server asks for the client type, the client announces itself as a
// hardware host.
func (c *Client) login(ctx context.Context) error {
	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	readDeadline := time.Now().Add(c.cfg.ReadTimeout)
	if deadline, ok := ctx.Deadline(); ok && deadline.Before(readDeadline) {
		readDeadline = deadline
	}
	if err := conn.SetReadDeadline(readDeadline); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}

	block := make([]byte, handshakeSize)
	if _, err := io.ReadFull(conn, block); err != nil {
		return fmt.Errorf("read client type request: %w", err)
	}
	if msg := ParseMessage(block); msg.Command != clientTypeRequest {
		return fmt.Errorf("%w: %q", ErrBadHandshake, msg.Command)
	}

	writeDeadline := time.Now().Add(defaultWriteTimeout)
	if deadline, ok := ctx.Deadline(); ok && deadline.Before(writeDeadline) {
		writeDeadline = deadline
	}
	if err := conn.SetWriteDeadline(writeDeadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	reply := padBlock("htos_client_is_hardware " + c.cfg.ClientName)
	if _, err := conn.Write(reply); err != nil {
		return fmt.Errorf("write client type: %w", err)
	}
	return nil
}

// receiveLoop continuously reads frames from the control server.
// On connection loss it reconnects with exponential backoff.
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-c.done.Done():
			return
		default:
		}

		payload, err := c.readFrame(buf)
		if err != nil {
			if c.handleReadError(err) {
				if c.isClosed() {
					return
				}
				if !c.reconnect() {
					return
				}
				continue
			}
			continue
		}

		if payload != nil {
			c.handlePayload(payload)
		}
	}
}

// readFrame reads a single framed message and returns its payload, or
// nil for an empty frame. Errors that break framing are reported as
// ErrProtocolDesync, which is fatal for the connection.
func (c *Client) readFrame(buf []byte) ([]byte, error) {
	conn := c.currentConn()
	if conn == nil {
		return nil, ErrNotConnected
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	header := buf[:HeaderSize]
	if n, err := io.ReadFull(conn, header); err != nil {
		if n > 0 && isTimeout(err) {
			// A timeout mid-header leaves the stream unframed.
			c.errorsTotal.Add(1)
			return nil, ErrProtocolDesync
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	length, err := ParseHeader(header)
	if err != nil {
		c.errorsTotal.Add(1)
		c.logError("unparseable frame header", err)
		return nil, ErrProtocolDesync
	}
	if length == 0 {
		return nil, nil
	}
	if length > maxFrameSize {
		c.errorsTotal.Add(1)
		c.logError("frame length exceeds protocol maximum",
			fmt.Errorf("length %d exceeds %d", length, maxFrameSize))
		return nil, ErrProtocolDesync
	}

	// The header gives the exact length, so a frame larger than the
	// buffer can be discarded without losing framing.
	if HeaderSize+length > len(buf) {
		c.errorsTotal.Add(1)
		c.logError("oversized frame discarded",
			fmt.Errorf("length %d exceeds buffer %d", length, len(buf)-HeaderSize))
		if _, err := io.CopyN(io.Discard, conn, int64(length)); err != nil {
			return nil, fmt.Errorf("discard oversized frame: %w", err)
		}
		return nil, nil
	}

	body := buf[HeaderSize : HeaderSize+length]
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return body, nil
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// handleReadError processes a read error and returns true if the
// connection must be rebuilt.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if c.isClosed() {
		return true
	}

	// Protocol desync is always fatal. The socket must close
	// immediately to stop the corrupted stream.
	if errors.Is(err, ErrProtocolDesync) {
		c.logError("protocol desync, closing connection", err)
		if conn := c.currentConn(); conn != nil {
			conn.Close()
		}
		c.handleDisconnect()
		return true
	}

	// A clean timeout between frames is normal on a quiet link.
	if isTimeout(err) {
		return false
	}

	c.logError("read failed", err)
	c.errorsTotal.Add(1)
	c.handleDisconnect()
	return true
}

// handlePayload decodes a frame payload and queues it for the message
// callback.
func (c *Client) handlePayload(payload []byte) {
	msg := ParseMessage(payload)
	if msg.Command == "" {
		return
	}

	c.messagesRx.Add(1)
	c.lastActivity.Store(time.Now().Unix())

	c.callbackMu.RLock()
	hasCallback := c.onMessage != nil
	c.callbackMu.RUnlock()

	if hasCallback {
		select {
		case c.callbackQueue <- msg:
		default:
			// Queue full, drop to protect the receive loop.
			c.logError("callback queue full, dropping message", nil)
			c.messagesDropped.Add(1)
			c.errorsTotal.Add(1)
		}
	}
}

// callbackWorker delivers queued messages to the callback in arrival
// order. Panics in the callback are recovered and logged.
func (c *Client) callbackWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done.Done():
			c.drainCallbackQueue()
			return
		case msg := <-c.callbackQueue:
			c.callbackMu.RLock()
			callback := c.onMessage
			c.callbackMu.RUnlock()

			if callback != nil {
				c.invoke(callback, msg)
			}
		}
	}
}

func (c *Client) invoke(callback func(Message), msg Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logError("message callback panic", fmt.Errorf("%v", r))
		}
	}()
	callback(msg)
}

// handleDisconnect marks the session down.
func (c *Client) handleDisconnect() {
	c.connMu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.connMu.Unlock()

	if wasConnected {
		c.logInfo("connection lost, will attempt reconnection")
	}
}

// reconnect re-establishes the session with exponential backoff.
// Returns true on success, false if shutdown was signalled.
func (c *Client) reconnect() bool {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return c.waitForReconnection()
	}
	defer c.reconnecting.Store(false)

	backoff := c.cfg.ReconnectInterval

	for {
		if c.isClosed() {
			return false
		}

		attempt := c.reconnectCount.Add(1)
		c.logInfo("attempting reconnection", "attempt", attempt, "backoff", backoff.String())

		c.closeOldConnection()

		conn, err := c.dialWithTimeout()
		if err != nil {
			backoff = c.handleReconnectFailure("dial failed", err, backoff)
			if backoff == 0 {
				return false
			}
			continue
		}

		if err := c.establishConnection(conn); err != nil {
			backoff = c.handleReconnectFailure("login failed", err, backoff)
			if backoff == 0 {
				return false
			}
			continue
		}

		c.finalizeReconnection()
		return true
	}
}

// waitForReconnection waits for another goroutine to complete
// reconnection.
func (c *Client) waitForReconnection() bool {
	for c.reconnecting.Load() && !c.isClosed() {
		time.Sleep(100 * time.Millisecond)
	}
	return !c.isClosed() && c.IsConnected()
}

// closeOldConnection closes the existing connection if any.
func (c *Client) closeOldConnection() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

// dialWithTimeout dials the control server with the connect timeout.
func (c *Client) dialWithTimeout() (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.Address, err)
	}
	return conn, nil
}

// establishConnection installs the connection and re-runs the login
// exchange.
func (c *Client) establishConnection(conn net.Conn) error {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()

	if err := c.login(ctx); err != nil {
		conn.Close()
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
		return err
	}
	return nil
}

// handleReconnectFailure logs a failed attempt and sleeps the backoff.
// Returns the next backoff, or 0 if shutdown was signalled.
func (c *Client) handleReconnectFailure(reason string, err error, backoff time.Duration) time.Duration {
	c.logError("reconnect: "+reason, err)
	c.errorsTotal.Add(1)

	select {
	case <-c.done.Done():
		return 0
	case <-time.After(backoff):
	}

	newBackoff := time.Duration(float64(backoff) * 1.5)
	if newBackoff > maxReconnectInterval {
		newBackoff = maxReconnectInterval
	}
	return newBackoff
}

// finalizeReconnection marks the session up and fires the connect
// callback so the consumer can republish its state.
func (c *Client) finalizeReconnection() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.reconnectCount.Store(0)
	c.reconnectsTotal.Add(1)
	c.lastActivity.Store(time.Now().Unix())

	c.logInfo("reconnection successful", "total_reconnects", c.reconnectsTotal.Load())
	c.notifyConnect()
}

// notifyConnect fires the connect callback on its own goroutine so a
// slow consumer cannot stall the receive loop.
func (c *Client) notifyConnect() {
	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback == nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logError("connect callback panic", fmt.Errorf("%v", r))
			}
		}()
		callback()
	}()
}

// drainCallbackQueue discards queued messages during shutdown.
func (c *Client) drainCallbackQueue() {
	for {
		select {
		case <-c.callbackQueue:
		default:
			return
		}
	}
}

// isClosed returns true if the client has been closed.
func (c *Client) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

func (c *Client) currentConn() net.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

// Close gracefully closes the session. Safe to call multiple times.
func (c *Client) Close() error {
	c.done.Close()

	c.connMu.Lock()
	c.connected = false
	conn := c.conn
	c.connMu.Unlock()

	if conn != nil {
		conn.Close()
	}

	c.wg.Wait()

	c.logInfo("connection closed")
	return nil
}

// Send writes one framed message to the control server. Concurrent
// sends are serialized.
func (c *Client) Send(message string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	frame := EncodeMessage(message)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrSendFailed, err)
	}
	if _, err := conn.Write(frame); err != nil {
		c.errorsTotal.Add(1)
		return fmt.Errorf("%w: write: %w", ErrSendFailed, err)
	}

	c.messagesTx.Add(1)
	c.lastActivity.Store(time.Now().Unix())
	return nil
}

// SetOnMessage sets the callback for decoded server messages.
//
// The callback runs on a single worker goroutine; messages are
// delivered in arrival order. Panics are recovered and logged.
func (c *Client) SetOnMessage(callback func(Message)) {
	c.callbackMu.Lock()
	c.onMessage = callback
	c.callbackMu.Unlock()
}

// SetOnConnect sets the callback fired after every successful login,
// including reconnections.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// IsConnected returns true if the session is up.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Stats returns current operational statistics.
func (c *Client) Stats() Stats {
	return Stats{
		MessagesTx:      c.messagesTx.Load(),
		MessagesRx:      c.messagesRx.Load(),
		MessagesDropped: c.messagesDropped.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
		ReconnectsTotal: c.reconnectsTotal.Load(),
		LastActivity:    time.Unix(c.lastActivity.Load(), 0),
		Connected:       c.IsConnected(),
		Reconnecting:    c.reconnecting.Load(),
	}
}

// HealthCheck verifies the session is up.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// logInfo logs an info message if logger is set.
func (c *Client) logInfo(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (c *Client) logError(msg string, err error) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
