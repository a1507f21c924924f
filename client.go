// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package redisync

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maplestoria/redisync/internal/config"
	"github.com/maplestoria/redisync/internal/rdb"
	"github.com/maplestoria/redisync/internal/resp"
	"github.com/maplestoria/redisync/internal/transport"
)

// heartbeatInterval bounds how long a forwarded offset can go un-ACK'd to
// the primary. The primary's own repl-timeout is normally far larger, so
// this just needs to stay comfortably under it.
const heartbeatInterval = 2 * time.Second

// state names reported by Client.State, purely for observability.
const (
	StateIdle           = "idle"
	StateConnecting     = "connecting"
	StateAuthenticating = "authenticating"
	StateSyncing        = "syncing"
	StateStreaming      = "streaming"
	StateClosed         = "closed"
)

// Client drives one replication session against a single primary: it owns
// the handshake, the streaming loop, and a background heartbeat that keeps
// the primary informed of how much of the command stream this client has
// consumed.
type Client struct {
	cfg    *config.Config
	logger *slog.Logger

	state atomic.Value // string

	tr *transport.Transport
	mu sync.Mutex // guards every read and write on tr

	replID     string
	replOffset int64

	snapshotHandlers []SnapshotHandler
	commandHandlers  []CommandHandler

	offsetCh chan int64
	stopCh   chan struct{}
	doneCh   chan struct{}

	closeOnce sync.Once
}

// New builds a Client from cfg. It does not connect until Run is called.
func New(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:        cfg,
		logger:     logger,
		replID:     cfg.Replication.ReplID,
		replOffset: cfg.Replication.ReplOffset,
		offsetCh:   make(chan int64, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	c.state.Store(StateIdle)
	return c
}

// AddSnapshotHandler registers h to receive every decoded snapshot object,
// in registration order. Must be called before Run.
func (c *Client) AddSnapshotHandler(h SnapshotHandler) {
	c.snapshotHandlers = append(c.snapshotHandlers, h)
}

// AddCommandHandler registers h to receive every decoded command array, in
// registration order. Must be called before Run.
func (c *Client) AddCommandHandler(h CommandHandler) {
	c.commandHandlers = append(c.commandHandlers, h)
}

// State reports the session's current phase, for logging and diagnostics.
func (c *Client) State() string {
	return c.state.Load().(string)
}

// ReplicationID returns the replication ID currently in effect, updated
// once the primary's FULLRESYNC reply has been parsed.
func (c *Client) ReplicationID() string { return c.replID }

// Offset returns the replication offset currently in effect.
func (c *Client) Offset() int64 { return atomic.LoadInt64(&c.replOffset) }

// Run connects to the configured primary, completes the handshake, decodes
// the snapshot, and then streams commands until ctx is cancelled or the
// connection fails. It returns the error that ended the session; a
// cancelled ctx is not itself reported as an error.
func (c *Client) Run(ctx context.Context) (err error) {
	if c.State() != StateIdle {
		return &UsageError{Reason: "Run called more than once"}
	}
	defer func() {
		if ctx.Err() != nil {
			err = nil
		}
	}()

	if err := c.connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	go func() {
		<-ctx.Done()
		c.Close()
	}()

	if err := c.authenticate(); err != nil {
		return err
	}
	if err := c.announcePort(); err != nil {
		return err
	}
	if err := c.sync(); err != nil {
		return err
	}
	return c.stream()
}

func (c *Client) connect(ctx context.Context) error {
	c.state.Store(StateConnecting)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.cfg.Server.Address)
	if err != nil {
		return &TransportFailure{Op: "connect", Err: err}
	}

	if c.cfg.Network.LowLatency {
		if err := applyLowLatency(conn); err != nil {
			c.logger.Warn("could not enable low-latency socket option", "err", err)
		}
	}
	if c.cfg.Network.DSCP != "" {
		if err := applyDSCP(conn, c.cfg.Network.DSCP); err != nil {
			c.logger.Warn("could not apply DSCP marking", "err", err)
		}
	}

	r := transport.NewThrottledReader(ctx, conn, c.cfg.Network.ThrottleBytesPerSec)
	c.tr = transport.NewWithReader(conn, r)
	go c.heartbeatLoop()

	c.logger.Info("connected to primary", "address", c.cfg.Server.Address)
	return nil
}

func (c *Client) authenticate() error {
	c.state.Store(StateAuthenticating)
	if c.cfg.Server.Password == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := resp.WriteCommand(c.tr.Writer(), []byte("AUTH"), []byte(c.cfg.Server.Password)); err != nil {
		return &TransportFailure{Op: "auth write", Err: err}
	}
	if _, err := resp.Decode(c.tr, nil); err != nil {
		if respErr, ok := err.(*resp.Error); ok {
			return &ServerError{Message: respErr.Message}
		}
		return &ProtocolViolation{Err: err}
	}
	return nil
}

func (c *Client) announcePort() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	localPort := "0"
	if addr, ok := c.tr.Conn().LocalAddr().(*net.TCPAddr); ok {
		localPort = strconv.Itoa(addr.Port)
	}

	if err := resp.WriteCommand(c.tr.Writer(), []byte("REPLCONF"), []byte("listening-port"), []byte(localPort)); err != nil {
		return &TransportFailure{Op: "replconf write", Err: err}
	}
	if _, err := resp.Decode(c.tr, nil); err != nil {
		return &ProtocolViolation{Err: err}
	}
	return nil
}

func (c *Client) sync() error {
	c.state.Store(StateSyncing)
	c.mu.Lock()
	defer c.mu.Unlock()

	offset := strconv.FormatInt(atomic.LoadInt64(&c.replOffset), 10)
	if err := resp.WriteCommand(c.tr.Writer(), []byte("PSYNC"), []byte(c.replID), []byte(offset)); err != nil {
		return &TransportFailure{Op: "psync write", Err: err}
	}

	reply, err := resp.Decode(c.tr, nil)
	if err != nil {
		return &ProtocolViolation{Err: err}
	}
	if len(reply) != 1 {
		return &ProtocolViolation{Err: fmt.Errorf("unexpected PSYNC reply shape")}
	}

	fields := strings.Fields(string(reply[0]))
	if len(fields) == 0 || fields[0] != "FULLRESYNC" {
		return &UnsupportedFeature{Feature: fmt.Sprintf("non-FULLRESYNC sync reply %q", reply[0])}
	}
	if len(fields) < 3 {
		return &ProtocolViolation{Err: fmt.Errorf("malformed FULLRESYNC reply %q", reply[0])}
	}
	c.replID = fields[1]
	if parsed, err := strconv.ParseInt(fields[2], 10, 64); err == nil {
		atomic.StoreInt64(&c.replOffset, parsed)
	}

	fanOut := &snapshotFanOut{handlers: c.snapshotHandlers}
	_, err = resp.Decode(c.tr, func(r resp.ByteReader, length int64) ([]byte, error) {
		tr, ok := r.(*transport.Transport)
		if !ok {
			return nil, fmt.Errorf("redisync: snapshot reply requires the shared transport")
		}
		if err := rdb.Decode(tr, fanOut); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("full resync complete", "repl_id", c.replID, "repl_offset", c.Offset())
	return nil
}

// readOneCommand marks the transport, reads exactly one wire-protocol
// reply, unmarks, and returns both the decoded array and the number of
// bytes that reply cost — the unit of work the streaming loop repeats and
// that client_test.go exercises directly to check offset accounting.
func (c *Client) readOneCommand() (args [][]byte, byteCount int64, err error) {
	c.mu.Lock()
	c.tr.Mark()
	args, err = resp.Decode(c.tr, nil)
	n, unmarkErr := c.tr.Unmark()
	c.mu.Unlock()

	if err != nil {
		return nil, 0, err
	}
	if unmarkErr != nil {
		return nil, 0, unmarkErr
	}
	return args, n, nil
}

// stream is the streaming loop of §4.5.1 step 5: mark, read one command,
// unmark, forward the byte count onto the offset, fan out to command
// handlers. It runs until a read fails.
func (c *Client) stream() error {
	c.state.Store(StateStreaming)
	for {
		args, n, err := c.readOneCommand()
		if err != nil {
			return &TransportFailure{Op: "stream read", Err: err}
		}

		offset := atomic.AddInt64(&c.replOffset, n)
		select {
		case c.offsetCh <- offset:
		default:
			// A send is already pending; drain it and retry so the
			// heartbeat always has the latest offset, never a stale one.
			select {
			case <-c.offsetCh:
			default:
			}
			c.offsetCh <- offset
		}

		if len(args) == 0 {
			continue
		}
		for _, h := range c.commandHandlers {
			h.OnCommand(args)
		}
	}
}

// heartbeatLoop owns no shared mutable state beyond the mutex it
// momentarily acquires to write one ACK frame. It wakes at most every
// heartbeatInterval and re-sends the latest offset it has heard about; a
// blocked main-thread read can delay an ACK by up to one frame, which is
// accepted.
func (c *Client) heartbeatLoop() {
	defer close(c.doneCh)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	offset := int64(0)
	for {
		select {
		case <-c.stopCh:
			return
		case offset = <-c.offsetCh:
		case <-ticker.C:
			c.sendACK(offset)
		}
	}
}

func (c *Client) sendACK(offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tr == nil {
		return
	}
	err := resp.WriteCommand(c.tr.Writer(), []byte("REPLCONF"), []byte("ACK"), []byte(strconv.FormatInt(offset, 10)))
	if err != nil {
		c.logger.Warn("heartbeat ack failed", "err", err)
		return
	}
	c.logger.Debug("sent heartbeat ack", "offset", offset)
}

// Close tears the session down: it signals the heartbeat goroutine to
// stop, closes the transport in both directions, and waits for the
// heartbeat goroutine to exit. Each step is best-effort — a failure in one
// does not skip the others — so cleanup always completes exactly once.
// Closing a Client that never connected returns a *UsageError.
func (c *Client) Close() error {
	if c.tr == nil {
		return &UsageError{Reason: "close on a client that never connected"}
	}
	c.closeOnce.Do(func() {
		close(c.stopCh)
		if c.tr != nil {
			closeBothDirections(c.tr.Conn())
		}
		<-c.doneCh
		c.state.Store(StateClosed)
	})
	return nil
}

func closeBothDirections(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.CloseRead()
		_ = tcpConn.CloseWrite()
	}
	_ = conn.Close()
}
