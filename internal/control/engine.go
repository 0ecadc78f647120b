// Package control implements the engine that maintains the connection to
// the coordination server.
package control

import (
	"bufio"
	"net"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"botnode/internal/codec"
	"botnode/internal/model"
	"botnode/pkg/ring"
	"botnode/pkg/shutdown"
)

const (
	defaultPingInterval = 5 * time.Second
	defaultRetryDelay   = time.Second
	defaultDialTimeout  = 5 * time.Second
	defaultRingSize     = 1024
)

// DialFunc opens the transport to the coordination server. Injectable so
// tests can supply a failing or in-memory transport.
type DialFunc func(addr string, timeout time.Duration) (net.Conn, error)

// Config holds control engine settings. Zero fields take defaults.
type Config struct {
	BotID      model.BotID
	ServerAddr string

	PingInterval time.Duration
	RetryDelay   time.Duration
	DialTimeout  time.Duration
	RingSize     int
	Dial         DialFunc
}

// Engine owns the connection state machine: Offline -> Connecting ->
// Online, back to Offline on any error, retried forever with a fixed
// delay until shutdown. Status transitions are published to its ring.
type Engine struct {
	cfg    Config
	status atomic.Uint32
	out    *ring.Ring[model.ConnectionStatus]
}

// New builds a control engine, applying defaults to cfg.
func New(cfg Config) *Engine {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = defaultRingSize
	}
	if cfg.Dial == nil {
		cfg.Dial = func(addr string, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout("tcp", addr, timeout)
		}
	}
	return &Engine{
		cfg: cfg,
		out: ring.New[model.ConnectionStatus](cfg.RingSize),
	}
}

func (e *Engine) Name() string { return "control" }

// DataRx returns a fresh reader over connection status transitions.
func (e *Engine) DataRx() *ring.Receiver[model.ConnectionStatus] {
	return e.out.Subscribe()
}

// Status returns the current connection status.
func (e *Engine) Status() model.ConnectionStatus {
	return model.ConnectionStatus(e.status.Load())
}

func (e *Engine) setStatus(s model.ConnectionStatus) {
	if model.ConnectionStatus(e.status.Swap(uint32(s))) == s {
		return
	}
	e.out.Send(s)
}

// Start runs the engine until shutdown. Any connection error is logged
// and retried after a fixed delay; the error never leaves the engine.
func (e *Engine) Start(sd *shutdown.Shutdown) error {
	logs.Infof("control engine connecting to %s as %s", e.cfg.ServerAddr, e.cfg.BotID)

	for {
		err := e.connectionLoop(sd)
		if err == nil {
			e.setStatus(model.StatusOffline)
			return nil
		}

		e.setStatus(model.StatusOffline)
		logs.Errorf("control engine error: %v", err)

		select {
		case <-sd.Triggered():
			return nil
		case <-time.After(e.cfg.RetryDelay):
		}
	}
}

type inbound struct {
	msg codec.Message
	err error
}

// connectionLoop runs one connection attempt: dial, send Hello, then race
// inbound frames, the keepalive timer and the shutdown signal. A delay
// token is held so shutdown does not abandon the attempt mid-flight.
func (e *Engine) connectionLoop(sd *shutdown.Shutdown) error {
	token, err := sd.DelayToken()
	if err != nil {
		return err
	}
	defer token.Release()

	e.setStatus(model.StatusConnecting)

	conn, err := e.cfg.Dial(e.cfg.ServerAddr, e.cfg.DialTimeout)
	if err != nil {
		return errors.Wrap(err, "dial control server")
	}
	defer conn.Close()

	if err := codec.WriteMessage(conn, codec.Hello(e.cfg.BotID)); err != nil {
		return errors.Wrap(err, "send hello")
	}

	done := make(chan struct{})
	defer close(done)

	msgs := make(chan inbound)
	go func() {
		r := bufio.NewReader(conn)
		for {
			msg, err := codec.ReadMessage(r)
			select {
			case msgs <- inbound{msg: msg, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(e.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case in := <-msgs:
			if in.err != nil {
				return errors.Wrap(in.err, "server connection")
			}
			if s := e.Status(); s == model.StatusOffline || s == model.StatusConnecting {
				e.setStatus(model.StatusOnline)
			}
			logs.Infof("received from server: %s", in.msg.Kind)

		case <-ticker.C:
			if err := codec.WriteMessage(conn, codec.Ping()); err != nil {
				return errors.Wrap(err, "send ping")
			}

		case <-sd.Triggered():
			return nil
		}
	}
}
