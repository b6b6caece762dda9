// Package server runs the file sender for every connection accepted on one
// listening socket. Each connection is served by its own worker goroutine, and
// terminated workers are reaped by a single supervisor goroutine.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/SpatiumPortae/trickle/internal/config"
	"github.com/SpatiumPortae/trickle/internal/conn"
	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"github.com/SpatiumPortae/trickle/internal/metrics"
	"github.com/SpatiumPortae/trickle/internal/semver"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// acceptBackoff is how long the accept loop pauses after a failed accept.
const acceptBackoff = 10 * time.Millisecond

// Stats are the dispatcher's connection counters.
type Stats struct {
	Accepted int64
	Active   int64
	Reaped   int64
}

// Server is the connection dispatcher of the file server.
type Server struct {
	cfg     config.Config
	version semver.Version
	logger  *zap.Logger
	metrics *metrics.Metrics

	listener    net.Listener
	metricsHTTP *http.Server
	metricsAddr net.Addr

	mu    sync.Mutex
	conns map[uint64]net.Conn

	exits   chan exit
	workers sync.WaitGroup

	nextID   atomic.Uint64
	accepted atomic.Int64
	active   atomic.Int64
	reaped   atomic.Int64
}

// NewServer constructs a dispatcher. Nothing is bound until Listen.
func NewServer(cfg config.Config, version semver.Version, lgr *zap.Logger) *Server {
	if cfg.Backlog <= 0 {
		cfg.Backlog = config.DEFAULT_BACKLOG
	}
	if lgr == nil {
		lgr = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		version: version,
		logger:  lgr,
		metrics: metrics.New(),
		conns:   map[uint64]net.Conn{},
		exits:   make(chan exit, cfg.Backlog),
	}
}

// Listen binds the listening socket, and the metrics endpoint when configured.
func (s *Server) Listen() error {
	if s.listener != nil {
		return errors.Errorf("already listening on %s", s.listener.Addr())
	}
	l, err := conn.Listen(s.cfg.Port, s.cfg.Backlog)
	if err != nil {
		return err
	}
	s.listener = l

	if s.cfg.MetricsAddr != "" {
		ml, err := net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			l.Close()
			return exitcode.Wrap(exitcode.Connect, errors.Wrapf(err, "listening on metrics address %s", s.cfg.MetricsAddr))
		}
		s.metricsAddr = ml.Addr()
		stdLoggerWrapper, _ := zap.NewStdLogAt(s.logger, zap.ErrorLevel)
		s.metricsHTTP = &http.Server{
			Handler:      s.metrics.Router(s.version.String()),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			ErrorLog:     stdLoggerWrapper,
		}
		go func() {
			if err := s.metricsHTTP.Serve(ml); err != nil && err != http.ErrServerClosed {
				s.logger.Error("serving metrics", zap.Error(err))
			}
		}()
	}
	return nil
}

// Addr returns the address of the listening socket, nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// MetricsAddr returns the address of the metrics endpoint, nil when it is disabled.
func (s *Server) MetricsAddr() net.Addr {
	return s.metricsAddr
}

// Stats returns a snapshot of the connection counters.
func (s *Server) Stats() Stats {
	return Stats{
		Accepted: s.accepted.Load(),
		Active:   s.active.Load(),
		Reaped:   s.reaped.Load(),
	}
}

// Start listens and serves until SIGINT, SIGTERM or the cancellation of ctx.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve runs the accept loop until ctx is cancelled. Every accepted connection is
// handed to a new worker; the loop never waits for one. On return, every live
// connection has been closed and every worker reaped.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("not listening")
	}
	s.logger.
		With(zap.String("version", s.version.String())).
		With(zap.String("address", s.listener.Addr().String())).
		With(zap.Int64("rate", s.cfg.Rate)).
		Info("serving files")

	reaperDone := make(chan struct{})
	go s.reap(reaperDone)

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		c, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn("accepting connection", zap.Error(err))
			time.Sleep(acceptBackoff)
			continue
		}
		s.dispatch(ctx, c)
	}

	s.shutdown()
	close(s.exits)
	<-reaperDone
	s.logger.Info("server shutdown successfully", zap.Int64("connections", s.accepted.Load()))
	return nil
}

// dispatch registers the connection and starts its worker.
func (s *Server) dispatch(ctx context.Context, c net.Conn) {
	id := s.nextID.Add(1)
	s.mu.Lock()
	s.conns[id] = c
	s.mu.Unlock()

	s.accepted.Add(1)
	s.active.Add(1)
	s.metrics.Accepted()
	s.workers.Add(1)

	w := worker{
		id:     id,
		conn:   c,
		rate:   s.cfg.Rate,
		root:   s.cfg.Root,
		logger: s.logger.With(zap.Uint64("conn_id", id), zap.String("remote", remote(c))),
		exits:  s.exits,
	}
	go w.run(ctx)
}

// reap consumes worker exit records until the exits channel is closed.
func (s *Server) reap(done chan<- struct{}) {
	defer close(done)
	for e := range s.exits {
		s.mu.Lock()
		delete(s.conns, e.id)
		s.mu.Unlock()

		s.active.Add(-1)
		s.reaped.Add(1)
		s.metrics.Reaped(e.outcome(), e.stats.Bytes, e.duration)
		e.log()
		s.workers.Done()
	}
}

// shutdown closes every live connection, which unblocks its worker, and waits until
// all workers are reaped.
func (s *Server) shutdown() {
	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.workers.Wait()

	if s.metricsHTTP != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metricsHTTP.Shutdown(ctx); err != nil {
			s.logger.Error("shutting down metrics server", zap.Error(err))
		}
	}
}

func remote(c net.Conn) string {
	if addr := c.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return fmt.Sprintf("%T", c)
}
