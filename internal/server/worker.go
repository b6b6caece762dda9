package server

import (
	"context"
	"net"
	"time"

	"github.com/SpatiumPortae/trickle/internal/conn"
	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"github.com/SpatiumPortae/trickle/internal/logger"
	"github.com/SpatiumPortae/trickle/internal/metrics"
	"github.com/SpatiumPortae/trickle/internal/rate"
	"github.com/SpatiumPortae/trickle/internal/sender"
	"github.com/SpatiumPortae/trickle/protocol/transfer"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// worker serves exactly one connection. It shares nothing mutable with other
// workers: the rate and root are copies.
type worker struct {
	id     uint64
	conn   net.Conn
	rate   int64
	root   string
	logger *zap.Logger
	exits  chan<- exit
}

// exit is what a terminated worker reports to the reaper.
type exit struct {
	id       uint64
	stats    sender.Stats
	err      error
	duration time.Duration
	logger   *zap.Logger
}

func (w worker) run(ctx context.Context) {
	start := time.Now()
	var (
		stats sender.Stats
		err   error
	)
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("worker panic: %v", r)
			w.logger.Error("recovered from panic", zap.Any("panic", r), zap.Stack("stack_trace"))
		}
		w.conn.Close()
		w.exits <- exit{id: w.id, stats: stats, err: err, duration: time.Since(start), logger: w.logger}
	}()

	w.logger.Debug("connection accepted")
	shaper, err := rate.New(w.rate, transfer.ChunkSize)
	if err != nil {
		return
	}
	stats, err = sender.Serve(
		logger.WithLogger(ctx, w.logger),
		conn.NewTransfer(w.conn),
		sender.Options{Root: w.root, Shaper: shaper},
	)
}

func (e exit) outcome() string {
	switch {
	case e.err == nil:
		return metrics.OutcomeComplete
	case errors.Is(e.err, sender.ErrFileUnavailable):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeFailed
	}
}

func (e exit) log() {
	fields := []zap.Field{
		zap.String("file", e.stats.Filename),
		zap.String("state", e.stats.State.String()),
		zap.Int("chunks", e.stats.Chunks),
		zap.Int64("bytes", e.stats.Bytes),
		zap.Duration("duration", e.duration),
	}
	switch e.outcome() {
	case metrics.OutcomeComplete:
		e.logger.Info("transfer complete", fields...)
	case metrics.OutcomeUnavailable:
		e.logger.Info("requested file unavailable", fields...)
	default:
		e.logger.Warn("transfer aborted", append(fields, zap.Error(e.err), zap.String("kind", exitcode.KindOf(e.err).String()))...)
	}
}
