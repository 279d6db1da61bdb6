package service

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/spwallet-ledger/internal/domain/transfer"
)

// WorkerPoolTransferService bounds how many transfers run at once
type WorkerPoolTransferService struct {
	baseService TransferExecutor
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolTransferService(
	baseService TransferExecutor,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolTransferService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolTransferService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

type transferOutcome struct {
	result *transfer.Result
	err    error
}

// ExecuteTransfer runs the transfer on a pool worker and waits for its outcome
func (s *WorkerPoolTransferService) ExecuteTransfer(ctx context.Context, cmd transfer.Command) (*transfer.Result, error) {
	logger := s.logger.With("sender_id", cmd.SenderID)
	logger.Debug("Submitting transfer to worker pool")

	outcome := make(chan transferOutcome, 1)
	err := s.pool.Submit(func() {
		result, err := s.baseService.ExecuteTransfer(ctx, cmd)
		outcome <- transferOutcome{result: result, err: err}
	})
	if err != nil {
		logger.Error("Failed to submit transfer to worker pool", "error", err)
		return nil, transfer.ErrTransferFailed.Wrap(err)
	}

	o := <-outcome
	return o.result, o.err
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolTransferService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolTransferService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolTransferService) Capacity() int {
	return s.pool.Cap()
}
