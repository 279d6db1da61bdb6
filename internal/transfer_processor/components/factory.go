package components

import (
	"log/slog"

	"github.com/spwallet-ledger/internal/config"
	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/domain/wallet"
	"github.com/spwallet-ledger/internal/identifier"
	"github.com/spwallet-ledger/internal/transfer_processor/service"
)

// Stores groups the persistence ports the transfer core runs on
type Stores struct {
	UnitOfWork   transfer.UnitOfWork
	Wallets      wallet.Repository      // Autocommit
	Transactions transaction.Repository // Autocommit
	Directory    actor.Directory
}

// CreateTransferService wires the orchestrator and wallet provisioning over stores
func CreateTransferService(stores Stores, cfg *config.Config, logger *slog.Logger) (*service.TransferServiceImpl, *service.WalletServiceImpl) {
	generator := identifier.NewGenerator(&cfg.Identifier)

	walletService := service.NewWalletService(stores.Wallets, generator, logger.With("component", "wallet_service"))
	ledger := NewLedgerRecorder(stores.Transactions, generator, logger.With("component", "ledger_recorder"))

	transferService := service.NewTransferService(
		stores.UnitOfWork,
		stores.Wallets,
		NewStatusGate(stores.Directory, logger.With("component", "status_gate")),
		NewReceiverResolver(stores.Wallets, stores.Directory, logger.With("component", "receiver_resolver")),
		NewAmountValidator(&cfg.Transfer),
		NewFundsManager(logger.With("component", "funds_manager")),
		ledger,
		NewFailureRecorder(stores.UnitOfWork, ledger, logger.With("component", "failure_recorder")),
		walletService,
		logger.With("component", "transfer_service"),
	)
	return transferService, walletService
}

// CreateTransferExecutor puts base behind an ants worker pool, falling back to base
// when the pool cannot be created
func CreateTransferExecutor(base service.TransferExecutor, cfg *config.Config, logger *slog.Logger) service.TransferExecutor {
	workerPoolService, err := service.NewWorkerPoolTransferService(
		base,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return base
	}

	logger.Info("Created worker pool transfer service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
