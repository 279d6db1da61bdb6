package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spwallet-ledger/internal/api_gateway/middleware"
	"github.com/spwallet-ledger/internal/api_gateway/service"
	"github.com/spwallet-ledger/internal/domain/history"
	"github.com/spwallet-ledger/internal/domain/transaction"
)

// WalletHandler handles HTTP requests for the caller's wallet
type WalletHandler struct {
	walletService  service.WalletService
	historyService service.HistoryService
	logger         *slog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, walletService service.WalletService, historyService service.HistoryService) *WalletHandler {
	return &WalletHandler{
		walletService:  walletService,
		historyService: historyService,
		logger:         logger,
	}
}

// GetMine returns the caller's wallet, creating it on first access
func (h *WalletHandler) GetMine(c *gin.Context) {
	userID := middleware.GetActor(c).UserID

	w, err := h.walletService.GetMyWallet(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get wallet", "user_id", userID, "error", err)
		RespondInternalError(c)
		return
	}
	RespondOK(c, mapWalletToResponse(w))
}

// History returns the caller's paginated transaction history
func (h *WalletHandler) History(c *gin.Context) {
	var query HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	userID := middleware.GetActor(c).UserID
	filter := history.Filter{
		Status: transaction.Status(query.Status),
		Type:   transaction.Type(query.Type),
	}

	entries, total, err := h.historyService.GetHistory(c.Request.Context(), userID, filter, query.Page, query.PerPage)
	if err != nil {
		h.logger.Error("Failed to get history", "user_id", userID, "error", err)
		RespondInternalError(c)
		return
	}

	items := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, mapHistoryToResponse(e))
	}
	RespondPage(c, items, query.Page, query.PerPage, int(total))
}
