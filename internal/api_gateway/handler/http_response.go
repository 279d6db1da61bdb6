package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spwallet-ledger/internal/api_gateway/middleware"
	"github.com/spwallet-ledger/internal/domain/transfer"
)

// Response is the envelope every gateway endpoint answers with. Exactly one of Data and
// Error is set.
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo describes one page of a listing
type MetaInfo struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
	TotalItems int `json:"total_items,omitempty"`
}

func newMetaInfo(page, perPage, totalItems int) *MetaInfo {
	if perPage <= 0 {
		perPage = 1
	}
	return &MetaInfo{
		Page:       page,
		PerPage:    perPage,
		TotalPages: (totalItems + perPage - 1) / perPage,
		TotalItems: totalItems,
	}
}

// respond stamps the request's correlation id on the envelope and writes it
func respond(c *gin.Context, status int, response Response) {
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(status, response)
}

func RespondOK(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, Response{Data: data})
}

func RespondCreated(c *gin.Context, data interface{}) {
	respond(c, http.StatusCreated, Response{Data: data})
}

// RespondAccepted answers a request that was queued rather than executed
func RespondAccepted(c *gin.Context, data interface{}) {
	respond(c, http.StatusAccepted, Response{Data: data})
}

// RespondPage sends one page of items together with its paging metadata
func RespondPage(c *gin.Context, items interface{}, page, perPage, totalItems int) {
	respond(c, http.StatusOK, Response{Data: items, Meta: newMetaInfo(page, perPage, totalItems)})
}

func RespondWithError(c *gin.Context, status int, code, message string) {
	respond(c, status, Response{Error: &ErrorInfo{Code: code, Message: message}})
}

func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, "NOT_FOUND", message)
}

// RespondInternalError hides the cause; callers log it before responding
func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
}

// transferStatus maps each transfer error kind onto an HTTP status
var transferStatus = map[transfer.Kind]int{
	transfer.KindReceiverNotFound:      http.StatusNotFound,
	transfer.KindInvalidReceiver:       http.StatusBadRequest,
	transfer.KindInvalidAmount:         http.StatusBadRequest,
	transfer.KindSenderIneligible:      http.StatusForbidden,
	transfer.KindForbidden:             http.StatusForbidden,
	transfer.KindReceiverIneligible:    http.StatusUnprocessableEntity,
	transfer.KindReceiverWalletMissing: http.StatusUnprocessableEntity,
	transfer.KindInsufficientBalance:   http.StatusUnprocessableEntity,
	transfer.KindLockFailed:            http.StatusConflict,
	transfer.KindTransferFailed:        http.StatusInternalServerError,
}

// RespondTransferError sends the kind and reason of a failed transfer. Errors that are
// not transfer errors become a plain 500.
func RespondTransferError(c *gin.Context, err error) {
	var te *transfer.Error
	if !errors.As(err, &te) {
		RespondInternalError(c)
		return
	}
	status, ok := transferStatus[te.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	RespondWithError(c, status, string(te.Kind), te.Message)
}
