package handlers

import (
	"net/http"
	"strconv"
	"time"

	"docarchive/internal/common"
	"docarchive/internal/models"
	"docarchive/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TransactionLogHandlers serves the storage activity ledger
type TransactionLogHandlers struct {
	txLog  services.TransactionLogService
	logger *zap.Logger
}

func NewTransactionLogHandlers(txLog services.TransactionLogService, logger *zap.Logger) *TransactionLogHandlers {
	return &TransactionLogHandlers{txLog: txLog, logger: logger}
}

// ListTransactions retrieves ledger entries with filtering and pagination
func (h *TransactionLogHandlers) ListTransactions(c echo.Context) error {
	filters := &models.TransactionFilters{}
	if operationType := c.QueryParam("operation_type"); operationType != "" {
		filters.OperationType = &operationType
	}
	if status := c.QueryParam("status"); status != "" {
		if status != models.OutcomeSuccess && status != models.OutcomeFailed {
			return common.SendValidationError(c, "status", "status must be success or failed")
		}
		filters.Status = &status
	}
	actorID, err := common.ParseOptionalID(c.QueryParam("actor_id"), "actor_id")
	if err != nil {
		return common.SendValidationError(c, "actor_id", err.Error())
	}
	filters.ActorID = actorID

	if startDate := c.QueryParam("start_date"); startDate != "" {
		sd, err := time.Parse(time.RFC3339, startDate)
		if err != nil {
			return common.SendValidationError(c, "start_date", "start_date must be RFC3339")
		}
		filters.StartDate = &sd
	}
	if endDate := c.QueryParam("end_date"); endDate != "" {
		ed, err := time.Parse(time.RFC3339, endDate)
		if err != nil {
			return common.SendValidationError(c, "end_date", "end_date must be RFC3339")
		}
		filters.EndDate = &ed
	}

	filters.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filters.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	entries, err := h.txLog.ListTransactions(c.Request().Context(), filters)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   entries,
		"total":  len(entries),
		"limit":  filters.Limit,
		"offset": filters.Offset,
	})
}
