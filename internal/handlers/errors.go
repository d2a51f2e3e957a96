package handlers

import (
	"errors"
	"net/http"

	"docarchive/internal/common"
	"docarchive/internal/domain"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// respondError renders a service error as the standard error envelope.
// Failures that are not the caller's fault are logged.
func respondError(c echo.Context, logger *zap.Logger, err error) error {
	var storageErr *domain.StorageError
	if errors.As(err, &storageErr) {
		if !storageErr.IsUserError() {
			logger.Error("storage operation failed",
				zap.String("path", c.Path()),
				zap.String("code", string(storageErr.Code)),
				zap.Error(err))
		}
		message := storageErr.Message
		if message == "" {
			message = http.StatusText(storageErr.StatusCode())
		}
		details := fieldErrors(storageErr.Err)
		if details != nil {
			message = storageErr.Error()
		}
		return c.JSON(storageErr.StatusCode(), common.CreateErrorResponse(string(storageErr.Code), message, details))
	}

	logger.Error("unexpected error", zap.String("path", c.Path()), zap.Error(err))
	return common.SendServerError(c, "Internal server error")
}

// fieldErrors flattens ozzo field errors into the envelope's details map.
func fieldErrors(err error) map[string]string {
	var verrs validation.Errors
	if err == nil || !errors.As(err, &verrs) || len(verrs) == 0 {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for field, fieldErr := range verrs {
		details[field] = fieldErr.Error()
	}
	return details
}

// scopeQuery reads department_id and sub_department_id from the query string.
func scopeQuery(c echo.Context) (int64, *int64, error) {
	var departmentID int64
	if raw := c.QueryParam("department_id"); raw != "" {
		id, err := common.ParseID(raw, "department_id")
		if err != nil {
			return 0, nil, err
		}
		departmentID = id
	}
	subDepartmentID, err := common.ParseOptionalID(c.QueryParam("sub_department_id"), "sub_department_id")
	if err != nil {
		return 0, nil, err
	}
	return departmentID, subDepartmentID, nil
}
