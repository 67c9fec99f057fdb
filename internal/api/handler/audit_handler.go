package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
)

const defaultAuditLimit = 20

// AuditReader lists recorded authentication events.
type AuditReader interface {
	Recent(ctx context.Context, userID string, limit int64) ([]domain.AuditEntry, error)
}

// AuditHandler serves the authentication audit trail.
type AuditHandler struct {
	reader AuditReader
}

func NewAuditHandler(reader AuditReader) *AuditHandler {
	return &AuditHandler{reader: reader}
}

// Recent lists audit entries, newest first. Without user_id it lists the
// signed-in user's own entries.
//
// @Summary      Authentication audit trail
// @Tags         audit
// @Produce      json
// @Param        user_id  query     string  false  "User id"
// @Param        limit    query     int     false  "Max entries (1-100)"
// @Success      200      {array}   domain.AuditEntry
// @Failure      401      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Failure      422      {object}  map[string]string
// @Router       /auth/audit [get]
func (h *AuditHandler) Recent(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}

	var q auditQuery
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid query"})
	}
	if err := c.Validate(&q); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}
	if q.UserID == "" {
		q.UserID = s.User.ID
	}
	if q.Limit == 0 {
		q.Limit = defaultAuditLimit
	}

	entries, err := h.reader.Recent(c.Request().Context(), q.UserID, q.Limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}
