package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"notify-service/internal/engine"
	"notify-service/internal/gate"
	"notify-service/internal/models"
	"notify-service/internal/service"
	"notify-service/pkg/response"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

type scheduleRequest struct {
	models.NotificationInput
	When time.Time `json:"when" binding:"required"`
}

// Send godoc
// @Summary Send a notification
// @Tags notifications
// @Accept json
// @Produce json
// @Param input body models.NotificationInput true "Notification input"
// @Success 201 {object} response.Envelope
// @Router /notifications [post]
func (h *NotificationHandler) Send(c *gin.Context) {
	var input models.NotificationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.svc.Send(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, n)
}

// SendBatch godoc
// @Summary Send a batch of notifications
// @Tags notifications
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /notifications/batch [post]
func (h *NotificationHandler) SendBatch(c *gin.Context) {
	var inputs []models.NotificationInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	notifications, err := h.svc.SendBatch(c.Request.Context(), inputs)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, notifications)
}

// Schedule godoc
// @Summary Schedule a notification for later delivery
// @Tags notifications
// @Accept json
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /notifications/schedule [post]
func (h *NotificationHandler) Schedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.svc.Schedule(c.Request.Context(), req.NotificationInput, req.When)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, response.Envelope{Data: gin.H{"scheduleId": id}})
}

// List godoc
// @Summary List the authenticated user's notifications
// @Tags notifications
// @Produce json
// @Param status query string false "unread or read"
// @Param type query string false "notification type"
// @Param category query string false "category"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	var filters models.NotificationFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		response.Error(c, http.StatusBadRequest, "invalid status filter")
		return
	}

	notifications, err := h.svc.GetForUser(c.Request.Context(), currentUserID(c), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, notifications)
}

// Get godoc
// @Summary Fetch a single notification
// @Tags notifications
// @Produce json
// @Param id path string true "notification id"
// @Success 200 {object} response.Envelope
// @Router /notifications/{id} [get]
func (h *NotificationHandler) Get(c *gin.Context) {
	n, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if n.UserID != currentUserID(c) {
		response.Error(c, http.StatusForbidden, "cannot access another user's notification")
		return
	}
	response.OK(c, n)
}

// UnreadCount godoc
// @Summary Current unread count for the authenticated user
// @Tags notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.svc.GetUnreadCount(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, gin.H{"count": count})
}

// Stats godoc
// @Summary Notification statistics for the authenticated user
// @Tags notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/stats [get]
func (h *NotificationHandler) Stats(c *gin.Context) {
	stats, err := h.svc.GetStats(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, stats)
}

// MarkRead godoc
// @Summary Mark one notification as read
// @Tags notifications
// @Param id path string true "notification id"
// @Success 204
// @Router /notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id := c.Param("id")

	n, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if n.UserID != currentUserID(c) {
		response.Error(c, http.StatusForbidden, "cannot modify another user's notification")
		return
	}

	if err := h.svc.MarkAsRead(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAllRead godoc
// @Summary Mark all of the authenticated user's notifications as read
// @Tags notifications
// @Success 204
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.svc.MarkAllAsRead(c.Request.Context(), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete one notification
// @Tags notifications
// @Param id path string true "notification id"
// @Success 204
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	n, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if n.UserID != currentUserID(c) {
		response.Error(c, http.StatusForbidden, "cannot modify another user's notification")
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteAll godoc
// @Summary Delete all of the authenticated user's notifications
// @Tags notifications
// @Success 204
// @Router /notifications [delete]
func (h *NotificationHandler) DeleteAll(c *gin.Context) {
	if err := h.svc.DeleteAll(c.Request.Context(), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	response.NoContent(c)
}

// GetPreferences godoc
// @Summary Delivery preferences for the authenticated user
// @Tags preferences
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /preferences [get]
func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	pref, err := h.svc.GetPreferences(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, pref)
}

// UpdatePreferences godoc
// @Summary Partially update delivery preferences
// @Tags preferences
// @Accept json
// @Success 204
// @Router /preferences [put]
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	var update models.PreferenceUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.UpdatePreferences(c.Request.Context(), currentUserID(c), update); err != nil {
		respondError(c, err)
		return
	}
	response.NoContent(c)
}

// Health godoc
// @Summary Service health, including readiness gate state
// @Tags health
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /healthz [get]
func (h *NotificationHandler) Health(c *gin.Context) {
	state, components := h.svc.HealthCheck(c.Request.Context())

	status := http.StatusOK
	if state == gate.StateFailed {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response.Envelope{Data: gin.H{
		"state":      state.String(),
		"components": components,
	}})
}

func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		response.Error(c, http.StatusNotFound, "notification not found")
	case errors.Is(err, gate.ErrUnavailable):
		response.Error(c, http.StatusServiceUnavailable, "notification engine unavailable")
	default:
		response.Error(c, http.StatusInternalServerError, err.Error())
	}
}
