// internal/api/handlers.go
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	"loyalty-notify/internal/common/errors"
	"loyalty-notify/internal/models"
	"loyalty-notify/internal/notification/report"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type NotificationService interface {
	Create(ctx context.Context, organizationID, actorID, title, body string) (*models.Notification, error)
	Get(ctx context.Context, organizationID, id string) (*models.Notification, error)
	List(ctx context.Context, organizationID string, statuses []models.NotificationStatus, limit int) ([]models.Notification, error)
	Update(ctx context.Context, organizationID, id, title, body string) (*models.Notification, error)
	Trigger(ctx context.Context, organizationID, notificationID string) (*models.DispatchResult, error)
	Quota(ctx context.Context, organizationID string) (*models.QuotaStatus, error)
	Moderate(ctx context.Context, title, body string) (*models.ModerationVerdict, error)
}

type SubscriptionService interface {
	Register(ctx context.Context, beneficiaryID, token, platform, deviceID string) (*models.PushSubscription, error)
	Unregister(ctx context.Context, beneficiaryID, token string) error
}

type ReportReader interface {
	Get(ctx context.Context, notificationID string) (*models.DispatchReport, error)
}

type NotificationHandler struct {
	service NotificationService
	reports ReportReader
}

func NewNotificationHandler(service NotificationService, reports ReportReader) *NotificationHandler {
	return &NotificationHandler{service: service, reports: reports}
}

type draftRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type dispatchRequest struct {
	NotificationID string `json:"notificationId"`
}

func (h *NotificationHandler) Create(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	n, err := h.service.Create(c.Request.Context(), c.Param("orgId"), identityFrom(c).Subject, req.Title, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, "Notification created", n)
}

func (h *NotificationHandler) List(c *gin.Context) {
	var statuses []models.NotificationStatus
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, models.NotificationStatus(strings.TrimSpace(s)))
		}
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(c, errors.NewValidationError(map[string]string{"limit": "must be a positive integer"}))
			return
		}
		limit = n
	}

	list, err := h.service.List(c.Request.Context(), c.Param("orgId"), statuses, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Notifications retrieved", list)
}

// notificationID rejects ids that are not UUIDs; such a notification cannot exist.
func notificationID(c *gin.Context, id string) (string, bool) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		respondError(c, errors.NewNotificationNotFoundError(id))
		return "", false
	}
	return id, true
}

func (h *NotificationHandler) Get(c *gin.Context) {
	id, ok := notificationID(c, c.Param("id"))
	if !ok {
		return
	}
	n, err := h.service.Get(c.Request.Context(), c.Param("orgId"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Notification retrieved", n)
}

func (h *NotificationHandler) Update(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}
	id, ok := notificationID(c, c.Param("id"))
	if !ok {
		return
	}

	n, err := h.service.Update(c.Request.Context(), c.Param("orgId"), id, req.Title, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Notification updated", n)
}

func (h *NotificationHandler) Dispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}
	if strings.TrimSpace(req.NotificationID) == "" {
		respondError(c, errors.NewValidationError(map[string]string{"notificationId": "is required"}))
		return
	}
	id, ok := notificationID(c, req.NotificationID)
	if !ok {
		return
	}

	result, err := h.service.Trigger(c.Request.Context(), c.Param("orgId"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Notification dispatched", result)
}

func (h *NotificationHandler) Moderate(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	verdict, err := h.service.Moderate(c.Request.Context(), req.Title, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Content moderated", verdict)
}

func (h *NotificationHandler) Quota(c *gin.Context) {
	status, err := h.service.Quota(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Quota retrieved", status)
}

// Report returns the analytics record of a finished dispatch.
func (h *NotificationHandler) Report(c *gin.Context) {
	id, ok := notificationID(c, c.Param("id"))
	if !ok {
		return
	}
	n, err := h.service.Get(c.Request.Context(), c.Param("orgId"), id)
	if err != nil {
		respondError(c, err)
		return
	}

	rep, err := h.reports.Get(c.Request.Context(), n.ID)
	if stderrors.Is(err, report.ErrReportNotFound) {
		respondError(c, errors.NewNotificationNotFoundError(n.ID))
		return
	}
	if err != nil {
		respondError(c, errors.NewInternalError(err))
		return
	}
	respondSuccess(c, http.StatusOK, "Dispatch report retrieved", rep)
}

type SubscriptionHandler struct {
	service SubscriptionService
}

func NewSubscriptionHandler(service SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

type registerRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
	DeviceID string `json:"deviceId"`
}

type unregisterRequest struct {
	Token string `json:"token"`
}

func (h *SubscriptionHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	sub, err := h.service.Register(c.Request.Context(), identityFrom(c).Subject, req.Token, req.Platform, req.DeviceID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, "Push subscription registered", sub)
}

func (h *SubscriptionHandler) Unregister(c *gin.Context) {
	var req unregisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	if err := h.service.Unregister(c.Request.Context(), identityFrom(c).Subject, req.Token); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Push subscription removed", nil)
}

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	checks map[string]func(ctx context.Context) error
}

func NewHealthHandler(checks map[string]func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Health(c *gin.Context) {
	respondSuccess(c, http.StatusOK, "healthy", gin.H{"status": "ok"})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	results := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check(c.Request.Context()); err != nil {
			results[name] = err.Error()
			ready = false
			continue
		}
		results[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, Envelope{Success: false, Message: "not ready", Data: results})
		return
	}
	respondSuccess(c, http.StatusOK, "ready", results)
}
