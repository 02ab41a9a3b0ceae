package handler

import (
	"apartment_parking/internal/api/middleware"
	"apartment_parking/internal/domain"
	"apartment_parking/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ResidentHandler struct {
	authService         *service.AuthService
	parkingService      *service.ParkingService
	visitorService      *service.VisitorService
	requestService      *service.RequestService
	notificationService *service.NotificationService
}

func NewResidentHandler(as *service.AuthService, ps *service.ParkingService, vs *service.VisitorService,
	rs *service.RequestService, ns *service.NotificationService) *ResidentHandler {
	return &ResidentHandler{
		authService:         as,
		parkingService:      ps,
		visitorService:      vs,
		requestService:      rs,
		notificationService: ns,
	}
}

// currentUser is set by the auth middleware on every resident route.
func currentUser(c *gin.Context) *domain.User {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		panic("resident route registered without authentication")
	}
	return user
}

// --- Profile ---

// GET /resident/profile
func (h *ResidentHandler) GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

// PUT /resident/profile
func (h *ResidentHandler) UpdateProfile(c *gin.Context) {
	var patch domain.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.parkingService.UpdateProfile(c.Request.Context(), currentUser(c), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// PUT /resident/change-password
func (h *ResidentHandler) ChangePassword(c *gin.Context) {
	var dto domain.ChangePasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.authService.ChangePassword(c.Request.Context(), currentUser(c), dto); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// GET /resident/slot
func (h *ResidentHandler) GetAssignedSlot(c *gin.Context) {
	slot, err := h.parkingService.AssignedSlot(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// GET /resident/dashboard
func (h *ResidentHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.parkingService.Dashboard(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// --- Requests ---

// POST /resident/requests/slot-change
func (h *ResidentHandler) CreateSlotChangeRequest(c *gin.Context) {
	var dto domain.SlotChangeRequestDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respondBindError(c, err)
		return
	}

	req, err := h.requestService.CreateSlotChange(c.Request.Context(), currentUser(c), dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// POST /resident/requests/damage-report
func (h *ResidentHandler) CreateDamageReport(c *gin.Context) {
	var dto domain.DamageReportDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respondBindError(c, err)
		return
	}

	req, err := h.requestService.CreateDamageReport(c.Request.Context(), currentUser(c), dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// GET /resident/requests
func (h *ResidentHandler) ListRequests(c *gin.Context) {
	requests, err := h.requestService.ListForResident(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

// GET /resident/requests/:id
func (h *ResidentHandler) GetRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	req, err := h.requestService.GetForResident(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// --- Visitors ---

// POST /resident/visitors
func (h *ResidentHandler) BookVisitor(c *gin.Context) {
	var dto domain.VisitorBookingDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respondBindError(c, err)
		return
	}

	visitor, err := h.visitorService.Book(c.Request.Context(), currentUser(c), dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visitor)
}

// ListVisitors returns the handler for the resident's visitor lists, narrowed
// to the given statuses.
func (h *ResidentHandler) ListVisitors(statuses ...domain.VisitorStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitors, err := h.visitorService.ListForResident(c.Request.Context(), currentUser(c).ID, statuses...)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, visitors)
	}
}

// DELETE /resident/visitors/:id
func (h *ResidentHandler) CancelVisitor(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.visitorService.Cancel(c.Request.Context(), currentUser(c).ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Visitor cancelled successfully"})
}

// PUT /resident/visitors/:id/approve
func (h *ResidentHandler) ApproveVisitor(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	visitor, err := h.visitorService.ApproveByResident(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visitor)
}

// PUT /resident/visitors/:id/reject
func (h *ResidentHandler) RejectVisitor(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	visitor, err := h.visitorService.RejectByResident(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visitor)
}

// --- Notifications ---

// GET /resident/notifications?unread_only=
func (h *ResidentHandler) ListNotifications(c *gin.Context) {
	var q domain.NotificationQueryDTO
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	notifications, err := h.notificationService.List(c.Request.Context(), currentUser(c).ID, q.UnreadOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// PUT /resident/notifications/:id/read
func (h *ResidentHandler) MarkNotificationRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	n, err := h.notificationService.MarkRead(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// PUT /resident/notifications/read-all
func (h *ResidentHandler) MarkAllNotificationsRead(c *gin.Context) {
	count, err := h.notificationService.MarkAllRead(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": count})
}

// GET /resident/notifications/unread-count
func (h *ResidentHandler) UnreadNotificationCount(c *gin.Context) {
	count, err := h.notificationService.UnreadCount(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}
