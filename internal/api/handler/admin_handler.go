package handler

import (
	"apartment_parking/internal/domain"
	"apartment_parking/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	authService    Registrar
	parkingService *service.ParkingService
	visitorService *service.VisitorService
	requestService *service.RequestService
	lprService     *service.LPRService
}

func NewAdminHandler(as Registrar, ps *service.ParkingService, vs *service.VisitorService, rs *service.RequestService, lpr *service.LPRService) *AdminHandler {
	return &AdminHandler{
		authService:    as,
		parkingService: ps,
		visitorService: vs,
		requestService: rs,
		lprService:     lpr,
	}
}

// --- Users and residents ---

// GET /admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.parkingService.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// GET /admin/residents
func (h *AdminHandler) ListResidents(c *gin.Context) {
	residents, err := h.parkingService.ListResidents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, residents)
}

// POST /admin/residents
func (h *AdminHandler) CreateResident(c *gin.Context) {
	var dto domain.CreateResidentDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), dto.Registration())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DELETE /admin/residents/:id
func (h *AdminHandler) DeleteResident(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.parkingService.DeleteResident(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Resident deleted successfully"})
}

// PUT /admin/residents/:id/assign-slot?slot_id=
func (h *AdminHandler) AssignSlot(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var dto domain.AssignSlotDTO
	if err := c.ShouldBindQuery(&dto); err != nil {
		respondBindError(c, err)
		return
	}

	resident, err := h.parkingService.AssignSlot(c.Request.Context(), id, dto.SlotID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resident)
}

// --- Slots ---

// GET /admin/slots
func (h *AdminHandler) ListSlots(c *gin.Context) {
	slots, err := h.parkingService.ListSlots(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

// POST /admin/slots
func (h *AdminHandler) CreateSlot(c *gin.Context) {
	var dto domain.SlotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respondBindError(c, err)
		return
	}

	slot, err := h.parkingService.CreateSlot(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// PUT /admin/slots/:id
func (h *AdminHandler) UpdateSlot(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var patch domain.SlotPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBindError(c, err)
		return
	}

	slot, err := h.parkingService.UpdateSlot(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// DELETE /admin/slots/:id
func (h *AdminHandler) DeleteSlot(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.parkingService.DeleteSlot(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Slot deleted successfully"})
}

// PUT /admin/slots/:id/mark-damaged
func (h *AdminHandler) MarkSlotDamaged(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	slot, err := h.parkingService.MarkSlotDamaged(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// PUT /admin/slots/:id/mark-repaired
func (h *AdminHandler) MarkSlotRepaired(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	slot, err := h.parkingService.MarkSlotRepaired(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// --- Visitors ---

// GET /admin/visitors?status=&skip=&limit=
func (h *AdminHandler) ListVisitors(c *gin.Context) {
	var q domain.ListQueryDTO
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	h.listVisitors(c, q)
}

// GET /admin/visitors/pending
func (h *AdminHandler) ListPendingVisitors(c *gin.Context) {
	h.listVisitors(c, domain.ListQueryDTO{Status: string(domain.VisitorPending)})
}

func (h *AdminHandler) listVisitors(c *gin.Context, q domain.ListQueryDTO) {
	visitors, err := h.visitorService.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visitors)
}

// POST /admin/visitors/unplanned
func (h *AdminHandler) RegisterUnplannedVisitor(c *gin.Context) {
	var dto domain.UnplannedVisitorDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respondBindError(c, err)
		return
	}

	visitor, err := h.visitorService.RegisterUnplanned(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visitor)
}

// POST /admin/visitors/unplanned/scan
func (h *AdminHandler) ScanUnplannedVisitor(c *gin.Context) {
	var dto domain.PlateScanDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.lprService.ScanUnplanned(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PUT /admin/visitors/:id/approve?slot_id=
func (h *AdminHandler) ApproveVisitor(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var dto domain.ApproveVisitorDTO
	if err := c.ShouldBindQuery(&dto); err != nil {
		respondBindError(c, err)
		return
	}

	visitor, err := h.visitorService.ApproveByAdmin(c.Request.Context(), id, dto.SlotID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visitor)
}

// PUT /admin/visitors/:id/reject
func (h *AdminHandler) RejectVisitor(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	visitor, err := h.visitorService.RejectByAdmin(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visitor)
}

// PUT /admin/visitors/:id/mark-exit
func (h *AdminHandler) MarkVisitorExit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	visitor, err := h.visitorService.MarkExit(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visitor)
}

// --- Requests ---

// GET /admin/requests?status=&skip=&limit=
func (h *AdminHandler) ListRequests(c *gin.Context) {
	var q domain.ListQueryDTO
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	h.listRequests(c, domain.RequestFilter{Status: domain.RequestStatus(q.Status), Offset: q.Skip, Limit: q.Limit})
}

// GET /admin/requests/pending
func (h *AdminHandler) ListPendingRequests(c *gin.Context) {
	h.listRequests(c, domain.RequestFilter{Status: domain.RequestPending})
}

// GET /admin/requests/damage-reports
func (h *AdminHandler) ListDamageReports(c *gin.Context) {
	h.listRequests(c, domain.RequestFilter{RequestType: domain.RequestDamageReport})
}

func (h *AdminHandler) listRequests(c *gin.Context, filter domain.RequestFilter) {
	requests, err := h.requestService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

// ResolveRequest returns the handler for PUT /admin/requests/:id/{approve,reject,complete}.
func (h *AdminHandler) ResolveRequest(to domain.RequestStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		req, err := h.requestService.Resolve(c.Request.Context(), id, to)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, req)
	}
}

// GET /admin/summary
func (h *AdminHandler) Summary(c *gin.Context) {
	summary, err := h.parkingService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
