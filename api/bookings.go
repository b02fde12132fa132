package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/service/lifecycle"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service lifecycle.UseCase
}

type createBookingRequest struct {
	PackageID     string `json:"package_id"`
	TouristsCount int    `json:"tourists_count"`
	TourStartDate string `json:"tour_start_date"`
}

func NewBookingHandler(service lifecycle.UseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) RegisterCustomer(router *gin.RouterGroup) {
	router.POST("/bookings", h.create)
	router.GET("/bookings", h.listCustomer)
	router.POST("/bookings/:id/cancel", h.customerCancel)
	router.POST("/bookings/:id/hide", h.hide)
}

func (h *BookingHandler) RegisterAgent(router *gin.RouterGroup) {
	router.GET("/bookings", h.listAgent)
	router.POST("/bookings/:id/decision", h.agentDecision)
}

func (h *BookingHandler) RegisterAdmin(router *gin.RouterGroup) {
	router.GET("/bookings", h.listAll)
	router.POST("/bookings/:id/decision", h.adminDecision)
}

// RegisterShared mounts routes open to every authenticated role.
func (h *BookingHandler) RegisterShared(router *gin.RouterGroup) {
	router.GET("/bookings/:id", h.get)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	input := lifecycle.CreateBookingInput{PackageID: req.PackageID, TouristsCount: req.TouristsCount}
	if req.TourStartDate != "" {
		date, err := time.Parse(dateLayout, req.TourStartDate)
		if err != nil {
			badRequest(c, "tour_start_date must be a YYYY-MM-DD date")
			return
		}
		input.TourStartDate = date
	}

	actor := actorFrom(c)
	booking, err := h.service.CreateBooking(c.Request.Context(), actor, input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(*booking, actor.Role))
}

func (h *BookingHandler) listCustomer(c *gin.Context) {
	actor := actorFrom(c)
	bookings, err := h.service.ListCustomerBookings(c.Request.Context(), actor)
	h.writeList(c, actor, bookings, err)
}

func (h *BookingHandler) listAgent(c *gin.Context) {
	actor := actorFrom(c)
	bookings, err := h.service.ListAgentBookings(c.Request.Context(), actor)
	h.writeList(c, actor, bookings, err)
}

func (h *BookingHandler) listAll(c *gin.Context) {
	actor := actorFrom(c)
	bookings, err := h.service.ListAllBookings(c.Request.Context(), actor)
	h.writeList(c, actor, bookings, err)
}

func (h *BookingHandler) writeList(c *gin.Context, actor domain.Actor, bookings []domain.Booking, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponses(bookings, actor.Role))
}

func (h *BookingHandler) get(c *gin.Context) {
	actor := actorFrom(c)
	booking, err := h.service.GetBooking(c.Request.Context(), actor, c.Param("id"))
	h.writeOne(c, actor, booking, err)
}

func (h *BookingHandler) customerCancel(c *gin.Context) {
	actor := actorFrom(c)
	booking, err := h.service.CustomerCancel(c.Request.Context(), actor, c.Param("id"))
	h.writeOne(c, actor, booking, err)
}

func (h *BookingHandler) hide(c *gin.Context) {
	actor := actorFrom(c)
	booking, err := h.service.HideBooking(c.Request.Context(), actor, c.Param("id"))
	h.writeOne(c, actor, booking, err)
}

func (h *BookingHandler) agentDecision(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	decision, err := domain.ParseAgentDecision(req.Decision)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	actor := actorFrom(c)
	booking, err := h.service.AgentDecision(c.Request.Context(), actor, c.Param("id"), decision)
	h.writeOne(c, actor, booking, err)
}

func (h *BookingHandler) adminDecision(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	decision, err := domain.ParseAdminDecision(req.Decision)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	actor := actorFrom(c)
	booking, err := h.service.AdminDecision(c.Request.Context(), actor, c.Param("id"), decision)
	h.writeOne(c, actor, booking, err)
}

func (h *BookingHandler) writeOne(c *gin.Context, actor domain.Actor, booking *domain.Booking, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(*booking, actor.Role))
}
