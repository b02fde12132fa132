package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/gateway"
	"github.com/Domenick1991/tourbooking/internal/service/lifecycle"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxCallbackBody = 64 << 10

type PaymentHandler struct {
	service       lifecycle.UseCase
	webhookSecret string
	log           logrus.FieldLogger
}

type initiatePaymentRequest struct {
	Method string `json:"method"`
}

type resolveRequest struct {
	Outcome string `json:"outcome"`
}

func NewPaymentHandler(service lifecycle.UseCase, webhookSecret string, log logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{service: service, webhookSecret: webhookSecret, log: log}
}

func (h *PaymentHandler) RegisterCustomer(router *gin.RouterGroup) {
	router.POST("/bookings/:id/payments", h.initiate)
	router.GET("/payments", h.listCustomer)
}

func (h *PaymentHandler) RegisterAdmin(router *gin.RouterGroup) {
	router.GET("/payments", h.listAll)
	router.GET("/payments/stats", h.stats)
	router.POST("/payments/:id/refund", h.refund)
	router.POST("/payments/:id/resolve", h.adminResolve)
}

func (h *PaymentHandler) RegisterShared(router *gin.RouterGroup) {
	router.GET("/payments/:id", h.get)
}

// RegisterGateway mounts the payment gateway callback. It is authenticated
// by an HMAC signature over the body instead of a bearer token.
func (h *PaymentHandler) RegisterGateway(router *gin.RouterGroup) {
	router.POST("/payments/:id/resolve", h.gatewayResolve)
}

func (h *PaymentHandler) initiate(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	actor := actorFrom(c)
	payment, err := h.service.InitiatePayment(c.Request.Context(), actor, c.Param("id"), req.Method)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPaymentResponse(*payment, actor.Role))
}

func (h *PaymentHandler) listCustomer(c *gin.Context) {
	actor := actorFrom(c)
	payments, err := h.service.ListCustomerPayments(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponses(payments, actor.Role))
}

func (h *PaymentHandler) stats(c *gin.Context) {
	stats, err := h.service.PaymentStats(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentStatsResponse(stats))
}

func (h *PaymentHandler) listAll(c *gin.Context) {
	var status domain.PaymentStatus
	if raw := c.Query("status"); raw != "" {
		switch s := domain.PaymentStatus(raw); s {
		case domain.PaymentStatusPending, domain.PaymentStatusSuccess, domain.PaymentStatusFailed, domain.PaymentStatusRefunded:
			status = s
		default:
			badRequest(c, "unknown payment status: "+raw)
			return
		}
	}

	actor := actorFrom(c)
	payments, err := h.service.ListAllPayments(c.Request.Context(), actor, status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponses(payments, actor.Role))
}

func (h *PaymentHandler) get(c *gin.Context) {
	actor := actorFrom(c)
	payment, err := h.service.GetPayment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(*payment, actor.Role))
}

func (h *PaymentHandler) refund(c *gin.Context) {
	actor := actorFrom(c)
	payment, err := h.service.RefundPayment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(*payment, actor.Role))
}

func (h *PaymentHandler) adminResolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	outcome, err := domain.ParsePaymentOutcome(req.Outcome)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	actor := actorFrom(c)
	payment, err := h.service.AdminResolvePayment(c.Request.Context(), actor, c.Param("id"), outcome)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(*payment, actor.Role))
}

func (h *PaymentHandler) gatewayResolve(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}
	signature := c.GetHeader(gateway.SignatureHeader)
	timestamp := c.GetHeader(gateway.TimestampHeader)
	if !gateway.VerifyCallback(c.Param("id"), body, timestamp, signature, h.webhookSecret, time.Now()) {
		h.log.WithField("payment_id", c.Param("id")).Warn("rejected gateway callback with bad signature")
		writeError(c, domain.Unauthenticated("invalid gateway signature"))
		return
	}

	var req resolveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	outcome, err := domain.ParsePaymentOutcome(req.Outcome)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	payment, err := h.service.ResolvePayment(c.Request.Context(), c.Param("id"), outcome)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": payment.ID, "status": payment.Status})
}
