package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/service/catalog"
	"github.com/Domenick1991/tourbooking/internal/service/lifecycle"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PackageHandler struct {
	lifecycle lifecycle.UseCase
	catalog   catalog.CatalogUseCase
}

type submitPackageRequest struct {
	Title       string          `json:"title"`
	Destination string          `json:"destination"`
	Duration    string          `json:"duration"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	TourStart   string          `json:"tour_start"`
	TourEnd     string          `json:"tour_end"`
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

func NewPackageHandler(lc lifecycle.UseCase, cat catalog.CatalogUseCase) *PackageHandler {
	return &PackageHandler{lifecycle: lc, catalog: cat}
}

// RegisterPublic mounts the catalogue, which needs no credentials.
func (h *PackageHandler) RegisterPublic(router *gin.RouterGroup) {
	router.GET("/packages", h.listApproved)
	router.GET("/packages/:id", h.getApproved)
}

func (h *PackageHandler) RegisterAgent(router *gin.RouterGroup) {
	router.POST("/packages", h.submit)
	router.GET("/packages", h.listMine)
	router.PUT("/packages/:id", h.update)
	router.POST("/packages/:id/delete-request", h.requestDelete)
}

func (h *PackageHandler) RegisterAdmin(router *gin.RouterGroup) {
	router.GET("/packages", h.listByStatus)
	router.POST("/packages/:id/decision", h.decide)
	router.DELETE("/packages/:id", h.finalizeDelete)
}

func (h *PackageHandler) listApproved(c *gin.Context) {
	packages, err := h.catalog.ListApproved(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPackageResponses(packages, ""))
}

func (h *PackageHandler) getApproved(c *gin.Context) {
	pkg, err := h.catalog.GetApproved(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPackageResponse(*pkg, ""))
}

func (h *PackageHandler) submit(c *gin.Context) {
	input, ok := bindPackageInput(c)
	if !ok {
		return
	}

	actor := actorFrom(c)
	pkg, err := h.lifecycle.SubmitPackage(c.Request.Context(), actor, input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPackageResponse(*pkg, actor.Role))
}

func (h *PackageHandler) update(c *gin.Context) {
	input, ok := bindPackageInput(c)
	if !ok {
		return
	}

	actor := actorFrom(c)
	pkg, err := h.lifecycle.UpdatePackage(c.Request.Context(), actor, c.Param("id"), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPackageResponse(*pkg, actor.Role))
}

// bindPackageInput writes the error response itself when it returns false.
func bindPackageInput(c *gin.Context) (lifecycle.SubmitPackageInput, bool) {
	var req submitPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return lifecycle.SubmitPackageInput{}, false
	}

	input := lifecycle.SubmitPackageInput{
		Title:       req.Title,
		Destination: req.Destination,
		Duration:    req.Duration,
		Description: req.Description,
		Price:       req.Price,
	}
	var err error
	if input.TourStart, err = parseOptionalDate(req.TourStart); err != nil {
		badRequest(c, "tour_start must be a YYYY-MM-DD date")
		return input, false
	}
	if input.TourEnd, err = parseOptionalDate(req.TourEnd); err != nil {
		badRequest(c, "tour_end must be a YYYY-MM-DD date")
		return input, false
	}
	return input, true
}

func (h *PackageHandler) listMine(c *gin.Context) {
	actor := actorFrom(c)
	packages, err := h.lifecycle.ListAgentPackages(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPackageResponses(packages, actor.Role))
}

func (h *PackageHandler) requestDelete(c *gin.Context) {
	actor := actorFrom(c)
	pkg, err := h.lifecycle.RequestPackageDelete(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPackageResponse(*pkg, actor.Role))
}

func (h *PackageHandler) listByStatus(c *gin.Context) {
	var status domain.PackageStatus
	if raw := c.Query("status"); raw != "" {
		parsed, err := domain.ParsePackageStatus(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		status = parsed
	}

	actor := actorFrom(c)
	packages, err := h.lifecycle.ListPackagesByStatus(c.Request.Context(), actor, status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPackageResponses(packages, actor.Role))
}

func (h *PackageHandler) decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	decision, err := domain.ParsePackageDecision(req.Decision)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	actor := actorFrom(c)
	pkg, err := h.lifecycle.DecidePackage(c.Request.Context(), actor, c.Param("id"), decision)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPackageResponse(*pkg, actor.Role))
}

func (h *PackageHandler) finalizeDelete(c *gin.Context) {
	if _, err := h.lifecycle.FinalizePackageDelete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
