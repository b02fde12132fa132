package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/gin-gonic/gin"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

var statusByCode = map[domain.Code]int{
	domain.CodeValidation:        http.StatusBadRequest,
	domain.CodeNotFound:          http.StatusNotFound,
	domain.CodeForbidden:         http.StatusForbidden,
	domain.CodeInvalidTransition: http.StatusConflict,
	domain.CodeConflict:          http.StatusConflict,
	domain.CodeGatewayTimeout:    http.StatusGatewayTimeout,
	domain.CodeGatewayError:      http.StatusBadGateway,
	domain.CodeUnauthenticated:   http.StatusUnauthorized,
}

func writeError(c *gin.Context, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorEnvelope{
			Error: apiError{Code: string(domain.CodeUnknown), Message: "internal error"},
		})
		return
	}

	status, ok := statusByCode[de.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, errorEnvelope{
		Error: apiError{Code: string(de.Code), Message: de.Message},
	})
}

func badRequest(c *gin.Context, message string) {
	writeError(c, domain.Validation("%s", message))
}
