package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"otp-gateway/internal/apperr"
)

func respondError(c *gin.Context, err error) {
	status := apperr.StatusCode(err)
	kind := apperr.KindOf(err)

	msg := err.Error()
	var e *apperr.Error
	if !errors.As(err, &e) {
		msg = "internal server error"
	}

	if status >= http.StatusInternalServerError {
		logrus.WithField("path", c.FullPath()).Errorf("Request failed: %v", err)
	}

	c.JSON(status, ErrorResponse{Error: msg, Code: string(kind)})
}
