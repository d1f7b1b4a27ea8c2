package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"otp-gateway/internal/apperr"
)

// GetOTP exchanges a PIN for a one-time passcode
func (h *Handlers) GetOTP(c *gin.Context) {
	var req GetOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	res, err := h.gateway.GetOTP(c.Request.Context(), req.Account(), req.Pin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GetOTPResponse{OTP: res.Code, Source: res.Source})
}
