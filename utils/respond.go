package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Detail writes the single-message JSON body used across the auth endpoints.
func Detail(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"detail": message})
}

// FieldErrors writes a 400 with field-keyed message lists.
func FieldErrors(ctx *gin.Context, errs map[string][]string) {
	ctx.JSON(http.StatusBadRequest, errs)
}

// NotFound writes the standard 404 body.
func NotFound(ctx *gin.Context) {
	Detail(ctx, http.StatusNotFound, "Not found.")
}
