package utils

import "github.com/gin-gonic/gin"

// JSONResponse defines the uniform structure for service endpoints like
// /health and /api/v1/stats.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(200, JSONResponse{Code: 0, Message: "success", Data: data})
}

// FileError writes the gateway's public error shape. Internal detail never
// goes into the body; callers log it before answering.
func FileError(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"error": message})
}
