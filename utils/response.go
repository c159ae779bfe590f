package utils

import "github.com/gin-gonic/gin"

// Error writes the flat error shape every failing endpoint returns.
func Error(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"error": message})
}
