package controllers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/KING-DAVIDX/cdn-example/models"
	"github.com/KING-DAVIDX/cdn-example/utils"
)

// StatsController provides gateway statistics such as stored file counts and daily traffic.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns aggregate statistics for the gateway.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var fileCount int64
	if err := s.db.Model(&models.FileRecord{}).Count(&fileCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		fileCount = 0
	}

	utils.Success(ctx, gin.H{
		"file_count":    fileCount,
		"uploads_today": utils.TodayUploads(),
		"fetches_today": utils.TodayFetches(),
	})
}
