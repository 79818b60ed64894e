package controller

import (
	"edu_progress_backend/internal/service"
	"edu_progress_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	NotificationService *service.NotificationService
}

func NewNotificationController(notificationService *service.NotificationService) *NotificationController {
	return &NotificationController{NotificationService: notificationService}
}

// @Summary 站内通知
// @Tags 通知
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "条数，默认 20"
// @Success 200 {object} util.Response{data=[]model.Notification}
// @Router /api/notifications [get]
func (c *NotificationController) ListNotifications(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	list, err := c.NotificationService.ListNotifications(ctx.Request.Context(), user.UserID, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}
