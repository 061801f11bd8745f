package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-agent-go/internal/api/handler"
	"resume-agent-go/internal/api/middleware"
)

// Handlers 路由需要的全部处理器
type Handlers struct {
	Resume    *handler.ResumeHandler
	Job       *handler.JobHandler
	Pipeline  *handler.PipelineHandler
	Dashboard *handler.DashboardHandler
}

// RegisterRoutes 注册 API 路由。健康检查不鉴权，业务路由统一挂租户认证中间件
func RegisterRoutes(h *server.Hertz, tenantKeys map[string]string, handlers Handlers) {
	h.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1", middleware.TenantAuth(tenantKeys))

	resumes := api.Group("/resumes")
	resumes.POST("", handlers.Resume.HandleStore)
	resumes.POST("/upload", handlers.Resume.HandleUpload)
	resumes.GET("", handlers.Resume.HandleList)
	resumes.GET("/:resume_id", handlers.Resume.HandleGet)
	resumes.DELETE("/:resume_id", handlers.Resume.HandleDelete)
	resumes.GET("/:resume_id/match", handlers.Resume.HandleMatch)

	jobs := api.Group("/jobs")
	jobs.POST("", handlers.Job.HandleStore)
	jobs.GET("", handlers.Job.HandleList)
	jobs.GET("/:job_id", handlers.Job.HandleGet)
	jobs.DELETE("/:job_id", handlers.Job.HandleDelete)

	api.POST("/pipeline/:task", handlers.Pipeline.HandleRun)
	api.GET("/dashboard/stats", handlers.Dashboard.HandleStats)
}
