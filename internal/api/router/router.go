package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"peerworkshop/backend/config"
	"peerworkshop/backend/internal/api/handler"
	"peerworkshop/backend/internal/api/middleware"
	"peerworkshop/backend/pkg/jwt"
	"peerworkshop/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			// 认证模块（需要认证）
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// 工作坊模块
			workshops := authorized.Group("/workshops")
			{
				workshops.GET("", h.Workshop.List)
				workshops.GET("/:id", h.Workshop.Get)
				workshops.POST("", middleware.RoleAuth("teacher", "admin"), h.Workshop.Create)
				workshops.PUT("/:id", middleware.RoleAuth("teacher", "admin"), h.Workshop.Update)
				workshops.DELETE("/:id", middleware.RoleAuth("teacher", "admin"), h.Workshop.Delete)
				workshops.PUT("/:id/phase", middleware.RoleAuth("teacher", "admin"), h.Workshop.SwitchPhase)
				workshops.POST("/:id/aggregate", middleware.RoleAuth("teacher", "admin"), h.Workshop.Aggregate)
				workshops.GET("/:id/calendar.ics", h.Workshop.ExportCalendar)

				// 报表与校准
				workshops.GET("/:id/report", middleware.RoleAuth("teacher", "admin"), h.Report.GetReport)
				workshops.GET("/:id/report/export", middleware.RoleAuth("teacher", "admin"), h.Report.ExportReport)
				workshops.GET("/:id/calibration", middleware.RoleAuth("teacher", "admin"), h.Report.GetCalibrationScores)

				// 提交与示例
				workshops.POST("/:id/submissions", h.Submission.Create)
				workshops.GET("/:id/submissions", h.Submission.List)
				workshops.POST("/:id/examples", middleware.RoleAuth("teacher", "admin"), h.Submission.CreateExample)
				workshops.POST("/:id/examples/assign", h.Submission.AssignExamples)
				workshops.GET("/:id/examples/mine", h.Submission.MyExamples)
			}

			// 提交模块
			submissions := authorized.Group("/submissions")
			{
				submissions.GET("/:id", h.Submission.Get)
				submissions.PUT("/:id", h.Submission.Update)
				submissions.DELETE("/:id", middleware.RoleAuth("teacher", "admin"), h.Submission.Delete)
				submissions.PUT("/:id/grade", middleware.RoleAuth("teacher", "admin"), h.Submission.OverrideGrade)
				submissions.PUT("/:id/publish", middleware.RoleAuth("teacher", "admin"), h.Submission.SetPublished)
				submissions.GET("/:id/assessments", h.Assessment.ListBySubmission)
			}

			// 评审分配模块（教师）
			allocations := authorized.Group("/allocations")
			allocations.Use(middleware.RoleAuth("teacher", "admin"))
			{
				allocations.POST("", h.Assessment.AddAllocation)
				allocations.DELETE("", h.Assessment.DeleteAllocations)
			}

			// 评审模块
			assessments := authorized.Group("/assessments")
			{
				assessments.GET("/:id", h.Assessment.Get)
				assessments.PUT("/:id/grade", h.Assessment.SaveGrade)
				assessments.POST("/:id/flag", h.Assessment.Flag)
				assessments.POST("/:id/resolve-flag", middleware.RoleAuth("teacher", "admin"), h.Assessment.ResolveFlag)
				assessments.PUT("/:id/grading-grade", middleware.RoleAuth("teacher", "admin"), h.Assessment.OverrideGradingGrade)
			}
		}
	}

	return r
}
