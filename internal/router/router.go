package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"selllink/internal/controller"
	"selllink/internal/middleware"
	"selllink/internal/session"
	"selllink/internal/stage"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	sessions *session.Manager,
	cookieMaxAge int,
	listingCtl *controller.ListingController,
	publicCtl *controller.PublicController,
	localUploadDir string) {

	// 1. 公开分享页：无会话依赖
	r.GET("/p/:slug", publicCtl.Resolve)

	// 2. 本地存储时去背结果走静态目录
	if localUploadDir != "" {
		r.Static("/uploads", localUploadDir)
	}

	// 3. 向导 API 路由组：全部挂会话
	api := r.Group("/api", middleware.Session(sessions, cookieMaxAge))
	{
		api.GET("/draft", listingCtl.GetDraft)
		api.POST("/upload", listingCtl.Upload)
		api.POST("/reset", listingCtl.Reset)

		// 慢速 AI 能力：同会话同能力一次只放一个请求
		api.POST("/detect", middleware.Latch(session.CapDetect), listingCtl.Detect)
		api.POST("/detect/select", listingCtl.SelectLabel)
		api.POST("/enhance", middleware.Latch(session.CapEnhance), listingCtl.Enhance)
		api.POST("/copy", middleware.Latch(session.CapCopy), listingCtl.GenerateCopy)
		api.PATCH("/copy", listingCtl.UpdateCopy)
		api.POST("/price/suggest", middleware.Latch(session.CapPrice), listingCtl.SuggestPrice)
		api.POST("/price", listingCtl.SubmitPrice)

		api.GET("/share/:slug", listingCtl.GetShare)
	}

	// 4. 未匹配路径统一指回向导起点
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": "页面不存在",
			"data":    gin.H{"redirect": stage.StageUpload.Path()},
		})
	})
}
