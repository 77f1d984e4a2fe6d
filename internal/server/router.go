package server

import (
	"net/http"
	"time"

	"stickyboard/internal/auth"
	"stickyboard/internal/config"
	"stickyboard/internal/metrics"
	"stickyboard/internal/mw"
	"stickyboard/internal/service"
	"stickyboard/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及推送通道端点。
func SetupRouter(cfg config.Config, db *gorm.DB, hub *ws.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	// 拖拽会对位置接口产生高频 PATCH，限速上限按这个节奏放宽。
	r.Use(mw.RateLimit(rate.Every(time.Second/50), 100))

	h := NewHandler(cfg,
		service.NewUserService(db),
		service.NewBoardService(db),
		service.NewNoteService(db),
	)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/validate-token", auth.RequireUserAccess(cfg.AccessSecret), h.ValidateToken)
	r.POST("/refresh-token", auth.RequireUserRefresh(cfg.RefreshSecret), h.RefreshToken)
	r.POST("/refresh-board-token", auth.RequireBoardRefresh(cfg.BoardRefreshSecret), h.RefreshBoardToken)

	// get-board-details 按请求体决定用哪种 token 校验，handler 内部处理。
	r.POST("/get-board-details", h.GetBoardDetails)

	authed := r.Group("", auth.RequireUserAccess(cfg.AccessSecret))
	authed.POST("/create-board", h.CreateBoard)
	authed.POST("/verify-board-password", h.VerifyBoardPassword)
	authed.POST("/create-sticky-note", h.CreateStickyNote)
	authed.GET("/notes/:id", h.Notes)
	authed.PATCH("/notes_position/:id", h.UpdateNotePosition)
	authed.PATCH("/notes_content/:id", h.UpdateNoteContent)
	authed.PATCH("/notes_dimensions/:id", h.UpdateNoteDimensions)
	authed.DELETE("/notes_delete/:id", h.DeleteNote)
	authed.GET("/boards", h.Boards)
	authed.DELETE("/boards/:id", h.DeleteBoard)

	r.GET("/ws", ws.Serve(hub, cfg))

	return r
}
