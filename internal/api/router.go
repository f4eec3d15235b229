package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jobmate/cancel_go_server/config"
	"github.com/jobmate/cancel_go_server/internal/api/handler"
	"github.com/jobmate/cancel_go_server/internal/api/middleware"
)

type Router struct {
	cancellationHandler *handler.CancellationHandler
	experimentHandler   *handler.ExperimentHandler
	subscriptionHandler *handler.SubscriptionHandler
	websocketHandler    *handler.WebSocketHandler
	cfg                 *config.Config
}

func NewRouter(
	cancellationHandler *handler.CancellationHandler,
	experimentHandler *handler.ExperimentHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		cancellationHandler: cancellationHandler,
		experimentHandler:   experimentHandler,
		subscriptionHandler: subscriptionHandler,
		websocketHandler:    websocketHandler,
		cfg:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")
	{
		// WebSocket 向导长连接，自己做 token 校验
		api.GET("/ws", r.websocketHandler.Handle)

		// 取消流程。生产环境强制认证，演示模式放行匿名请求，
		// 目标用户归属在服务层再校验一次。
		cancellations := api.Group("/cancellations")
		cancellations.Use(middleware.AuthOrDemo(r.cfg.JWT.Secret, r.cfg.Server.DemoMode))
		{
			cancellations.POST("/assign", r.experimentHandler.Assign)
			cancellations.GET("/current", r.cancellationHandler.Get)
			cancellations.PATCH("/current/draft", r.cancellationHandler.SaveDraft)
			cancellations.POST("/current/downsell/accept", r.cancellationHandler.AcceptDownsell)
			cancellations.POST("/current/finalize/found-job", r.cancellationHandler.FinalizeFoundJob)
			cancellations.POST("/current/finalize/still-looking", r.cancellationHandler.FinalizeStillLooking)
		}

		// 订阅
		subscriptions := api.Group("/subscriptions")
		subscriptions.Use(middleware.AuthOrDemo(r.cfg.JWT.Secret, r.cfg.Server.DemoMode))
		{
			subscriptions.GET("/current", r.subscriptionHandler.GetCurrent)
		}

		// 实验统计
		experiment := api.Group("/experiment")
		experiment.Use(middleware.AuthOrDemo(r.cfg.JWT.Secret, r.cfg.Server.DemoMode))
		{
			experiment.GET("/stats", r.experimentHandler.Stats)
		}
	}

	return engine
}
