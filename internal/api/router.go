package api

import (
	"log"
	"net/http"
	"time"

	"github.com/CoderParva/Onebox/internal/api/handlers"
	"github.com/CoderParva/Onebox/internal/classify"
	"github.com/CoderParva/Onebox/internal/config"
	"github.com/CoderParva/Onebox/internal/hub"
	"github.com/CoderParva/Onebox/internal/ingest"
	"github.com/CoderParva/Onebox/internal/mailbox"
	"github.com/CoderParva/Onebox/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SetupRouter initializes and returns the Gin router with all routes
// configured. The pipeline components are injected; the router never
// constructs them.
func SetupRouter(cfg *config.Config, gateway *ingest.Gateway, fanout *hub.Hub, registry *mailbox.Registry, oracle *classify.Oracle, logService *services.LogService) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOriginList(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	defaultAccount := ""
	if len(cfg.Accounts) > 0 {
		defaultAccount = cfg.Accounts[0].Address
	}
	emailHandler := handlers.NewEmailHandler(gateway, registry, oracle, logService, defaultAccount, cfg.SyncDays)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "Server is running"})
	})

	// Live viewer transport: viewers pull current state through the read
	// path on connect, then receive pushes from the hub.
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	router.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed: %v", err)
			return
		}
		fanout.Register(conn)
	})

	api := router.Group("/api")
	{
		api.GET("/emails", emailHandler.ListEmails)
		api.GET("/folders", emailHandler.ListFolders)
		api.POST("/sync", emailHandler.TriggerSync)
		api.POST("/suggest-reply", emailHandler.SuggestReply)
		api.GET("/logs", emailHandler.ListLogs)
	}

	return router
}
