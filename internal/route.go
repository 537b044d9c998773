package internal

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/envlocker/envlocker/dao/store"
	"github.com/envlocker/envlocker/internal/handler"
	"github.com/envlocker/envlocker/internal/middleware"
	"github.com/envlocker/envlocker/pkg/config"
	"github.com/envlocker/envlocker/pkg/ratelimit"
)

const apiPrefix = "/v1"

type Backend struct {
	R *gin.Engine
}

func Register(s *store.Store) *Backend {
	b := new(Backend)
	b.R = gin.Default()

	// Health check for the ingress probe
	b.R.GET("/v1/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ok",
		})
	})

	b.RegisterService(s)
	return b
}

func (b *Backend) RegisterService(s *store.Store) {
	conf := config.GetConfig()

	if len(conf.CORS.AllowOrigins) > 0 {
		corsConf := cors.DefaultConfig()
		corsConf.AllowOrigins = conf.CORS.AllowOrigins
		corsConf.AllowHeaders = append(corsConf.AllowHeaders, "Authorization")
		b.R.Use(cors.New(corsConf))
	}

	registerConfig := &handler.RegisterConfig{
		Store: s,
		InviteLimiter: ratelimit.New(
			conf.Invite.RateLimitRequests,
			time.Duration(conf.Invite.RateLimitWindowSec)*time.Second,
		),
	}
	managers := registerManagers(registerConfig)

	///////////////////////////////////////
	//// Public routers, no need login ////
	///////////////////////////////////////

	publicRouter := b.R.Group(apiPrefix)

	///////////////////////////////////////
	//// Protected routers, need login ////
	///////////////////////////////////////

	protectedRouter := b.R.Group(apiPrefix)
	protectedRouter.Use(middleware.AuthProtected(s))

	///////////////////////////////////////
	//// Admin routers, need admin role ///
	///////////////////////////////////////

	adminRouter := b.R.Group(apiPrefix + "/admin")
	adminRouter.Use(middleware.AuthProtected(s), middleware.AuthAdmin())

	for _, mgr := range managers {
		mgr.RegisterPublic(publicRouter)
		mgr.RegisterProtected(protectedRouter)
		mgr.RegisterAdmin(adminRouter)
	}
}
