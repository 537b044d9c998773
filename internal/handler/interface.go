package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/envlocker/envlocker/dao/store"
	"github.com/envlocker/envlocker/pkg/ratelimit"
)

type Manager interface {
	GetName() string
	RegisterPublic(group *gin.RouterGroup)
	RegisterProtected(group *gin.RouterGroup)
	RegisterAdmin(group *gin.RouterGroup)
}

// RegisterConfig carries the shared dependencies handed to every manager
// constructor.
type RegisterConfig struct {
	Store         *store.Store
	InviteLimiter *ratelimit.Limiter
}

type RegisterFunc func(conf *RegisterConfig) Manager

// Registers collects manager constructors via init functions, one per
// handler file.
var Registers []RegisterFunc
