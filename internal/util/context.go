package util

import (
	"github.com/gin-gonic/gin"

	"github.com/envlocker/envlocker/dao/model"
)

const (
	UserIDKey    = "x-user-id"
	UserEmailKey = "x-user-email"
	UserRoleKey  = "x-user-role"
)

func SetJWTContext(c *gin.Context, msg JWTMessage) {
	c.Set(UserIDKey, msg.UserID)
	c.Set(UserEmailKey, msg.Email)
	c.Set(UserRoleKey, msg.Role)
}

func GetToken(ctx *gin.Context) JWTMessage {
	var msg JWTMessage
	msg.UserID = ctx.GetUint(UserIDKey)
	msg.Email = ctx.GetString(UserEmailKey)

	role, _ := ctx.Get(UserRoleKey)
	msg.Role, _ = role.(model.Role)
	return msg
}
