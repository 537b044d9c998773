package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/envlocker/envlocker/dao/model"
	"github.com/envlocker/envlocker/dao/store"
	"github.com/envlocker/envlocker/internal/resputil"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewUserMgr)
}

type UserMgr struct {
	name  string
	store *store.Store
}

func NewUserMgr(conf *RegisterConfig) Manager {
	return &UserMgr{
		name:  "users",
		store: conf.Store,
	}
}

func (mgr *UserMgr) GetName() string { return mgr.name }

func (mgr *UserMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *UserMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *UserMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("/users", mgr.ListUsers)
	g.POST("/users", mgr.CreateUser)
	g.PATCH("/users/:id", mgr.PatchUser)
}

type (
	UserCreateReq struct {
		Email       string `json:"email" binding:"required"`
		DisplayName string `json:"displayName" binding:"required"`
		Password    string `json:"password" binding:"required"`
		Role        string `json:"role" binding:"required"`
	}

	UserPatchReq struct {
		DisplayName *string `json:"displayName"`
		Role        *string `json:"role"`
		IsActive    *bool   `json:"isActive"`
		Password    *string `json:"password"`
	}
)

// ListUsers godoc
// @Summary All accounts
// @Tags Users
// @Success 200 {object} resputil.Response[[]store.UserOut] "Users"
// @Router /admin/users [get]
func (mgr *UserMgr) ListUsers(c *gin.Context) {
	users, err := mgr.store.ListUsers(c)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, users)
}

// CreateUser godoc
// @Summary Provision an account without registration
// @Tags Users
// @Accept json
// @Success 200 {object} resputil.Response[store.UserOut] "Created user"
// @Failure 409 {object} resputil.Response[any] "Email already registered"
// @Router /admin/users [post]
func (mgr *UserMgr) CreateUser(c *gin.Context) {
	var req UserCreateReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	user, err := mgr.store.CreateUser(c, req.Email, req.DisplayName, req.Password, role)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, user)
}

// PatchUser godoc
// @Summary Update role, status, name or password
// @Tags Users
// @Accept json
// @Success 200 {object} resputil.Response[store.UserOut] "Updated user"
// @Router /admin/users/{id} [patch]
func (mgr *UserMgr) PatchUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req UserPatchReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	patch := store.UserPatch{
		DisplayName: req.DisplayName,
		IsActive:    req.IsActive,
		Password:    req.Password,
	}
	if req.Role != nil {
		role, err := model.ParseRole(*req.Role)
		if err != nil {
			resputil.BadRequestError(c, err.Error())
			return
		}
		patch.Role = &role
	}
	user, err := mgr.store.UpdateUser(c, id, patch)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, user)
}
