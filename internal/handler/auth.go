package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"k8s.io/klog/v2"

	"github.com/envlocker/envlocker/dao/model"
	"github.com/envlocker/envlocker/dao/store"
	"github.com/envlocker/envlocker/internal/resputil"
	"github.com/envlocker/envlocker/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewAuthMgr)
}

type AuthMgr struct {
	name     string
	store    *store.Store
	tokenMgr *util.TokenManager
}

func NewAuthMgr(conf *RegisterConfig) Manager {
	return &AuthMgr{
		name:     "auth",
		store:    conf.Store,
		tokenMgr: util.GetTokenMgr(),
	}
}

func (mgr *AuthMgr) GetName() string { return mgr.name }

func (mgr *AuthMgr) RegisterPublic(g *gin.RouterGroup) {
	g.POST("/login", mgr.Login)
	g.POST("/register", mgr.Register)
	g.POST("/refresh", mgr.Refresh)
}

func (mgr *AuthMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("/logout", mgr.Logout)
	g.GET("/me", mgr.Me)
	g.PUT("/me/preferences", mgr.UpdatePreferences)
}

func (mgr *AuthMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	LoginReq struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	RegisterReq struct {
		FirstName        string `json:"firstName" binding:"required"`
		LastName         string `json:"lastName" binding:"required"`
		Email            string `json:"email" binding:"required"`
		Password         string `json:"password" binding:"required"`
		AccountType      string `json:"accountType" binding:"required"`
		OrganizationName string `json:"organizationName"`
		InviteCode       string `json:"inviteCode"`
	}

	RefreshReq struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	LogoutReq struct {
		RefreshToken string `json:"refreshToken"`
	}

	UserContext struct {
		UserID uint       `json:"userId"`
		Email  string     `json:"email"`
		Name   string     `json:"name"`
		Role   model.Role `json:"role"` // Global role on the platform
	}

	LoginResp struct {
		AccessToken  string      `json:"accessToken"`
		RefreshToken string      `json:"refreshToken"`
		Context      UserContext `json:"context"`
	}

	ProfileResp struct {
		UserContext
		Preferences datatypes.JSONMap  `json:"preferences"`
		Assignments []store.Assignment `json:"assignments"`
	}
)

func (mgr *AuthMgr) issueTokens(c *gin.Context, user *model.User) (LoginResp, error) {
	msg := util.JWTMessage{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}
	accessToken, refreshToken, err := mgr.tokenMgr.CreateTokens(&msg)
	if err != nil {
		return LoginResp{}, err
	}
	if err := mgr.store.StoreRefreshToken(c, user.ID, refreshToken, mgr.tokenMgr.RefreshExpiry()); err != nil {
		return LoginResp{}, err
	}
	return LoginResp{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Context: UserContext{
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.DisplayName,
			Role:   user.Role,
		},
	}, nil
}

// Login godoc
// @Summary User login
// @Description Verify credentials and issue JWT tokens
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body LoginReq true "Credentials"
// @Success 200 {object} resputil.Response[LoginResp] "Tokens and user context"
// @Failure 400 {object} resputil.Response[any] "Invalid request"
// @Failure 401 {object} resputil.Response[any] "Invalid credentials"
// @Router /login [post]
func (mgr *AuthMgr) Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	user, err := mgr.store.Authenticate(c, req.Email, req.Password)
	if err != nil {
		klog.Infof("login rejected for %s", req.Email)
		resputil.HTTPError(c, http.StatusUnauthorized, "Invalid credentials", resputil.InvalidCredentials)
		return
	}

	resp, err := mgr.issueTokens(c, user)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, resp)
}

// Register godoc
// @Summary Create an account and its workspace
// @Description Personal accounts get a private project; organization accounts either create one with an invite code or join by redeeming one
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body RegisterReq true "Registration form"
// @Success 200 {object} resputil.Response[store.RegisterOut] "Created account"
// @Failure 400 {object} resputil.Response[any] "Invalid request"
// @Failure 409 {object} resputil.Response[any] "Email already registered"
// @Router /register [post]
func (mgr *AuthMgr) Register(c *gin.Context) {
	var req RegisterReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	out, err := mgr.store.Register(c, store.RegisterRequest{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Password:         req.Password,
		AccountType:      store.AccountType(req.AccountType),
		OrganizationName: req.OrganizationName,
		InviteCode:       req.InviteCode,
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	klog.Infof("registered user %s (%s)", out.Email, req.AccountType)
	resputil.Success(c, out)
}

// Refresh godoc
// @Summary Rotate tokens
// @Description Exchange a valid refresh token for a fresh pair; the old one is revoked
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body RefreshReq true "Refresh token"
// @Success 200 {object} resputil.Response[LoginResp] "New tokens"
// @Failure 401 {object} resputil.Response[any] "Expired or revoked token"
// @Router /refresh [post]
func (mgr *AuthMgr) Refresh(c *gin.Context) {
	var req RefreshReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	msg, err := mgr.tokenMgr.CheckRefreshToken(req.RefreshToken)
	if err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, err.Error(), resputil.TokenExpired)
		return
	}
	if !mgr.store.ValidRefreshToken(c, msg.UserID, req.RefreshToken) {
		resputil.HTTPError(c, http.StatusUnauthorized, "Refresh token revoked", resputil.TokenExpired)
		return
	}

	user, err := mgr.store.GetUserByID(c, msg.UserID)
	if err != nil || !user.IsActive {
		resputil.HTTPError(c, http.StatusUnauthorized, "User is not active", resputil.TokenExpired)
		return
	}

	if err := mgr.store.RevokeRefreshToken(c, msg.UserID, req.RefreshToken); err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resp, err := mgr.issueTokens(c, user)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, resp)
}

// Logout godoc
// @Summary Log out
// @Description Revoke the presented refresh token; a second logout is harmless
// @Tags Auth
// @Success 200 {object} resputil.Response[string] "Logged out"
// @Router /logout [post]
func (mgr *AuthMgr) Logout(c *gin.Context) {
	var req LogoutReq
	_ = c.ShouldBind(&req)

	token := util.GetToken(c)
	if req.RefreshToken != "" {
		if err := mgr.store.RevokeRefreshToken(c, token.UserID, req.RefreshToken); err != nil {
			resputil.Error(c, err.Error(), resputil.NotSpecified)
			return
		}
	}
	resputil.Success(c, "")
}

// Me godoc
// @Summary Current user profile
// @Description Profile plus per-project assignment overview
// @Tags Auth
// @Success 200 {object} resputil.Response[ProfileResp] "Profile"
// @Router /me [get]
func (mgr *AuthMgr) Me(c *gin.Context) {
	token := util.GetToken(c)
	user, err := mgr.store.GetUserByID(c, token.UserID)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	assignments, err := mgr.store.Assignments(c, user.ID)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, ProfileResp{
		UserContext: UserContext{
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.DisplayName,
			Role:   user.Role,
		},
		Preferences: user.Preferences,
		Assignments: assignments,
	})
}

// UpdatePreferences godoc
// @Summary Replace UI preferences
// @Tags Auth
// @Accept json
// @Success 200 {object} resputil.Response[string] "Saved"
// @Router /me/preferences [put]
func (mgr *AuthMgr) UpdatePreferences(c *gin.Context) {
	var prefs datatypes.JSONMap
	if err := c.ShouldBind(&prefs); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.store.UpdatePreferences(c, token.UserID, prefs); err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, "")
}
