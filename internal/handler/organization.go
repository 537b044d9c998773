package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/envlocker/envlocker/dao/model"
	"github.com/envlocker/envlocker/dao/store"
	"github.com/envlocker/envlocker/internal/resputil"
	"github.com/envlocker/envlocker/internal/util"
	"github.com/envlocker/envlocker/pkg/ratelimit"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewOrganizationMgr)
}

type OrganizationMgr struct {
	name    string
	store   *store.Store
	limiter *ratelimit.Limiter
}

func NewOrganizationMgr(conf *RegisterConfig) Manager {
	return &OrganizationMgr{
		name:    "organizations",
		store:   conf.Store,
		limiter: conf.InviteLimiter,
	}
}

func (mgr *OrganizationMgr) GetName() string { return mgr.name }

func (mgr *OrganizationMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *OrganizationMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/organizations/managed", mgr.ListManaged)
	g.GET("/organizations/:slug/invites", mgr.ListInvites)
	g.POST("/organizations/:slug/invites", mgr.CreateInvite)
	g.POST("/organizations/:slug/invites/rotate", mgr.RotateInvite)
	g.DELETE("/organizations/:slug/invites/:id", mgr.RevokeInvite)
}

func (mgr *OrganizationMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type InviteCreateReq struct {
	ExpiresInHours int `json:"expiresInHours"`
	MaxUses        int `json:"maxUses"`
}

// allowInvite applies the per-user sliding window shared by create and
// rotate, since rotation also mints a code.
func (mgr *OrganizationMgr) allowInvite(c *gin.Context, userID uint) bool {
	if mgr.limiter.Allow(strconv.FormatUint(uint64(userID), 10)) {
		return true
	}
	resputil.HTTPError(c, http.StatusTooManyRequests, "Too many invite requests", resputil.RateLimited)
	return false
}

// ListManaged godoc
// @Summary Organizations the caller administers
// @Tags Organizations
// @Success 200 {object} resputil.Response[[]store.OrganizationSummary] "Organizations"
// @Router /organizations/managed [get]
func (mgr *OrganizationMgr) ListManaged(c *gin.Context) {
	token := util.GetToken(c)
	orgs, err := mgr.store.ListManagedOrganizations(c, token.UserID)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, orgs)
}

// ListInvites godoc
// @Summary Invite history for a project
// @Description Project-admin only; codes are never returned here
// @Tags Organizations
// @Success 200 {object} resputil.Response[[]store.InviteOut] "Invites"
// @Router /organizations/{slug}/invites [get]
func (mgr *OrganizationMgr) ListInvites(c *gin.Context) {
	token := util.GetToken(c)
	invites, err := mgr.store.ListInvites(c, token.UserID, c.Param("slug"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, invites)
}

// CreateInvite godoc
// @Summary Mint a new invite code
// @Description The plaintext code appears only in this response
// @Tags Organizations
// @Accept json
// @Success 200 {object} resputil.Response[store.InviteOut] "Invite with code"
// @Failure 429 {object} resputil.Response[any] "Rate limited"
// @Router /organizations/{slug}/invites [post]
func (mgr *OrganizationMgr) CreateInvite(c *gin.Context) {
	token := util.GetToken(c)
	if !mgr.allowInvite(c, token.UserID) {
		return
	}

	var req InviteCreateReq
	_ = c.ShouldBind(&req)
	if req.ExpiresInHours == 0 {
		req.ExpiresInHours = store.DefaultInviteExpiryHours
	}

	slug := c.Param("slug")
	invite, err := mgr.store.CreateInvite(c, token.UserID, slug, req.ExpiresInHours, req.MaxUses)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	mgr.auditInvite(c, token.UserID, slug, model.AuditInviteCreated, invite.ID)
	resputil.Success(c, invite)
}

// RotateInvite godoc
// @Summary Rotate the project's invite code
// @Description Deactivates every active invite and mints a replacement
// @Tags Organizations
// @Success 200 {object} resputil.Response[store.InviteOut] "New invite with code"
// @Router /organizations/{slug}/invites/rotate [post]
func (mgr *OrganizationMgr) RotateInvite(c *gin.Context) {
	token := util.GetToken(c)
	if !mgr.allowInvite(c, token.UserID) {
		return
	}

	var req InviteCreateReq
	_ = c.ShouldBind(&req)
	if req.ExpiresInHours == 0 {
		req.ExpiresInHours = store.DefaultInviteExpiryHours
	}

	slug := c.Param("slug")
	invite, err := mgr.store.RotateInvite(c, token.UserID, slug, req.ExpiresInHours, req.MaxUses)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	mgr.auditInvite(c, token.UserID, slug, model.AuditInviteRotated, invite.ID)
	resputil.Success(c, invite)
}

// RevokeInvite godoc
// @Summary Deactivate one invite
// @Description Revoking an inactive invite succeeds without effect
// @Tags Organizations
// @Success 200 {object} resputil.Response[string] "Revoked"
// @Router /organizations/{slug}/invites/{id} [delete]
func (mgr *OrganizationMgr) RevokeInvite(c *gin.Context) {
	token := util.GetToken(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid id")
		return
	}

	slug := c.Param("slug")
	if err := mgr.store.RevokeInvite(c, token.UserID, slug, uint(id)); err != nil {
		respondStoreError(c, err)
		return
	}
	mgr.auditInvite(c, token.UserID, slug, model.AuditInviteRevoked, uint(id))
	resputil.Success(c, "")
}

func (mgr *OrganizationMgr) auditInvite(c *gin.Context, userID uint, slug, action string, inviteID uint) {
	projectID, ok := mgr.store.ResolveProject(c, slug)
	if !ok {
		return
	}
	_ = mgr.store.AddAuditEvent(c, &projectID, &userID, action,
		"invite", &inviteID, datatypes.JSONMap{"projectId": slug})
}
