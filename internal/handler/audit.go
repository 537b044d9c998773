package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/envlocker/envlocker/dao/model"
	"github.com/envlocker/envlocker/dao/store"
	"github.com/envlocker/envlocker/internal/resputil"
	"github.com/envlocker/envlocker/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewAuditMgr)
}

type AuditMgr struct {
	name  string
	store *store.Store
}

func NewAuditMgr(conf *RegisterConfig) Manager {
	return &AuditMgr{
		name:  "audit",
		store: conf.Store,
	}
}

func (mgr *AuditMgr) GetName() string { return mgr.name }

func (mgr *AuditMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *AuditMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("/audit/copy", mgr.TrackCopy)
}

func (mgr *AuditMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("/audit", mgr.ListEvents)
}

type CopyReq struct {
	SecretID  uint   `json:"secretId" binding:"required"`
	ProjectID string `json:"projectId"`
}

// TrackCopy godoc
// @Summary Record that a secret value was copied to the clipboard
// @Tags Audit
// @Accept json
// @Success 200 {object} resputil.Response[string] "Recorded"
// @Router /audit/copy [post]
func (mgr *AuditMgr) TrackCopy(c *gin.Context) {
	var req CopyReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	token := util.GetToken(c)
	var projectID *uint
	if req.ProjectID != "" {
		if !mgr.store.HasProjectAccess(c, token.UserID, req.ProjectID) {
			resputil.HTTPError(c, http.StatusForbidden, "Forbidden", resputil.UserNotAllowed)
			return
		}
		if id, ok := mgr.store.ResolveProject(c, req.ProjectID); ok {
			projectID = &id
		}
	}

	meta := datatypes.JSONMap{"projectId": req.ProjectID}
	if secret, err := mgr.store.GetSecret(c, token.UserID, req.SecretID); err == nil {
		meta["secretName"] = secret.Name
	}
	err := mgr.store.AddAuditEvent(c, projectID, &token.UserID, model.AuditSecretCopied,
		"secret", &req.SecretID, meta)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, "")
}

// ListEvents godoc
// @Summary Activity feed
// @Description Newest first, capped at 200 entries
// @Tags Audit
// @Param action query string false "Action filter"
// @Param projectId query string false "Project slug filter"
// @Param userEmail query string false "Actor filter"
// @Param from query string false "RFC 3339 lower bound"
// @Param to query string false "RFC 3339 upper bound"
// @Success 200 {object} resputil.Response[[]store.AuditEventOut] "Events"
// @Router /admin/audit [get]
func (mgr *AuditMgr) ListEvents(c *gin.Context) {
	filter := store.AuditFilter{
		Action:      c.Query("action"),
		ProjectSlug: c.Query("projectId"),
		UserEmail:   c.Query("userEmail"),
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			resputil.BadRequestError(c, "invalid from timestamp")
			return
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			resputil.BadRequestError(c, "invalid to timestamp")
			return
		}
		filter.To = &t
	}

	events, err := mgr.store.ListAuditEvents(c, filter)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, events)
}
