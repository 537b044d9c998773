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
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewSecretMgr)
}

type SecretMgr struct {
	name  string
	store *store.Store
}

func NewSecretMgr(conf *RegisterConfig) Manager {
	return &SecretMgr{
		name:  "secrets",
		store: conf.Store,
	}
}

func (mgr *SecretMgr) GetName() string { return mgr.name }

func (mgr *SecretMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *SecretMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/projects/:slug/secrets", mgr.ListSecrets)
	g.POST("/projects/:slug/secrets", mgr.CreateSecret)
	g.GET("/secrets/:id", mgr.GetSecret)
	g.PATCH("/secrets/:id", mgr.PatchSecret)
	g.DELETE("/secrets/:id", mgr.DeleteSecret)
	g.GET("/secrets/:id/reveal", mgr.RevealSecret)
	g.GET("/search", mgr.Search)
}

func (mgr *SecretMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	SecretCreateReq struct {
		Name        string   `json:"name" binding:"required"`
		Provider    string   `json:"provider"`
		Type        string   `json:"type" binding:"required"`
		Environment string   `json:"environment" binding:"required"`
		KeyName     string   `json:"keyName" binding:"required"`
		Value       string   `json:"value" binding:"required"`
		Tags        []string `json:"tags"`
		Notes       string   `json:"notes"`
	}

	SecretPatchReq struct {
		Name     *string   `json:"name"`
		Provider *string   `json:"provider"`
		Type     *string   `json:"type"`
		KeyName  *string   `json:"keyName"`
		Value    *string   `json:"value"`
		Tags     *[]string `json:"tags"`
		Notes    *string   `json:"notes"`
	}
)

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}

// secretFilterFromQuery reads the shared list/search query parameters.
func secretFilterFromQuery(c *gin.Context) store.SecretFilter {
	return store.SecretFilter{
		Env:      model.EnvName(c.Query("env")),
		Provider: c.Query("provider"),
		Tag:      c.Query("tag"),
		Type:     model.SecretType(c.Query("type")),
		Query:    c.Query("q"),
	}
}

// ListSecrets godoc
// @Summary List a project's secrets
// @Description Masked values only; prod rows the caller cannot read are omitted
// @Tags Secrets
// @Param slug path string true "Project slug"
// @Success 200 {object} resputil.Response[[]store.SecretOut] "Secrets"
// @Router /projects/{slug}/secrets [get]
func (mgr *SecretMgr) ListSecrets(c *gin.Context) {
	token := util.GetToken(c)
	slug := c.Param("slug")

	if !mgr.store.HasProjectAccess(c, token.UserID, slug) {
		resputil.HTTPError(c, http.StatusForbidden, "Forbidden", resputil.UserNotAllowed)
		return
	}

	filter := secretFilterFromQuery(c)
	filter.ProjectSlug = slug
	secrets, err := mgr.store.ListSecrets(c, token.UserID, filter)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, secrets)
}

// Search godoc
// @Summary Search secrets across every accessible project
// @Tags Secrets
// @Param q query string false "Substring of name, key or provider"
// @Success 200 {object} resputil.Response[[]store.SecretOut] "Matches"
// @Router /search [get]
func (mgr *SecretMgr) Search(c *gin.Context) {
	token := util.GetToken(c)
	filter := secretFilterFromQuery(c)
	if filter.Env == "" {
		filter.Env = model.EnvName(c.Query("environment"))
	}
	secrets, err := mgr.store.ListSecrets(c, token.UserID, filter)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, secrets)
}

// CreateSecret godoc
// @Summary Create a secret
// @Description Needs read access to the target environment; viewers cannot create
// @Tags Secrets
// @Accept json
// @Param slug path string true "Project slug"
// @Param data body SecretCreateReq true "Secret"
// @Success 200 {object} resputil.Response[store.SecretOut] "Created secret"
// @Failure 409 {object} resputil.Response[any] "Key name already used in the environment"
// @Router /projects/{slug}/secrets [post]
func (mgr *SecretMgr) CreateSecret(c *gin.Context) {
	token := util.GetToken(c)
	if token.Role == model.RoleViewer {
		resputil.HTTPError(c, http.StatusForbidden, "Forbidden", resputil.UserNotAllowed)
		return
	}

	var req SecretCreateReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	env, err := model.ParseEnvName(req.Environment)
	if err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	secretType, err := model.ParseSecretType(req.Type)
	if err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	created, err := mgr.store.CreateSecret(c, token.UserID, c.Param("slug"), store.SecretCreate{
		Name:        req.Name,
		Provider:    req.Provider,
		Type:        secretType,
		Environment: env,
		KeyName:     req.KeyName,
		Value:       req.Value,
		Tags:        req.Tags,
		Notes:       req.Notes,
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}

	projectID := uint(0)
	if id, ok := mgr.store.ResolveProject(c, created.ProjectID); ok {
		projectID = id
	}
	_ = mgr.store.AddAuditEvent(c, &projectID, &token.UserID, model.AuditSecretCreated,
		"secret", &created.ID, datatypes.JSONMap{"secretName": created.Name})
	resputil.Success(c, created)
}

// GetSecret godoc
// @Summary Fetch one secret, masked
// @Tags Secrets
// @Success 200 {object} resputil.Response[store.SecretOut] "Secret"
// @Failure 404 {object} resputil.Response[any] "Missing or not visible to the caller"
// @Router /secrets/{id} [get]
func (mgr *SecretMgr) GetSecret(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	token := util.GetToken(c)
	secret, err := mgr.store.GetSecret(c, token.UserID, id)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, secret)
}

// PatchSecret godoc
// @Summary Update a secret
// @Description A value change snapshots the previous version; tags are replaced wholesale
// @Tags Secrets
// @Accept json
// @Success 200 {object} resputil.Response[store.SecretOut] "Updated secret"
// @Router /secrets/{id} [patch]
func (mgr *SecretMgr) PatchSecret(c *gin.Context) {
	token := util.GetToken(c)
	if token.Role == model.RoleViewer {
		resputil.HTTPError(c, http.StatusForbidden, "Forbidden", resputil.UserNotAllowed)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req SecretPatchReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	patch := store.SecretPatch{
		Name:     req.Name,
		Provider: req.Provider,
		KeyName:  req.KeyName,
		Value:    req.Value,
		Notes:    req.Notes,
	}
	if req.Type != nil {
		secretType, err := model.ParseSecretType(*req.Type)
		if err != nil {
			resputil.BadRequestError(c, err.Error())
			return
		}
		patch.Type = &secretType
	}
	if req.Tags != nil {
		patch.Tags = *req.Tags
		patch.HasTags = true
	}

	updated, err := mgr.store.UpdateSecret(c, token.UserID, id, patch)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	projectID := uint(0)
	if pid, ok := mgr.store.ResolveProject(c, updated.ProjectID); ok {
		projectID = pid
	}
	_ = mgr.store.AddAuditEvent(c, &projectID, &token.UserID, model.AuditSecretUpdated,
		"secret", &updated.ID, datatypes.JSONMap{"secretName": updated.Name})
	resputil.Success(c, updated)
}

// DeleteSecret godoc
// @Summary Delete a secret and its history
// @Description Restricted to globally administrative accounts
// @Tags Secrets
// @Success 200 {object} resputil.Response[string] "Deleted"
// @Router /secrets/{id} [delete]
func (mgr *SecretMgr) DeleteSecret(c *gin.Context) {
	token := util.GetToken(c)
	if token.Role != model.RoleAdmin {
		resputil.HTTPError(c, http.StatusForbidden, "Forbidden", resputil.UserNotAllowed)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	deleted, err := mgr.store.DeleteSecret(c, token.UserID, id)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	projectID := uint(0)
	if pid, ok := mgr.store.ResolveProject(c, deleted.ProjectSlug); ok {
		projectID = pid
	}
	_ = mgr.store.AddAuditEvent(c, &projectID, &token.UserID, model.AuditSecretDeleted,
		"secret", &deleted.ID, datatypes.JSONMap{"secretName": deleted.Name})
	resputil.Success(c, "")
}

// RevealSecret godoc
// @Summary Reveal the plaintext value
// @Description Same gate as read; prod needs an explicit grant
// @Tags Secrets
// @Success 200 {object} resputil.Response[store.RevealOut] "Plaintext value"
// @Router /secrets/{id}/reveal [get]
func (mgr *SecretMgr) RevealSecret(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	token := util.GetToken(c)
	value, err := mgr.store.RevealSecret(c, token.UserID, id)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, value)
}
