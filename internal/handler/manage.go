package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/envlocker/envlocker/dao/model"
	"github.com/envlocker/envlocker/dao/store"
	"github.com/envlocker/envlocker/internal/resputil"
	"github.com/envlocker/envlocker/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewManageMgr)
}

// ManageMgr covers the project management console: project CRUD, membership
// and per-environment grants. Every route is open to global admins and to
// project admins of the target project; viewers never reach it.
type ManageMgr struct {
	name  string
	store *store.Store
}

func NewManageMgr(conf *RegisterConfig) Manager {
	return &ManageMgr{
		name:  "manage",
		store: conf.Store,
	}
}

func (mgr *ManageMgr) GetName() string { return mgr.name }

func (mgr *ManageMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ManageMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/manage/projects", mgr.ListProjects)
	g.POST("/manage/projects", mgr.CreateProject)
	g.PATCH("/manage/projects/:slug", mgr.PatchProject)
	g.DELETE("/manage/projects/:slug", mgr.DeleteProject)
	g.POST("/manage/projects/:slug/members", mgr.AddMember)
	g.DELETE("/manage/projects/:slug/members/:userId", mgr.RemoveMember)
	g.POST("/manage/projects/:slug/access", mgr.SetAccess)
}

func (mgr *ManageMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	ProjectCreateReq struct {
		Slug        string   `json:"slug" binding:"required"`
		Name        string   `json:"name" binding:"required"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}

	ProjectPatchReq struct {
		Name        *string   `json:"name"`
		Description *string   `json:"description"`
		Tags        *[]string `json:"tags"`
	}

	MemberAddReq struct {
		UserID uint   `json:"userId" binding:"required"`
		Role   string `json:"role" binding:"required"`
	}

	AccessReq struct {
		UserID      uint   `json:"userId" binding:"required"`
		Environment string `json:"environment" binding:"required"`
		CanRead     bool   `json:"canRead"`
		CanExport   bool   `json:"canExport"`
	}
)

// manageTarget resolves the slug parameter and enforces the manage gate.
func (mgr *ManageMgr) manageTarget(c *gin.Context) (uint, bool) {
	token := util.GetToken(c)
	if token.Role == model.RoleViewer {
		resputil.HTTPError(c, http.StatusForbidden, "Forbidden", resputil.UserNotAllowed)
		return 0, false
	}
	slug := c.Param("slug")
	projectID, ok := mgr.store.ResolveProject(c, slug)
	if !ok {
		resputil.HTTPError(c, http.StatusNotFound, "Project not found", resputil.ResourceNotFound)
		return 0, false
	}
	if token.Role != model.RoleAdmin && !mgr.store.CanManageProject(c, token.UserID, projectID) {
		resputil.HTTPError(c, http.StatusForbidden, "Forbidden", resputil.UserNotAllowed)
		return 0, false
	}
	return projectID, true
}

// ListProjects godoc
// @Summary Projects the caller can manage
// @Description Global admins see everything, project admins their own
// @Tags Manage
// @Success 200 {object} resputil.Response[[]store.ProjectDetail] "Projects"
// @Router /manage/projects [get]
func (mgr *ManageMgr) ListProjects(c *gin.Context) {
	token := util.GetToken(c)
	if token.Role == model.RoleViewer {
		resputil.HTTPError(c, http.StatusForbidden, "Forbidden", resputil.UserNotAllowed)
		return
	}

	var (
		projects []store.ProjectDetail
		err      error
	)
	if token.Role == model.RoleAdmin {
		projects, err = mgr.store.ListAllProjects(c)
	} else {
		projects, err = mgr.store.ListManagedProjects(c, token.UserID)
	}
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, projects)
}

// CreateProject godoc
// @Summary Create a project with its three environments
// @Tags Manage
// @Accept json
// @Param data body ProjectCreateReq true "Project"
// @Success 200 {object} resputil.Response[store.ProjectDetail] "Created project"
// @Failure 409 {object} resputil.Response[any] "Slug already taken"
// @Router /manage/projects [post]
func (mgr *ManageMgr) CreateProject(c *gin.Context) {
	token := util.GetToken(c)
	if token.Role == model.RoleViewer {
		resputil.HTTPError(c, http.StatusForbidden, "Forbidden", resputil.UserNotAllowed)
		return
	}

	var req ProjectCreateReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	created, err := mgr.store.CreateProject(c, token.UserID, req.Slug, req.Name, req.Description, req.Tags)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, created)
}

// PatchProject godoc
// @Summary Update project name, description or tags
// @Tags Manage
// @Accept json
// @Success 200 {object} resputil.Response[store.ProjectDetail] "Updated project"
// @Router /manage/projects/{slug} [patch]
func (mgr *ManageMgr) PatchProject(c *gin.Context) {
	projectID, ok := mgr.manageTarget(c)
	if !ok {
		return
	}

	var req ProjectPatchReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	update := store.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Tags != nil {
		update.Tags = *req.Tags
		update.HasTags = true
	}
	updated, err := mgr.store.UpdateProject(c, projectID, update)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, updated)
}

// DeleteProject godoc
// @Summary Delete a project and everything under it
// @Tags Manage
// @Success 200 {object} resputil.Response[string] "Deleted"
// @Router /manage/projects/{slug} [delete]
func (mgr *ManageMgr) DeleteProject(c *gin.Context) {
	projectID, ok := mgr.manageTarget(c)
	if !ok {
		return
	}
	if err := mgr.store.DeleteProject(c, projectID); err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, "")
}

// AddMember godoc
// @Summary Add or re-role a member
// @Description New members get read and export grants on non-restricted environments
// @Tags Manage
// @Accept json
// @Success 200 {object} resputil.Response[store.MemberOut] "Membership"
// @Router /manage/projects/{slug}/members [post]
func (mgr *ManageMgr) AddMember(c *gin.Context) {
	projectID, ok := mgr.manageTarget(c)
	if !ok {
		return
	}

	var req MemberAddReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	member, err := mgr.store.AddMember(c, projectID, req.UserID, role)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, member)
}

// RemoveMember godoc
// @Summary Remove a member and purge their grants
// @Tags Manage
// @Success 200 {object} resputil.Response[string] "Removed"
// @Router /manage/projects/{slug}/members/{userId} [delete]
func (mgr *ManageMgr) RemoveMember(c *gin.Context) {
	projectID, ok := mgr.manageTarget(c)
	if !ok {
		return
	}
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		resputil.BadRequestError(c, "invalid user id")
		return
	}
	if err := mgr.store.RemoveMember(c, projectID, uint(userID)); err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, "")
}

// SetAccess godoc
// @Summary Set a member's read/export flags on one environment
// @Tags Manage
// @Accept json
// @Success 200 {object} resputil.Response[string] "Saved"
// @Router /manage/projects/{slug}/access [post]
func (mgr *ManageMgr) SetAccess(c *gin.Context) {
	projectID, ok := mgr.manageTarget(c)
	if !ok {
		return
	}

	var req AccessReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	env, err := model.ParseEnvName(req.Environment)
	if err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if err := mgr.store.SetEnvironmentAccess(c, projectID, req.UserID, env, req.CanRead, req.CanExport); err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, "")
}
