package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/envlocker/envlocker/dao/store"
	"github.com/envlocker/envlocker/internal/resputil"
	"github.com/envlocker/envlocker/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewProjectMgr)
}

type ProjectMgr struct {
	name  string
	store *store.Store
}

func NewProjectMgr(conf *RegisterConfig) Manager {
	return &ProjectMgr{
		name:  "projects",
		store: conf.Store,
	}
}

func (mgr *ProjectMgr) GetName() string { return mgr.name }

func (mgr *ProjectMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ProjectMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/projects", mgr.ListProjects)
}

func (mgr *ProjectMgr) RegisterAdmin(_ *gin.RouterGroup) {}

// ListProjects godoc
// @Summary Projects the caller belongs to
// @Description Key counts exclude prod environments the caller cannot read
// @Tags Projects
// @Success 200 {object} resputil.Response[[]store.ProjectSummary] "Memberships"
// @Router /projects [get]
func (mgr *ProjectMgr) ListProjects(c *gin.Context) {
	token := util.GetToken(c)
	projects, err := mgr.store.ListProjectsForUser(c, token.UserID)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	resputil.Success(c, projects)
}
