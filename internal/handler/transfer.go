package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/envlocker/envlocker/dao/model"
	"github.com/envlocker/envlocker/dao/store"
	"github.com/envlocker/envlocker/internal/resputil"
	"github.com/envlocker/envlocker/internal/util"
	"github.com/envlocker/envlocker/pkg/importer"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewTransferMgr)
}

// TransferMgr moves secrets in and out in bulk: TXT import with conflict
// resolution, and per-environment or whole-project export.
type TransferMgr struct {
	name  string
	store *store.Store
}

func NewTransferMgr(conf *RegisterConfig) Manager {
	return &TransferMgr{
		name:  "transfer",
		store: conf.Store,
	}
}

func (mgr *TransferMgr) GetName() string { return mgr.name }

func (mgr *TransferMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *TransferMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/exports/:slug", mgr.Export)
	g.GET("/exports/:slug/all", mgr.ExportAll)
}

func (mgr *TransferMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.POST("/imports/preview", mgr.PreviewImport)
	g.POST("/imports/commit", mgr.CommitImport)
}

type (
	ImportPreviewReq struct {
		Content string `json:"content" binding:"required"`
	}

	ImportPreviewResp struct {
		Heading    string          `json:"heading"`
		TotalPairs int             `json:"totalPairs"`
		Skipped    int             `json:"skipped"`
		Preview    []importer.Pair `json:"preview"`
	}

	ImportCommitReq struct {
		ProjectID        string   `json:"projectId" binding:"required"`
		Environment      string   `json:"environment" binding:"required"`
		Content          string   `json:"content" binding:"required"`
		Provider         string   `json:"provider"`
		Type             string   `json:"type"`
		ConflictStrategy string   `json:"conflictStrategy"`
		Tags             []string `json:"tags"`
	}

	ImportCommitResp struct {
		ProjectID   string `json:"projectId"`
		Environment string `json:"environment"`
		Inserted    int    `json:"inserted"`
		Updated     int    `json:"updated"`
		Skipped     int    `json:"skipped"`
		Total       int    `json:"total"`
	}
)

const importPreviewLimit = 50

// PreviewImport godoc
// @Summary Parse an import file without writing anything
// @Tags Transfer
// @Accept json
// @Success 200 {object} resputil.Response[ImportPreviewResp] "Parse result"
// @Router /admin/imports/preview [post]
func (mgr *TransferMgr) PreviewImport(c *gin.Context) {
	var req ImportPreviewReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	parsed := importer.ParseTXT(req.Content)
	preview := parsed.Pairs
	if len(preview) > importPreviewLimit {
		preview = preview[:importPreviewLimit]
	}
	resputil.Success(c, ImportPreviewResp{
		Heading:    parsed.Heading,
		TotalPairs: len(parsed.Pairs),
		Skipped:    parsed.Skipped,
		Preview:    preview,
	})
}

// CommitImport godoc
// @Summary Apply an import file to one environment
// @Description Conflicts follow the chosen strategy: skip keeps the stored value, overwrite snapshots and replaces it
// @Tags Transfer
// @Accept json
// @Success 200 {object} resputil.Response[ImportCommitResp] "Counters"
// @Router /admin/imports/commit [post]
func (mgr *TransferMgr) CommitImport(c *gin.Context) {
	var req ImportCommitReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	env, err := model.ParseEnvName(req.Environment)
	if err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if req.Provider == "" {
		req.Provider = "Imported"
	}
	secretType := model.SecretTypeKey
	if req.Type != "" {
		if secretType, err = model.ParseSecretType(req.Type); err != nil {
			resputil.BadRequestError(c, err.Error())
			return
		}
	}
	if req.ConflictStrategy == "" {
		req.ConflictStrategy = "skip"
	}
	if req.ConflictStrategy != "skip" && req.ConflictStrategy != "overwrite" {
		resputil.BadRequestError(c, fmt.Sprintf("unknown conflict strategy %q", req.ConflictStrategy))
		return
	}

	token := util.GetToken(c)
	if !mgr.store.HasEnvironmentReadAccess(c, token.UserID, req.ProjectID, env) {
		resputil.HTTPError(c, http.StatusForbidden, "Forbidden", resputil.UserNotAllowed)
		return
	}

	parsed := importer.ParseTXT(req.Content)
	inserted, updated, skipped := 0, 0, parsed.Skipped

	for _, pair := range parsed.Pairs {
		existing, err := mgr.store.FindSecretByKey(c, token.UserID, req.ProjectID, env, pair.Key)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		if existing == nil {
			_, err := mgr.store.CreateSecret(c, token.UserID, req.ProjectID, store.SecretCreate{
				Name:        importer.KeyToName(pair.Key),
				Provider:    req.Provider,
				Type:        secretType,
				Environment: env,
				KeyName:     pair.Key,
				Value:       pair.Value,
				Tags:        req.Tags,
				Notes:       "Imported from TXT",
			})
			if err != nil {
				respondStoreError(c, err)
				return
			}
			inserted++
			continue
		}

		if req.ConflictStrategy == "skip" {
			skipped++
			continue
		}

		_, err = mgr.store.UpdateSecret(c, token.UserID, existing.ID, store.SecretPatch{
			Provider: &req.Provider,
			Type:     &secretType,
			Value:    &pair.Value,
		})
		if err != nil {
			respondStoreError(c, err)
			return
		}
		updated++
	}

	if projectID, ok := mgr.store.ResolveProject(c, req.ProjectID); ok {
		_ = mgr.store.AddAuditEvent(c, &projectID, &token.UserID, model.AuditSecretUpdated,
			"import", nil, datatypes.JSONMap{
				"secretName":       fmt.Sprintf("Import %s", strings.ToUpper(string(env))),
				"inserted":         inserted,
				"updated":          updated,
				"skipped":          skipped,
				"conflictStrategy": req.ConflictStrategy,
			})
	}

	resputil.Success(c, ImportCommitResp{
		ProjectID:   req.ProjectID,
		Environment: string(env),
		Inserted:    inserted,
		Updated:     updated,
		Skipped:     skipped,
		Total:       len(parsed.Pairs),
	})
}

// Export godoc
// @Summary Export one environment as env or json
// @Description Needs export access; global viewers are refused outright
// @Tags Transfer
// @Param slug path string true "Project slug"
// @Param env query string true "Environment"
// @Param format query string true "env or json"
// @Success 200 {string} string "Rendered export"
// @Router /exports/{slug} [get]
func (mgr *TransferMgr) Export(c *gin.Context) {
	token := util.GetToken(c)
	if token.Role == model.RoleViewer {
		resputil.HTTPError(c, http.StatusForbidden, "Viewer cannot export by default", resputil.UserNotAllowed)
		return
	}

	env, err := model.ParseEnvName(c.Query("env"))
	if err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	format := c.Query("format")
	if format != "env" && format != "json" {
		resputil.BadRequestError(c, "unsupported format")
		return
	}

	slug := c.Param("slug")
	if !mgr.store.HasEnvironmentExportAccess(c, token.UserID, slug, env) {
		resputil.HTTPError(c, http.StatusForbidden, "Forbidden", resputil.UserNotAllowed)
		return
	}

	rows, err := mgr.store.ExportSecrets(c, token.UserID, slug, env, c.Query("tag"))
	if err != nil {
		respondStoreError(c, err)
		return
	}

	if projectID, ok := mgr.store.ResolveProject(c, slug); ok {
		_ = mgr.store.AddAuditEvent(c, &projectID, &token.UserID, model.AuditSecretExported,
			"project", nil, datatypes.JSONMap{
				"secretName": fmt.Sprintf("%s:%s", slug, env),
				"format":     format,
				"count":      len(rows),
			})
	}

	if format == "env" {
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			lines = append(lines, fmt.Sprintf("%s=%s", row.KeyName, row.Value))
		}
		c.String(http.StatusOK, strings.Join(lines, "\n"))
		return
	}

	payload := make(map[string]string, len(rows))
	for _, row := range rows {
		payload[row.KeyName] = row.Value
	}
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

// ExportAll godoc
// @Summary Export every exportable environment at once
// @Description Environments the caller cannot export are skipped, not errors
// @Tags Transfer
// @Success 200 {object} resputil.Response[map[string][]store.ExportedSecret] "Secrets grouped by environment"
// @Router /exports/{slug}/all [get]
func (mgr *TransferMgr) ExportAll(c *gin.Context) {
	token := util.GetToken(c)
	if token.Role == model.RoleViewer {
		resputil.HTTPError(c, http.StatusForbidden, "Viewer cannot export by default", resputil.UserNotAllowed)
		return
	}

	slug := c.Param("slug")
	grouped, err := mgr.store.ExportAllEnvironments(c, token.UserID, slug, c.Query("tag"))
	if err != nil {
		respondStoreError(c, err)
		return
	}

	if projectID, ok := mgr.store.ResolveProject(c, slug); ok {
		_ = mgr.store.AddAuditEvent(c, &projectID, &token.UserID, model.AuditSecretExported,
			"project", nil, datatypes.JSONMap{
				"secretName": fmt.Sprintf("%s:all", slug),
				"format":     "json",
			})
	}
	resputil.Success(c, grouped)
}
