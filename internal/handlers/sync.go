package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/services"
)

// SyncHandler exposes the manual sync triggers. All triggers are
// fire-and-forget: they return 202 immediately and the pass runs in the
// background, so a slow remote API never ties up the HTTP worker.
type SyncHandler struct {
	log  *logger.Logger
	sync services.SyncService
}

func NewSyncHandler(log *logger.Logger, syncService services.SyncService) *SyncHandler {
	return &SyncHandler{log: log.With("handler", "SyncHandler"), sync: syncService}
}

func (sh *SyncHandler) TriggerFullSync(c *gin.Context) {
	go func() {
		report, err := sh.sync.SyncAll(context.Background())
		if err != nil {
			sh.log.Error("Triggered full sync failed", "error", err)
			return
		}
		sh.log.Info("Triggered full sync finished", "repos", len(report.Repos), "failed", len(report.Failed()))
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "mode": "full"})
}

func (sh *SyncHandler) TriggerRepoSync(c *gin.Context) {
	repoID, ok := repoIDParam(c)
	if !ok {
		return
	}
	go func() {
		res := sh.sync.SyncRepoByID(context.Background(), repoID)
		if res.Err != nil {
			sh.log.Error("Triggered repo sync failed", "repo_id", repoID, "error", res.Err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "mode": "repo", "repo_id": repoID})
}

func (sh *SyncHandler) TriggerStructureSync(c *gin.Context) {
	repoID, ok := repoIDParam(c)
	if !ok {
		return
	}
	go func() {
		res := sh.sync.SyncRepoStructure(context.Background(), repoID)
		if res.Err != nil {
			sh.log.Error("Triggered structure sync failed", "repo_id", repoID, "error", res.Err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "mode": "structure", "repo_id": repoID})
}

func (sh *SyncHandler) TriggerMemberSync(c *gin.Context) {
	groupID, err := strconv.ParseInt(c.Query("group_id"), 10, 64)
	if err != nil || groupID <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid_group_id", err)
		return
	}
	go func() {
		count, err := sh.sync.SyncTeamMembers(context.Background(), groupID)
		if err != nil {
			sh.log.Error("Triggered member sync failed", "group_id", groupID, "error", err)
			return
		}
		sh.log.Info("Triggered member sync finished", "group_id", groupID, "count", count)
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "mode": "members", "group_id": groupID})
}

func repoIDParam(c *gin.Context) (int64, bool) {
	repoID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || repoID <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid_repo_id", err)
		return 0, false
	}
	return repoID, true
}
