package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/repos"
)

// ReadHandler serves the mirrored data back out: repositories, members, and
// document nodes, straight from the local store.
type ReadHandler struct {
	log        *logger.Logger
	repoRepo   repos.RepoRepo
	memberRepo repos.MemberRepo
	docRepo    repos.DocRepo
	comments   repos.CommentRepo
}

func NewReadHandler(
	log *logger.Logger,
	repoRepo repos.RepoRepo,
	memberRepo repos.MemberRepo,
	docRepo repos.DocRepo,
	comments repos.CommentRepo,
) *ReadHandler {
	return &ReadHandler{
		log:        log.With("handler", "ReadHandler"),
		repoRepo:   repoRepo,
		memberRepo: memberRepo,
		docRepo:    docRepo,
		comments:   comments,
	}
}

func (rh *ReadHandler) ListRepos(c *gin.Context) {
	results, err := rh.repoRepo.List(c.Request.Context(), nil)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_repos_failed", err)
		return
	}
	RespondOK(c, gin.H{"repos": results})
}

func (rh *ReadHandler) ListMembers(c *gin.Context) {
	results, err := rh.memberRepo.List(c.Request.Context(), nil)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_members_failed", err)
		return
	}
	RespondOK(c, gin.H{"members": results})
}

func (rh *ReadHandler) ListDocs(c *gin.Context) {
	repoID, err := strconv.ParseInt(c.Query("repo_id"), 10, 64)
	if err != nil || repoID <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid_repo_id", err)
		return
	}
	results, err := rh.docRepo.ListByRepo(c.Request.Context(), nil, repoID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_docs_failed", err)
		return
	}
	RespondOK(c, gin.H{"docs": results})
}

func (rh *ReadHandler) GetDoc(c *gin.Context) {
	doc, err := rh.docRepo.GetBySlug(c.Request.Context(), nil, c.Param("slug"))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "get_doc_failed", err)
		return
	}
	if doc == nil {
		RespondError(c, http.StatusNotFound, "doc_not_found", nil)
		return
	}

	var payload gin.H = gin.H{"doc": doc}
	if doc.YuqueID != nil {
		comments, err := rh.comments.ListByDoc(c.Request.Context(), nil, *doc.YuqueID)
		if err == nil && len(comments) > 0 {
			payload["comments"] = comments
		}
	}
	RespondOK(c, payload)
}
