package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"github.com/skylerye/yuquesync-backend/internal/clients/redis"
	"github.com/skylerye/yuquesync-backend/internal/clients/yuque"
	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/repos"
	"github.com/skylerye/yuquesync-backend/internal/search"
	"github.com/skylerye/yuquesync-backend/internal/types"
)

// DefaultMaxConcurrent bounds simultaneous detail fetches within one sync
// pass; the remote API rate-limits aggressively past this.
const DefaultMaxConcurrent = 5

const memberPageDelay = 200 * time.Millisecond

// SyncService is the synchronization and reconciliation engine: discovery,
// TOC/detail merging, idempotent upserts, and pruning, in three modes.
type SyncService interface {
	// SyncAll is the full periodic sync: principal -> members -> every
	// owned repository. Only principal resolution and repo enumeration
	// failures abort the run; per-repository failures are isolated and
	// reported in the SyncReport.
	SyncAll(ctx context.Context) (*SyncReport, error)

	// SyncRepo runs a full merge-and-upsert pass for one repository.
	SyncRepo(ctx context.Context, repoData *yuque.RepoRecord) *RepoResult

	// SyncRepoByID resolves the repository record remotely and runs a full
	// pass. A 404 on the record fetch purges the repository.
	SyncRepoByID(ctx context.Context, repoID int64) *RepoResult

	// SyncRepoStructure is the structure-only repair pass: TOC fetch, tree
	// pointer updates, and pruning of nodes absent from the TOC. A 404 on
	// the TOC fetch purges the repository entirely.
	SyncRepoStructure(ctx context.Context, repoID int64) *RepoResult

	// SyncTeamMembers paginates the group members listing until the first
	// empty page, upserting each member. Returns the number upserted.
	SyncTeamMembers(ctx context.Context, groupID int64) (int, error)
}

type syncService struct {
	db            *gorm.DB
	log           *logger.Logger
	client        yuque.Client
	indexer       search.Indexer
	bus           redis.EventBus
	userRepo      repos.UserRepo
	memberRepo    repos.MemberRepo
	repoRepo      repos.RepoRepo
	docRepo       repos.DocRepo
	locks         *repoLocks
	maxConcurrent int64
}

func NewSyncService(
	db *gorm.DB,
	log *logger.Logger,
	client yuque.Client,
	indexer search.Indexer,
	bus redis.EventBus,
	userRepo repos.UserRepo,
	memberRepo repos.MemberRepo,
	repoRepo repos.RepoRepo,
	docRepo repos.DocRepo,
	maxConcurrent int,
) SyncService {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &syncService{
		db:            db,
		log:           log.With("service", "SyncService"),
		client:        client,
		indexer:       indexer,
		bus:           bus,
		userRepo:      userRepo,
		memberRepo:    memberRepo,
		repoRepo:      repoRepo,
		docRepo:       docRepo,
		locks:         newRepoLocks(),
		maxConcurrent: int64(maxConcurrent),
	}
}

func (s *syncService) publish(ctx context.Context, ev redis.SyncEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn("Failed to publish sync event", "type", ev.Type, "error", err)
	}
}

func (s *syncService) SyncAll(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{StartedAt: time.Now().UTC()}
	s.log.Info("Full sync started")
	s.publish(ctx, redis.SyncEvent{Type: redis.EventRunStarted})

	principal, err := s.client.GetUser(ctx)
	if err != nil {
		// Nothing downstream is safe without the principal.
		return nil, fmt.Errorf("resolve principal: %w", err)
	}
	report.Principal = principal.Login

	if _, err := s.upsertUser(ctx, principal); err != nil {
		return nil, fmt.Errorf("upsert principal: %w", err)
	}
	s.log.Info("Authenticated principal resolved", "login", principal.Login, "name", principal.Name)

	members, err := s.SyncTeamMembers(ctx, principal.ID)
	if err != nil {
		s.log.Warn("Member sync failed, continuing with repositories", "error", err)
	}
	report.Members = members

	repoRecords, err := s.client.GetUserRepos(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("enumerate repositories: %w", err)
	}
	s.log.Info("Discovered repositories", "count", len(repoRecords))

	for i := range repoRecords {
		res := s.SyncRepo(ctx, &repoRecords[i])
		if res.Err != nil {
			s.log.Error("Repository sync failed", "repo_id", res.RepoID, "name", res.Name, "error", res.Err)
			s.publish(ctx, redis.SyncEvent{Type: redis.EventRepoFailed, RepoID: res.RepoID, Message: res.Err.Error()})
		}
		report.Repos = append(report.Repos, *res)
	}

	report.FinishedAt = time.Now().UTC()
	s.log.Info("Full sync finished",
		"repos", len(report.Repos),
		"failed", len(report.Failed()),
		"elapsed", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	s.publish(ctx, redis.SyncEvent{Type: redis.EventRunFinished})
	return report, nil
}

func (s *syncService) SyncRepo(ctx context.Context, repoData *yuque.RepoRecord) *RepoResult {
	result := &RepoResult{RepoID: repoData.ID, Name: repoData.Name}

	unlock := s.locks.lock(repoData.ID)
	defer unlock()

	if _, err := s.repoRepo.Upsert(ctx, nil, repoFromRecord(repoData)); err != nil {
		result.Err = fmt.Errorf("upsert repo: %w", err)
		return result
	}
	s.log.Info("Syncing repository", "repo_id", repoData.ID, "name", repoData.Name)

	toc, err := s.client.GetRepoTOC(ctx, repoData.ID)
	if yuque.IsNotFound(err) {
		s.purgeRepo(ctx, repoData.ID, result)
		return result
	}
	if err != nil {
		result.Err = fmt.Errorf("fetch toc: %w", err)
		return result
	}
	s.log.Info("Fetched TOC", "repo_id", repoData.ID, "nodes", len(toc))

	sem := semaphore.NewWeighted(s.maxConcurrent)
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for i := range toc {
		item := toc[i]
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			node, itemErr := s.mergeTocItem(gctx, repoData.ID, &item)
			if itemErr != nil {
				// Detail fetch failed: keep the skeletal node so one broken
				// document does not block its siblings.
				mu.Lock()
				result.ItemErrors = append(result.ItemErrors, ItemError{UUID: item.UUID, Slug: item.URL, Err: itemErr})
				mu.Unlock()
			}

			stored, err := s.docRepo.Upsert(gctx, nil, node)
			if err != nil {
				mu.Lock()
				result.ItemErrors = append(result.ItemErrors, ItemError{UUID: item.UUID, Slug: item.URL, Err: err})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			result.DocsSynced++
			mu.Unlock()

			if stored.Body != "" && s.indexer != nil {
				if err := s.indexer.IndexDoc(gctx, stored); err != nil {
					s.log.Error("Failed to index doc", "repo_id", repoData.ID, "slug", stored.Slug, "error", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		result.Err = err
		return result
	}

	s.pruneStale(ctx, repoData.ID, activeUUIDs(toc), result)
	s.publish(ctx, redis.SyncEvent{Type: redis.EventRepoSynced, RepoID: repoData.ID})
	s.log.Info("Repository synced", "repo_id", repoData.ID, "docs", result.DocsSynced, "pruned", result.DocsPruned, "item_errors", len(result.ItemErrors))
	return result
}

func (s *syncService) SyncRepoByID(ctx context.Context, repoID int64) *RepoResult {
	record, err := s.client.GetRepo(ctx, repoID)
	if yuque.IsNotFound(err) {
		result := &RepoResult{RepoID: repoID}
		unlock := s.locks.lock(repoID)
		defer unlock()
		s.purgeRepo(ctx, repoID, result)
		return result
	}
	if err != nil {
		return &RepoResult{RepoID: repoID, Err: fmt.Errorf("fetch repo record: %w", err)}
	}
	return s.SyncRepo(ctx, record)
}

func (s *syncService) SyncRepoStructure(ctx context.Context, repoID int64) *RepoResult {
	result := &RepoResult{RepoID: repoID}

	unlock := s.locks.lock(repoID)
	defer unlock()

	s.log.Info("Syncing repository structure", "repo_id", repoID)
	toc, err := s.client.GetRepoTOC(ctx, repoID)
	if yuque.IsNotFound(err) {
		// The repository no longer exists remotely: full purge, not an
		// ordinary pruning diff.
		s.purgeRepo(ctx, repoID, result)
		return result
	}
	if err != nil {
		result.Err = fmt.Errorf("fetch toc: %w", err)
		return result
	}

	sem := semaphore.NewWeighted(s.maxConcurrent)
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	now := time.Now().UTC()
	for i := range toc {
		item := toc[i]
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			node := skeletonFromTocItem(repoID, &item, now)
			if err := s.docRepo.UpsertStructure(gctx, nil, node); err != nil {
				mu.Lock()
				result.ItemErrors = append(result.ItemErrors, ItemError{UUID: item.UUID, Slug: item.URL, Err: err})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			result.DocsSynced++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		result.Err = err
		return result
	}

	s.pruneStale(ctx, repoID, activeUUIDs(toc), result)
	s.log.Info("Repository structure synced", "repo_id", repoID, "nodes", result.DocsSynced, "pruned", result.DocsPruned)
	return result
}

func (s *syncService) SyncTeamMembers(ctx context.Context, groupID int64) (int, error) {
	s.log.Info("Syncing team members", "group_id", groupID)
	total := 0
	for page := 1; ; page++ {
		items, err := s.client.GetGroupMembers(ctx, groupID, page)
		if err != nil {
			return total, fmt.Errorf("fetch members page %d: %w", page, err)
		}
		// Termination condition: an empty page ends the listing.
		if len(items) == 0 {
			break
		}
		s.log.Info("Processing members page", "page", page, "count", len(items))

		for i := range items {
			member, ok := memberFromItem(&items[i])
			if !ok {
				s.log.Warn("Skipping member item without a usable id", "page", page)
				continue
			}
			if _, err := s.memberRepo.Upsert(ctx, nil, member); err != nil {
				s.log.Error("Failed to upsert member", "yuque_id", member.YuqueID, "error", err)
				continue
			}
			total++
		}

		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case <-time.After(memberPageDelay):
		}
	}
	s.log.Info("Team members synced", "count", total)
	s.publish(ctx, redis.SyncEvent{Type: redis.EventMembersSaved, Message: fmt.Sprintf("%d members", total)})
	return total, nil
}

// pruneStale deletes every stored node of the repository that is absent
// from activeUUIDs and issues an index delete for each pruned doc that has
// a remote id. An empty activeUUIDs set means the repository was genuinely
// emptied and every node goes.
func (s *syncService) pruneStale(ctx context.Context, repoID int64, active []string, result *RepoResult) {
	stale, err := s.docRepo.ListStale(ctx, nil, repoID, active)
	if err != nil {
		s.log.Error("Failed to list stale docs", "repo_id", repoID, "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	uuids := make([]string, 0, len(stale))
	for _, doc := range stale {
		uuids = append(uuids, doc.UUID)
		if doc.YuqueID != nil && s.indexer != nil {
			if err := s.indexer.DeleteDoc(ctx, *doc.YuqueID); err != nil {
				s.log.Error("Failed to delete doc from index", "yuque_id", *doc.YuqueID, "error", err)
			}
		}
	}

	deleted, err := s.docRepo.DeleteByUUIDs(ctx, nil, repoID, uuids)
	if err != nil {
		s.log.Error("Failed to prune stale docs", "repo_id", repoID, "error", err)
		return
	}
	result.DocsPruned = int(deleted)
	if deleted > 0 {
		s.log.Info("Pruned stale docs", "repo_id", repoID, "count", deleted)
		s.publish(ctx, redis.SyncEvent{Type: redis.EventDocsPruned, RepoID: repoID, Message: fmt.Sprintf("%d docs", deleted)})
	}
}

// purgeRepo removes the repository record, all of its document nodes, and
// their index entries.
func (s *syncService) purgeRepo(ctx context.Context, repoID int64, result *RepoResult) {
	s.log.Warn("Repository gone remotely, purging", "repo_id", repoID)

	docs, err := s.docRepo.ListByRepo(ctx, nil, repoID)
	if err != nil {
		result.Err = fmt.Errorf("list docs for purge: %w", err)
		return
	}
	for _, doc := range docs {
		if doc.YuqueID != nil && s.indexer != nil {
			if err := s.indexer.DeleteDoc(ctx, *doc.YuqueID); err != nil {
				s.log.Error("Failed to delete doc from index", "yuque_id", *doc.YuqueID, "error", err)
			}
		}
	}

	deleted, err := s.docRepo.DeleteByRepo(ctx, nil, repoID)
	if err != nil {
		result.Err = fmt.Errorf("delete docs for purge: %w", err)
		return
	}
	if _, err := s.repoRepo.DeleteByYuqueID(ctx, nil, repoID); err != nil {
		result.Err = fmt.Errorf("delete repo record: %w", err)
		return
	}

	result.Purged = true
	result.DocsPruned = int(deleted)
	s.log.Info("Repository purged", "repo_id", repoID, "docs_deleted", deleted)
	s.publish(ctx, redis.SyncEvent{Type: redis.EventRepoPurged, RepoID: repoID})
}

// mergeTocItem builds the merged document node for one TOC entry. DOC-typed
// nodes with a slug get the detail record merged in; detail fields win over
// TOC fields. The returned error reports a detail-fetch failure while the
// skeletal node is still returned for storage.
func (s *syncService) mergeTocItem(ctx context.Context, repoID int64, item *yuque.TocItem) (*types.Doc, error) {
	now := time.Now().UTC()
	node := skeletonFromTocItem(repoID, item, now)

	if node.Type != types.DocTypeDoc || item.URL == "" {
		return node, nil
	}

	detail, err := s.client.GetDocDetail(ctx, repoID, item.URL)
	if err != nil {
		return node, fmt.Errorf("fetch detail: %w", err)
	}

	node.YuqueID = &detail.ID
	if detail.Title != "" {
		node.Title = detail.Title
	}
	node.Description = detail.Description
	node.Cover = detail.Cover
	node.Body = detail.Body
	node.BodyHTML = detail.BodyHTML
	node.Format = detail.Format
	node.WordCount = detail.WordCount
	node.LikesCount = detail.LikesCount
	node.ReadCount = detail.ReadCount
	node.CommentsCount = detail.CommentsCount
	node.CreatedAt = detail.CreatedAt
	node.ContentUpdatedAt = detail.ContentUpdatedAt
	node.PublishedAt = detail.PublishedAt
	node.FirstPublishedAt = detail.FirstPublishedAt
	node.UserID = detail.UserID
	node.LastEditorID = detail.LastEditorID

	// updated_at resolution order: content_updated_at from the detail, then
	// the detail's updated_at, then whatever the TOC reported.
	switch {
	case detail.ContentUpdatedAt != nil:
		node.UpdatedAt = detail.ContentUpdatedAt
	case detail.UpdatedAt != nil:
		node.UpdatedAt = detail.UpdatedAt
	}

	return node, nil
}

func (s *syncService) upsertUser(ctx context.Context, record *yuque.UserRecord) (*types.User, error) {
	user := &types.User{
		YuqueID:     record.ID,
		Login:       record.Login,
		Name:        record.Name,
		AvatarURL:   record.AvatarURL,
		Description: record.Description,
		BooksCount:  record.BooksCount,
		Public:      record.Public,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}
	return s.userRepo.Upsert(ctx, nil, user)
}

func skeletonFromTocItem(repoID int64, item *yuque.TocItem, now time.Time) *types.Doc {
	slug := item.URL
	if slug == "" {
		slug = item.UUID
	}
	node := &types.Doc{
		UUID:         item.UUID,
		RepoID:       repoID,
		Slug:         slug,
		Title:        item.Title,
		Type:         item.Type,
		ParentUUID:   item.ParentUUID,
		PrevUUID:     item.PrevUUID,
		SiblingUUID:  item.SiblingUUID,
		ChildUUID:    item.ChildUUID,
		Depth:        item.Depth,
		UpdatedAt:    item.UpdatedAt,
		LastSyncedAt: now,
	}
	if id, ok := item.ID.Int64(); ok {
		node.YuqueID = &id
	}
	return node
}

func repoFromRecord(record *yuque.RepoRecord) *types.Repo {
	return &types.Repo{
		YuqueID:          record.ID,
		Name:             record.Name,
		Slug:             record.Slug,
		Description:      record.Description,
		Public:           record.Public,
		UserID:           record.UserID,
		ItemsCount:       record.ItemsCount,
		WatchesCount:     record.WatchesCount,
		LikesCount:       record.LikesCount,
		Namespace:        record.Namespace,
		ContentUpdatedAt: record.ContentUpdatedAt,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        time.Now().UTC(),
	}
}

func memberFromItem(item *yuque.MemberItem) (*types.Member, bool) {
	var yuqueID int64
	var login, name, avatar, description, email string

	if item.User != nil && item.User.ID != 0 {
		yuqueID = item.User.ID
		login = item.User.Login
		name = item.User.Name
		avatar = item.User.AvatarURL
		description = item.User.Description
		email = item.User.Email
	} else if item.UserID != nil && *item.UserID != 0 {
		yuqueID = *item.UserID
	}
	if yuqueID == 0 {
		return nil, false
	}

	if login == "" {
		login = fmt.Sprintf("u_%d", yuqueID)
	}
	if name == "" {
		name = "Unknown"
	}
	if email == "" {
		email = item.Email
	}

	isActive := item.Status != nil && *item.Status == 1
	return &types.Member{
		YuqueID:     yuqueID,
		Login:       login,
		Name:        name,
		AvatarURL:   avatar,
		Description: description,
		Email:       email,
		Role:        item.Role,
		Status:      item.Status,
		IsActive:    isActive,
		UpdatedAt:   time.Now().UTC(),
	}, true
}

func activeUUIDs(toc []yuque.TocItem) []string {
	out := make([]string, 0, len(toc))
	for i := range toc {
		if toc[i].UUID != "" {
			out = append(out, toc[i].UUID)
		}
	}
	return out
}
