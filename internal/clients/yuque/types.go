package yuque

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// NodeID tolerates the TOC's loose id encoding: the field may be a JSON
// number, a digit string, an empty string, or missing entirely.
type NodeID struct {
	value int64
	ok    bool
}

func (n *NodeID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*n = NodeID{}
		return nil
	}
	if s[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			*n = NodeID{}
			return nil
		}
		*n = NodeID{value: v, ok: true}
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		*n = NodeID{}
		return nil
	}
	*n = NodeID{value: v, ok: true}
	return nil
}

func (n NodeID) Int64() (int64, bool) { return n.value, n.ok }

// TocItem is one entry of the flat, pointer-linked TOC listing.
type TocItem struct {
	UUID        string     `json:"uuid"`
	ID          NodeID     `json:"id"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	ParentUUID  string     `json:"parent_uuid"`
	PrevUUID    string     `json:"prev_uuid"`
	SiblingUUID string     `json:"sibling_uuid"`
	ChildUUID   string     `json:"child_uuid"`
	Depth       int        `json:"depth"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// DocDetail is the full content record for one document.
type DocDetail struct {
	ID               int64      `json:"id"`
	Slug             string     `json:"slug"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Cover            string     `json:"cover"`
	Body             string     `json:"body"`
	BodyHTML         string     `json:"body_html"`
	Format           string     `json:"format"`
	WordCount        int        `json:"word_count"`
	LikesCount       int        `json:"likes_count"`
	ReadCount        int        `json:"read_count"`
	CommentsCount    int        `json:"comments_count"`
	CreatedAt        *time.Time `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at"`
	ContentUpdatedAt *time.Time `json:"content_updated_at"`
	PublishedAt      *time.Time `json:"published_at"`
	FirstPublishedAt *time.Time `json:"first_published_at"`
	UserID           *int64     `json:"user_id"`
	LastEditorID     *int64     `json:"last_editor_id"`
}

// RepoRecord is a knowledge base as reported by the repos endpoints.
type RepoRecord struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Slug             string     `json:"slug"`
	Description      string     `json:"description"`
	Public           int        `json:"public"`
	UserID           int64      `json:"user_id"`
	ItemsCount       int        `json:"items_count"`
	WatchesCount     int        `json:"watches_count"`
	LikesCount       int        `json:"likes_count"`
	Namespace        string     `json:"namespace"`
	ContentUpdatedAt *time.Time `json:"content_updated_at"`
	CreatedAt        *time.Time `json:"created_at"`
}

// UserRecord is the authenticated principal (user or group).
type UserRecord struct {
	ID          int64      `json:"id"`
	Login       string     `json:"login"`
	Name        string     `json:"name"`
	AvatarURL   string     `json:"avatar_url"`
	Description string     `json:"description"`
	BooksCount  int        `json:"books_count"`
	Public      int        `json:"public"`
	CreatedAt   *time.Time `json:"created_at"`
}

// MemberItem is one row of the paginated group members statistics listing.
// The interesting fields live on a nested user object; some deployments also
// mirror user_id and email at the top level.
type MemberItem struct {
	Role   *int        `json:"role"`
	Status *int        `json:"status"`
	UserID *int64      `json:"user_id"`
	Email  string      `json:"email"`
	User   *MemberUser `json:"user"`
}

type MemberUser struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	Description string `json:"description"`
	Email       string `json:"email"`
}
