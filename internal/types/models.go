package types

import "time"

// User is the Yuque account that owns the access token (a user or a group).
type User struct {
	ID          uint       `gorm:"primaryKey" json:"-"`
	YuqueID     int64      `gorm:"uniqueIndex;not null" json:"yuque_id"`
	Login       string     `gorm:"not null" json:"login"`
	Name        string     `gorm:"not null" json:"name"`
	AvatarURL   string     `json:"avatar_url"`
	Description string     `json:"description"`
	BooksCount  int        `json:"books_count"`
	Public      int        `json:"public"`
	CreatedAt   *time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Member is a team member discovered through the paginated statistics API.
type Member struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	YuqueID     int64     `gorm:"uniqueIndex;not null" json:"yuque_id"`
	Login       string    `gorm:"not null" json:"login"`
	Name        string    `gorm:"not null" json:"name"`
	AvatarURL   string    `json:"avatar_url"`
	Description string    `json:"description"`
	Email       string    `json:"email"`
	Role        *int      `json:"role"`
	Status      *int      `json:"status"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (Member) TableName() string { return "members" }

// Repo is a knowledge base. Created during discovery, or lazily when a
// webhook references a repo we have never seen.
type Repo struct {
	ID               uint       `gorm:"primaryKey" json:"-"`
	YuqueID          int64      `gorm:"uniqueIndex;not null" json:"yuque_id"`
	Name             string     `gorm:"not null" json:"name"`
	Slug             string     `gorm:"not null" json:"slug"`
	Description      string     `json:"description"`
	Public           int        `json:"public"`
	UserID           int64      `json:"user_id"`
	ItemsCount       int        `json:"items_count"`
	WatchesCount     int        `json:"watches_count"`
	LikesCount       int        `json:"likes_count"`
	Namespace        string     `json:"namespace"`
	ContentUpdatedAt *time.Time `json:"content_updated_at"`
	CreatedAt        *time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (Repo) TableName() string { return "repos" }

// Doc node types as they appear in the TOC.
const (
	DocTypeDoc   = "DOC"
	DocTypeTitle = "TITLE"
)

// Doc is one TOC node, possibly merged with the content detail record.
//
// Identity is dual: UUID is the stable structural key assigned by the TOC,
// YuqueID is the remote numeric document id. TITLE nodes have no YuqueID,
// and nodes created from webhook events carry a provisional UUID until the
// next structural sync reports the canonical one.
type Doc struct {
	ID      uint   `gorm:"primaryKey" json:"-"`
	UUID    string `gorm:"uniqueIndex;not null" json:"uuid"`
	YuqueID *int64 `gorm:"uniqueIndex" json:"yuque_id"`
	RepoID  int64  `gorm:"index;not null" json:"repo_id"`
	Slug    string `gorm:"index" json:"slug"`

	// Structure, from the TOC. Tree pointers are always replaced as a set.
	Title       string `gorm:"not null" json:"title"`
	Type        string `gorm:"not null" json:"type"`
	ParentUUID  string `gorm:"index" json:"parent_uuid"`
	PrevUUID    string `json:"prev_uuid"`
	SiblingUUID string `json:"sibling_uuid"`
	ChildUUID   string `json:"child_uuid"`
	Depth       int    `json:"depth"`

	// Content, from the detail API.
	Description string `json:"description"`
	Cover       string `json:"cover"`
	Body        string `json:"body"`
	BodyHTML    string `json:"body_html"`
	Format      string `json:"format"`
	WordCount   int    `json:"word_count"`

	LikesCount    int `json:"likes_count"`
	ReadCount     int `json:"read_count"`
	CommentsCount int `json:"comments_count"`

	CreatedAt        *time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt        *time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	ContentUpdatedAt *time.Time `json:"content_updated_at"`
	PublishedAt      *time.Time `json:"published_at"`
	FirstPublishedAt *time.Time `json:"first_published_at"`
	LastSyncedAt     time.Time  `json:"last_synced_at"`

	UserID       *int64 `json:"user_id"`
	LastEditorID *int64 `json:"last_editor_id"`
}

func (Doc) TableName() string { return "docs" }

// Comment mirrors a Yuque doc comment delivered through webhook events.
type Comment struct {
	ID        uint       `gorm:"primaryKey" json:"-"`
	YuqueID   int64      `gorm:"uniqueIndex;not null" json:"yuque_id"`
	BodyHTML  string     `json:"body_html"`
	UserID    int64      `json:"user_id"`
	DocID     int64      `gorm:"index" json:"doc_id"`
	CreatedAt *time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (Comment) TableName() string { return "comments" }
