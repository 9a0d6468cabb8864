package types

import "time"

// Webhook action types Yuque delivers.
const (
	ActionPublish            = "publish"
	ActionUpdate             = "update"
	ActionDelete             = "delete"
	ActionCommentCreate      = "comment_create"
	ActionCommentUpdate      = "comment_update"
	ActionCommentReplyCreate = "comment_reply_create"
)

type WebhookUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type WebhookBook struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type WebhookCommentable struct {
	ID    int64  `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// WebhookData is the event body. Only the routing fields (action_type, id,
// slug, book) are trusted; content and stat fields are re-fetched from the
// API before anything is stored.
type WebhookData struct {
	ActionType string `json:"action_type"`
	ID         int64  `json:"id"`
	UserID     *int64 `json:"user_id"`
	ActorID    *int64 `json:"actor_id"`

	Slug     string       `json:"slug"`
	Title    string       `json:"title"`
	Body     string       `json:"body"`
	BodyHTML string       `json:"body_html"`
	Book     *WebhookBook `json:"book"`
	User     *WebhookUser `json:"user"`
	Actor    *WebhookUser `json:"actor"`

	WordCount     int `json:"word_count"`
	LikesCount    int `json:"likes_count"`
	ReadCount     int `json:"read_count"`
	CommentsCount int `json:"comments_count"`

	Commentable *WebhookCommentable `json:"commentable"`

	CreatedAt        *time.Time `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at"`
	ContentUpdatedAt *time.Time `json:"content_updated_at"`
	PublishedAt      *time.Time `json:"published_at"`
	FirstPublishedAt *time.Time `json:"first_published_at"`
	DeletedAt        *time.Time `json:"deleted_at"`
}

type WebhookPayload struct {
	Data WebhookData `json:"data"`
}
