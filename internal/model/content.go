package model

import "time"

// PostStatus は投稿の公開状態を表す。
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
)

// Valid は定義済みの公開状態かどうかを返す。
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPublished, PostStatusArchived:
		return true
	default:
		return false
	}
}

// Post はブログ記事を表す。
type Post struct {
	ID              string
	Title           string
	Slug            string
	Content         string
	Excerpt         string
	AuthorID        string
	Status          PostStatus
	ImageURL        string
	IsFeatured      bool
	Views           int64
	MetaTitle       string
	MetaDescription string
	MetaKeywords    string
	FocusKeyword    string
	CategoryID      string
	ReadTime        int // 分
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PostFilter は記事一覧の絞り込み条件。
// ゼロ値のフィールドは条件に含めない。
type PostFilter struct {
	AuthorID   string
	Status     PostStatus
	IsFeatured *bool
	Limit      int
	Offset     int
}

// Product は販売商品を表す。
type Product struct {
	ID          string
	Title       string
	Description string
	Price       float64
	Stock       int
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
