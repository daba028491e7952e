// Package post はブログ記事のドメインロジックを提供する。
package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Byte-q/used-backend/internal/model"
	"github.com/Byte-q/used-backend/internal/repository"
	"github.com/Byte-q/used-backend/internal/security"
)

const (
	defaultLimit   = 10
	maxLimit       = 100
	featuredLimit  = 6
	excerptRunes   = 160
	wordsPerMinute = 200
)

// Input は記事作成の入力。
type Input struct {
	Title           string
	Slug            string
	Content         string
	Excerpt         string
	Status          model.PostStatus
	ImageURL        string
	IsFeatured      bool
	MetaTitle       string
	MetaDescription string
	MetaKeywords    string
	FocusKeyword    string
	CategoryID      string
	ReadTime        int
}

// UpdateInput は記事の部分更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title           *string
	Slug            *string
	Content         *string
	Excerpt         *string
	Status          *model.PostStatus
	ImageURL        *string
	IsFeatured      *bool
	MetaTitle       *string
	MetaDescription *string
	MetaKeywords    *string
	FocusKeyword    *string
	CategoryID      *string
	ReadTime        *int
}

// ListQuery は一覧取得の条件。Pageは1始まり。
type ListQuery struct {
	Page     int
	Limit    int
	Status   model.PostStatus
	AuthorID string
	Featured *bool
}

// Page はページングされた記事一覧。
type Page struct {
	Posts      []*model.Post
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// Service は記事のサービス層。
type Service struct {
	repo      repository.PostRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(repo repository.PostRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{repo: repo, sanitizer: sanitizer}
}

// List は条件に一致する記事をページ単位で返す。
func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, model.NewValidationError("status", "unknown status")
	}

	filter := model.PostFilter{
		AuthorID:   q.AuthorID,
		Status:     q.Status,
		IsFeatured: q.Featured,
		Limit:      q.Limit,
		Offset:     (q.Page - 1) * q.Limit,
	}

	posts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, model.NewStoreFailureError(fmt.Errorf("failed to list posts: %w", err))
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, model.NewStoreFailureError(fmt.Errorf("failed to count posts: %w", err))
	}

	return &Page{
		Posts:      posts,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: int((total + int64(q.Limit) - 1) / int64(q.Limit)),
	}, nil
}

// Featured は公開済みの注目記事を新しい順に返す。
func (s *Service) Featured(ctx context.Context) ([]*model.Post, error) {
	featured := true
	posts, err := s.repo.List(ctx, model.PostFilter{
		Status:     model.PostStatusPublished,
		IsFeatured: &featured,
		Limit:      featuredLimit,
	})
	if err != nil {
		return nil, model.NewStoreFailureError(fmt.Errorf("failed to list featured posts: %w", err))
	}
	return posts, nil
}

// Get は指定IDの記事を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Post, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStoreFailureError(fmt.Errorf("failed to find post: %w", err))
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	return p, nil
}

// View はスラッグで記事を取得し、閲覧数を1増やす。
// 閲覧数の更新に失敗しても記事は返す。
func (s *Service) View(ctx context.Context, slug string) (*model.Post, error) {
	p, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, model.NewStoreFailureError(fmt.Errorf("failed to find post: %w", err))
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(slug)
	}

	ok, err := s.repo.IncrementViews(ctx, p.ID)
	if err != nil {
		slog.Warn("failed to increment post views",
			slog.String("post_id", p.ID),
			slog.String("error", err.Error()),
		)
	} else if ok {
		p.Views++
	}
	return p, nil
}

// Create は記事を作成する。スラッグ未指定時はタイトルから生成し、本文はサニタイズする。
func (s *Service) Create(ctx context.Context, authorID string, in Input) (*model.Post, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, model.NewValidationError("title", "title is required")
	}
	status := in.Status
	if status == "" {
		status = model.PostStatusDraft
	}
	if !status.Valid() {
		return nil, model.NewValidationError("status", "unknown status")
	}

	slug := in.Slug
	if slug == "" {
		slug = in.Title
	}
	slug = GenerateSlug(slug)
	if slug == "" {
		return nil, model.NewValidationError("slug", "slug cannot be derived from title")
	}

	p := &model.Post{
		Title:           strings.TrimSpace(in.Title),
		Slug:            slug,
		Content:         s.sanitizer.Sanitize(in.Content),
		Excerpt:         in.Excerpt,
		AuthorID:        authorID,
		Status:          status,
		ImageURL:        in.ImageURL,
		IsFeatured:      in.IsFeatured,
		MetaTitle:       in.MetaTitle,
		MetaDescription: in.MetaDescription,
		MetaKeywords:    in.MetaKeywords,
		FocusKeyword:    in.FocusKeyword,
		CategoryID:      in.CategoryID,
		ReadTime:        in.ReadTime,
	}
	s.fillDerived(p)

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, translateError(err, slug)
	}

	slog.Info("post created",
		slog.String("post_id", p.ID),
		slog.String("slug", p.Slug),
	)
	return p, nil
}

// Update は記事を部分更新する。
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.Post, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, model.NewValidationError("title", "title is required")
		}
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Slug != nil {
		slug := GenerateSlug(*in.Slug)
		if slug == "" {
			return nil, model.NewValidationError("slug", "slug is empty after normalization")
		}
		p.Slug = slug
	}
	if in.Content != nil {
		p.Content = s.sanitizer.Sanitize(*in.Content)
		if in.ReadTime == nil {
			p.ReadTime = 0
		}
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, model.NewValidationError("status", "unknown status")
		}
		p.Status = *in.Status
	}
	setString(&p.Excerpt, in.Excerpt)
	setString(&p.ImageURL, in.ImageURL)
	setString(&p.MetaTitle, in.MetaTitle)
	setString(&p.MetaDescription, in.MetaDescription)
	setString(&p.MetaKeywords, in.MetaKeywords)
	setString(&p.FocusKeyword, in.FocusKeyword)
	setString(&p.CategoryID, in.CategoryID)
	if in.IsFeatured != nil {
		p.IsFeatured = *in.IsFeatured
	}
	if in.ReadTime != nil {
		p.ReadTime = *in.ReadTime
	}
	s.fillDerived(p)

	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return nil, translateError(err, p.Slug)
	}
	if updated == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	return updated, nil
}

// Delete は記事を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return model.NewStoreFailureError(fmt.Errorf("failed to delete post: %w", err))
	}
	if !deleted {
		return model.NewPostNotFoundError(id)
	}
	slog.Info("post deleted", slog.String("post_id", id))
	return nil
}

// fillDerived は抜粋と読了時間が未設定の場合に本文から算出する。
func (s *Service) fillDerived(p *model.Post) {
	if p.Excerpt == "" && p.ReadTime > 0 {
		return
	}
	text := s.sanitizer.PlainText(p.Content)
	if p.Excerpt == "" {
		p.Excerpt = excerpt(text, excerptRunes)
	}
	if p.ReadTime <= 0 {
		p.ReadTime = EstimateReadTime(text)
	}
}

// EstimateReadTime は1分あたり200語として読了時間（分）を返す。最小は1分。
func EstimateReadTime(text string) int {
	words := len(strings.Fields(text))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

func excerpt(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:n])) + "…"
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func translateError(err error, slug string) error {
	var dup *repository.DuplicateKeyError
	if errors.As(err, &dup) {
		return model.NewDuplicateSlugError(slug)
	}
	return model.NewStoreFailureError(fmt.Errorf("failed to save post: %w", err))
}
