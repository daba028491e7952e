package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Byte-q/used-backend/internal/middleware"
	"github.com/Byte-q/used-backend/internal/model"
	"github.com/Byte-q/used-backend/internal/post"
)

// PostServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	List(ctx context.Context, q post.ListQuery) (*post.Page, error)
	Featured(ctx context.Context) ([]*model.Post, error)
	Get(ctx context.Context, id string) (*model.Post, error)
	View(ctx context.Context, slug string) (*model.Post, error)
	Create(ctx context.Context, authorID string, in post.Input) (*model.Post, error)
	Update(ctx context.Context, id string, in post.UpdateInput) (*model.Post, error)
	Delete(ctx context.Context, id string) error
}

// PostHandler は記事のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

type createPostRequest struct {
	Title           string `json:"title" validate:"required,max=200"`
	Slug            string `json:"slug" validate:"max=200"`
	Content         string `json:"content"`
	Excerpt         string `json:"excerpt" validate:"max=500"`
	Status          string `json:"status" validate:"omitempty,oneof=draft published archived"`
	ImageURL        string `json:"imageUrl" validate:"omitempty,url"`
	IsFeatured      bool   `json:"isFeatured"`
	MetaTitle       string `json:"metaTitle"`
	MetaDescription string `json:"metaDescription"`
	MetaKeywords    string `json:"metaKeywords"`
	FocusKeyword    string `json:"focusKeyword"`
	CategoryID      string `json:"categoryId"`
	ReadTime        int    `json:"readTime" validate:"gte=0"`
}

type updatePostRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	Slug            *string `json:"slug" validate:"omitempty,max=200"`
	Content         *string `json:"content"`
	Excerpt         *string `json:"excerpt" validate:"omitempty,max=500"`
	Status          *string `json:"status" validate:"omitempty,oneof=draft published archived"`
	ImageURL        *string `json:"imageUrl" validate:"omitempty,url"`
	IsFeatured      *bool   `json:"isFeatured"`
	MetaTitle       *string `json:"metaTitle"`
	MetaDescription *string `json:"metaDescription"`
	MetaKeywords    *string `json:"metaKeywords"`
	FocusKeyword    *string `json:"focusKeyword"`
	CategoryID      *string `json:"categoryId"`
	ReadTime        *int    `json:"readTime" validate:"omitempty,gte=0"`
}

// postPageResponse は記事一覧のページレスポンス。
type postPageResponse struct {
	Posts      []postResponse `json:"posts"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
}

// List は記事一覧を返す。
// GET /api/posts?page=&limit=&status=&featured=&authorId=
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	q, apiErr := parsePostListQuery(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	page, err := h.service.List(r.Context(), q)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, postPageResponse{
		Posts:      toPostResponses(page.Posts),
		Total:      page.Total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: page.TotalPages,
	})
}

// Featured は注目記事を返す。
// GET /api/posts/featured
func (h *PostHandler) Featured(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.Featured(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// Get は指定IDの記事を返す。
// GET /api/posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// GetBySlug はスラッグで記事を返し、閲覧数を増やす。
// GET /api/posts/slug/{slug}
func (h *PostHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.View(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// Create は記事を作成する。著者は認証済みユーザーになる。
// POST /api/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createPostRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), userID, post.Input{
		Title:           req.Title,
		Slug:            req.Slug,
		Content:         req.Content,
		Excerpt:         req.Excerpt,
		Status:          model.PostStatus(req.Status),
		ImageURL:        req.ImageURL,
		IsFeatured:      req.IsFeatured,
		MetaTitle:       req.MetaTitle,
		MetaDescription: req.MetaDescription,
		MetaKeywords:    req.MetaKeywords,
		FocusKeyword:    req.FocusKeyword,
		CategoryID:      req.CategoryID,
		ReadTime:        req.ReadTime,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(p))
}

// Update は記事を部分更新する。
// PUT|PATCH /api/posts/{id}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updatePostRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	in := post.UpdateInput{
		Title:           req.Title,
		Slug:            req.Slug,
		Content:         req.Content,
		Excerpt:         req.Excerpt,
		ImageURL:        req.ImageURL,
		IsFeatured:      req.IsFeatured,
		MetaTitle:       req.MetaTitle,
		MetaDescription: req.MetaDescription,
		MetaKeywords:    req.MetaKeywords,
		FocusKeyword:    req.FocusKeyword,
		CategoryID:      req.CategoryID,
		ReadTime:        req.ReadTime,
	}
	if req.Status != nil {
		status := model.PostStatus(*req.Status)
		in.Status = &status
	}

	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// Delete は記事を削除する。
// DELETE /api/posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parsePostListQuery はクエリパラメータを記事一覧の条件に変換する。
func parsePostListQuery(r *http.Request) (post.ListQuery, *model.APIError) {
	values := r.URL.Query()
	q := post.ListQuery{
		Status:   model.PostStatus(values.Get("status")),
		AuthorID: values.Get("authorId"),
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"page", &q.Page},
		{"limit", &q.Limit},
	} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, model.NewValidationError(p.name, p.name+" must be a positive integer")
		}
		*p.dst = n
	}

	if raw := values.Get("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return q, model.NewValidationError("featured", "featured must be true or false")
		}
		q.Featured = &featured
	}
	return q, nil
}
