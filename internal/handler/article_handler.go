package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogclient/internal/article"
	"github.com/hitoshi/blogclient/internal/form"
	"github.com/hitoshi/blogclient/internal/middleware"
	"github.com/hitoshi/blogclient/internal/model"
	"github.com/hitoshi/blogclient/internal/security"
)

// ArticleStoreInterface は記事ハンドラーが必要とする記事ストアのインターフェース。
type ArticleStoreInterface interface {
	FetchPage(ctx context.Context, page, pageSize int) ([]model.Article, error)
	EnsurePage(ctx context.Context, page, pageSize int) ([]model.Article, error)
	FetchBySlug(ctx context.Context, slug string) (*model.Article, error)
	ClearCurrent()
	Create(ctx context.Context, in form.Article) (*model.Article, error)
	Update(ctx context.Context, slug string, in form.Article) (*model.Article, error)
	Delete(ctx context.Context, slug string) error
	Favorite(ctx context.Context, slug string) (*model.Article, error)
	Unfavorite(ctx context.Context, slug string) (*model.Article, error)
	IsLiking(slug string) bool
	Snapshot() article.State
}

var _ ArticleStoreInterface = (*article.Store)(nil)

// authorResponse は著者のビュー向け表現。
type authorResponse struct {
	Username  string  `json:"username"`
	Bio       *string `json:"bio"`
	Image     *string `json:"image"`
	Following bool    `json:"following"`
}

// articleResponse は記事のビュー向け表現。
// 本文は生のテキストに加えてサニタイズ済みHTMLと抜粋を含む。
type articleResponse struct {
	Slug           string         `json:"slug"`
	Title          string         `json:"title"`
	TitleShort     string         `json:"title_short"`
	Description    string         `json:"description"`
	Body           string         `json:"body,omitempty"`
	BodyHTML       string         `json:"body_html,omitempty"`
	Excerpt        string         `json:"excerpt"`
	TagList        []string       `json:"tagList"`
	Author         authorResponse `json:"author"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	Favorited      bool           `json:"favorited"`
	FavoritesCount int            `json:"favoritesCount"`
	Liking         bool           `json:"liking"`
}

// pageResponse は記事一覧1ページ分のレスポンス。
type pageResponse struct {
	Page          int               `json:"page"`
	PageSize      int               `json:"pageSize"`
	TotalPages    int               `json:"totalPages"`
	ArticlesCount int               `json:"articlesCount"`
	Articles      []articleResponse `json:"articles"`
	CachedPages   []int             `json:"cachedPages"`
}

// ArticleHandler は記事関連のHTTPハンドラー。
type ArticleHandler struct {
	store     ArticleStoreInterface
	sanitizer security.ContentSanitizerService
	pageSize  int
	logger    *slog.Logger
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(store ArticleStoreInterface, sanitizer security.ContentSanitizerService, pageSize int, logger *slog.Logger) *ArticleHandler {
	if pageSize <= 0 {
		pageSize = 5
	}
	return &ArticleHandler{
		store:     store,
		sanitizer: sanitizer,
		pageSize:  pageSize,
		logger:    logger,
	}
}

// ListArticles は記事一覧の1ページを返す。
// キャッシュ済みのページはそのまま返し、refresh=1の場合は再取得する。
// GET /api/articles?page=N&refresh=1
func (h *ArticleHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			writeInvalidQuery(w, "page")
			return
		}
		page = p
	}

	var (
		list []model.Article
		err  error
	)
	if r.URL.Query().Get("refresh") == "1" {
		list, err = h.store.FetchPage(r.Context(), page, h.pageSize)
	} else {
		list, err = h.store.EnsurePage(r.Context(), page, h.pageSize)
	}
	if err != nil {
		handleStoreError(w, h.logger, err)
		return
	}

	state := h.store.Snapshot()
	resp := pageResponse{
		Page:          page,
		PageSize:      h.pageSize,
		TotalPages:    (state.ArticlesCount + h.pageSize - 1) / h.pageSize,
		ArticlesCount: state.ArticlesCount,
		Articles:      make([]articleResponse, 0, len(list)),
		CachedPages:   state.Pages(),
	}
	for i := range list {
		resp.Articles = append(resp.Articles, h.toSummaryResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetArticle は記事を開く。
// GET /api/articles/{slug}
func (h *ArticleHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.FetchBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleStoreError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toArticleResponse(a))
}

// LeaveArticle は閲覧中の記事から離れる。
// DELETE /api/articles/current
func (h *ArticleHandler) LeaveArticle(w http.ResponseWriter, r *http.Request) {
	h.store.ClearCurrent()
	w.WriteHeader(http.StatusNoContent)
}

// CreateArticle は記事を作成する。
// POST /api/articles
func (h *ArticleHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var in form.Article
	if !decodeJSON(w, r, &in) {
		return
	}
	a, err := h.store.Create(r.Context(), in)
	if err != nil {
		handleStoreError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toArticleResponse(a))
}

// UpdateArticle は記事を更新する。
// PUT /api/articles/{slug}
func (h *ArticleHandler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	var in form.Article
	if !decodeJSON(w, r, &in) {
		return
	}
	a, err := h.store.Update(r.Context(), chi.URLParam(r, "slug"), in)
	if err != nil {
		handleStoreError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toArticleResponse(a))
}

// DeleteArticle は記事を削除する。
// DELETE /api/articles/{slug}
func (h *ArticleHandler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "slug")); err != nil {
		handleStoreError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Favorite は記事をお気に入りに追加する。
// POST /api/articles/{slug}/favorite
func (h *ArticleHandler) Favorite(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.Favorite(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleStoreError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toArticleResponse(a))
}

// Unfavorite は記事のお気に入りを解除する。
// DELETE /api/articles/{slug}/favorite
func (h *ArticleHandler) Unfavorite(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.Unfavorite(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleStoreError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toArticleResponse(a))
}

// toArticleResponse は本文のHTMLを含む記事の表現を返す。
func (h *ArticleHandler) toArticleResponse(a *model.Article) articleResponse {
	resp := h.toSummaryResponse(a)
	resp.Body = a.Body
	resp.BodyHTML = h.sanitizer.RenderBody(a.Body)
	if a.Body != "" {
		resp.Excerpt = security.Excerpt(resp.BodyHTML, security.ExcerptMaxLength)
	}
	return resp
}

// toSummaryResponse は一覧用の表現を返す。本文は含めず、抜粋は説明文から作る。
func (h *ArticleHandler) toSummaryResponse(a *model.Article) articleResponse {
	tags := a.TagList
	if tags == nil {
		tags = []string{}
	}
	return articleResponse{
		Slug:        a.Slug,
		Title:       a.Title,
		TitleShort:  security.Truncate(a.Title, security.TitleMaxLength),
		Description: a.Description,
		Excerpt:     security.Excerpt(h.sanitizer.Sanitize(a.Description), security.ExcerptMaxLength),
		TagList:     tags,
		Author: authorResponse{
			Username:  a.Author.Username,
			Bio:       a.Author.Bio,
			Image:     a.Author.Image,
			Following: a.Author.Following,
		},
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
		Favorited:      a.Favorited,
		FavoritesCount: a.FavoritesCount,
		Liking:         h.store.IsLiking(a.Slug),
	}
}

func writeInvalidQuery(w http.ResponseWriter, param string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "クエリパラメータ " + param + " が不正です。",
		Category: model.CategoryValidation,
		Action:   "1以上の整数を指定してください。",
	})
}
