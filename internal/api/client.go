// Package api はブログプラットフォームのREST APIクライアントを提供する。
// 全てのメソッドはトークンを引数で受け取り、グローバルな状態を参照しない。
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/blogclient/internal/metrics"
	"github.com/hitoshi/blogclient/internal/model"
)

const (
	// maxResponseSize はレスポンスボディの最大読み取りサイズ（5MB）。
	maxResponseSize = 5 * 1024 * 1024
	userAgent       = "blogclient/1.0"
)

// 操作名（メトリクスとログのラベル）
const (
	OpLogin         = "login"
	OpRegister      = "register"
	OpCurrentUser   = "current_user"
	OpUpdateUser    = "update_user"
	OpListArticles  = "list_articles"
	OpGetArticle    = "get_article"
	OpCreateArticle = "create_article"
	OpUpdateArticle = "update_article"
	OpDeleteArticle = "delete_article"
	OpFavorite      = "favorite"
	OpUnfavorite    = "unfavorite"
)

// Client はリモートブログAPIのクライアント。
// 失敗は全て *model.APIError に正規化して返す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	limiter    *rate.Limiter // nilの場合は送信レートを制限しない
	metrics    metrics.MetricsCollector
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, limiter *rate.Limiter, m metrics.MetricsCollector) *Client {
	if m == nil {
		m = metrics.Nop()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		limiter:    limiter,
		metrics:    m,
	}
}

type userEnvelope struct {
	User model.User `json:"user"`
}

type articleEnvelope struct {
	Article model.Article `json:"article"`
}

// Login はメールアドレスとパスワードでログインし、トークン付きのユーザーを返す。
func (c *Client) Login(ctx context.Context, creds model.Credentials) (*model.User, error) {
	payload := map[string]any{"user": creds}
	var out userEnvelope
	if err := c.do(ctx, OpLogin, http.MethodPost, "/users/login", "", payload, &out); err != nil {
		return nil, err
	}
	if out.User.Token == "" {
		return nil, model.NewDecodeFailedError("response has no token")
	}
	return &out.User, nil
}

// Register はアカウントを登録し、トークン付きのユーザーを返す。
func (c *Client) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	payload := map[string]any{"user": reg}
	var out userEnvelope
	if err := c.do(ctx, OpRegister, http.MethodPost, "/users", "", payload, &out); err != nil {
		return nil, err
	}
	if out.User.Token == "" {
		return nil, model.NewDecodeFailedError("response has no token")
	}
	return &out.User, nil
}

// CurrentUser はトークンに対応するユーザーを取得する。
func (c *Client) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	var out userEnvelope
	if err := c.do(ctx, OpCurrentUser, http.MethodGet, "/user", token, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// UpdateUser はプロフィールを部分更新する。
// nilのフィールドは送信せず、Imageが空文字列の場合はnullを送信する。
func (c *Client) UpdateUser(ctx context.Context, token string, update model.UserUpdate) (*model.User, error) {
	fields := make(map[string]any)
	if update.Username != nil {
		fields["username"] = *update.Username
	}
	if update.Email != nil {
		fields["email"] = *update.Email
	}
	if update.Bio != nil {
		fields["bio"] = *update.Bio
	}
	if update.Password != nil {
		fields["password"] = *update.Password
	}
	if update.Image != nil {
		if *update.Image == "" {
			fields["image"] = nil
		} else {
			fields["image"] = *update.Image
		}
	}

	var out userEnvelope
	if err := c.do(ctx, OpUpdateUser, http.MethodPut, "/user", token, map[string]any{"user": fields}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListArticles は記事一覧を取得する。tokenが空の場合は認証ヘッダーを付けない。
func (c *Client) ListArticles(ctx context.Context, token string, limit, offset int) (*model.ArticlePage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var out model.ArticlePage
	if err := c.do(ctx, OpListArticles, http.MethodGet, "/articles?"+q.Encode(), token, nil, &out); err != nil {
		return nil, err
	}
	if out.Articles == nil {
		out.Articles = []model.Article{}
	}
	return &out, nil
}

// GetArticle はスラッグで記事を取得する。
func (c *Client) GetArticle(ctx context.Context, token, slug string) (*model.Article, error) {
	return c.articleCall(ctx, OpGetArticle, http.MethodGet, articlePath(slug), token, nil)
}

// CreateArticle は記事を作成する。
func (c *Client) CreateArticle(ctx context.Context, token string, input model.ArticleInput) (*model.Article, error) {
	return c.articleCall(ctx, OpCreateArticle, http.MethodPost, "/articles", token, map[string]any{"article": input})
}

// UpdateArticle は記事を更新する。
func (c *Client) UpdateArticle(ctx context.Context, token, slug string, input model.ArticleInput) (*model.Article, error) {
	return c.articleCall(ctx, OpUpdateArticle, http.MethodPut, articlePath(slug), token, map[string]any{"article": input})
}

// DeleteArticle は記事を削除する。成功時のレスポンスボディは読まない。
func (c *Client) DeleteArticle(ctx context.Context, token, slug string) error {
	return c.do(ctx, OpDeleteArticle, http.MethodDelete, articlePath(slug), token, nil, nil)
}

// Favorite は記事をお気に入りに追加し、更新後の記事を返す。
func (c *Client) Favorite(ctx context.Context, token, slug string) (*model.Article, error) {
	return c.articleCall(ctx, OpFavorite, http.MethodPost, articlePath(slug)+"/favorite", token, map[string]any{})
}

// Unfavorite は記事をお気に入りから外し、更新後の記事を返す。
func (c *Client) Unfavorite(ctx context.Context, token, slug string) (*model.Article, error) {
	return c.articleCall(ctx, OpUnfavorite, http.MethodDelete, articlePath(slug)+"/favorite", token, nil)
}

func articlePath(slug string) string {
	return "/articles/" + url.PathEscape(slug)
}

func (c *Client) articleCall(ctx context.Context, op, method, path, token string, payload any) (*model.Article, error) {
	var out articleEnvelope
	if err := c.do(ctx, op, method, path, token, payload, &out); err != nil {
		return nil, err
	}
	if out.Article.Slug == "" {
		return nil, model.NewDecodeFailedError("response has no article")
	}
	return &out.Article, nil
}

// do はHTTPリクエストを1回送信し、成功時にoutへデコードする。
// 自動リトライは行わない。
func (c *Client) do(ctx context.Context, op, method, path, token string, payload, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return model.NewNetworkError(err.Error())
		}
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPICall(op, 0, time.Since(start))
		c.logger.Error("APIの呼び出しに失敗しました",
			slog.String("operation", op),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return model.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	duration := time.Since(start)
	c.metrics.RecordAPICall(op, resp.StatusCode, duration)
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("operation", op),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return model.NewNetworkError(err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := normalizeError(resp.StatusCode, raw, path)
		c.logger.Warn("APIがエラーステータスを返しました",
			slog.String("operation", op),
			slog.String("request_id", requestID),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", apiErr.Code),
		)
		return apiErr
	}

	c.logger.Debug("API呼び出しが完了しました",
		slog.String("operation", op),
		slog.String("request_id", requestID),
		slog.Int("http_status", resp.StatusCode),
		slog.Int64("duration_ms", duration.Milliseconds()),
	)

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Error("APIレスポンスのパースに失敗しました",
			slog.String("operation", op),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return model.NewDecodeFailedError(err.Error())
	}
	return nil
}
