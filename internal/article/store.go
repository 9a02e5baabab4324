// Package article は記事一覧のページキャッシュと閲覧中記事を保持する状態ストアを提供する。
//
// ページは取得時に独立して保存され、ページ間のマージは行わない。
// ミューテーションの結果はキャッシュ済みのページに対して局所的に反映する。
package article

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/hitoshi/blogclient/internal/form"
	"github.com/hitoshi/blogclient/internal/metrics"
	"github.com/hitoshi/blogclient/internal/model"
)

// ArticleAPI は記事ストアが利用するリモートAPIのインターフェース。
type ArticleAPI interface {
	ListArticles(ctx context.Context, token string, limit, offset int) (*model.ArticlePage, error)
	GetArticle(ctx context.Context, token, slug string) (*model.Article, error)
	CreateArticle(ctx context.Context, token string, input model.ArticleInput) (*model.Article, error)
	UpdateArticle(ctx context.Context, token, slug string, input model.ArticleInput) (*model.Article, error)
	DeleteArticle(ctx context.Context, token, slug string) error
	Favorite(ctx context.Context, token, slug string) (*model.Article, error)
	Unfavorite(ctx context.Context, token, slug string) (*model.Article, error)
}

// TokenSource は現在のセッショントークンを返す。
type TokenSource interface {
	Token() string
}

// State は記事ストアのスナップショット。
type State struct {
	ArticlesByPage map[int][]model.Article
	ArticlesCount  int
	CurrentArticle *model.Article
	CurrentPage    int
	Loading        bool
	Submitting     bool
	// Liking はいずれかの記事でお気に入り操作が処理中の場合にtrue。
	Liking bool
	Error  *model.APIError
}

// Pages はキャッシュ済みのページ番号を昇順で返す。
func (s State) Pages() []int {
	pages := make([]int, 0, len(s.ArticlesByPage))
	for p := range s.ArticlesByPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// Store は記事の状態ストア。
// ネットワーク呼び出し中はロックを保持せず、完了時にロックを取って結果を適用する。
type Store struct {
	api     ArticleAPI
	tokens  TokenSource
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	mu          sync.Mutex
	pages       map[int][]model.Article
	count       int
	current     *model.Article
	currentPage int
	loading     int
	// viewing は処理中の記事取得のseq。記事を離れるとまとめて外す。
	viewing    map[uint64]struct{}
	submitting int
	liking     map[string]struct{}
	err        *model.APIError

	// 要求の順序付け。seqは全操作で単調増加し、リソースごとに最後に適用した番号を保持する。
	seq         uint64
	pageApplied map[int]uint64
	slugApplied map[string]uint64
	// viewSeq は閲覧中記事を離れた時点のseq。これより前に開始した取得結果は破棄する。
	viewSeq uint64
}

// NewStore はStoreを生成する。
func NewStore(api ArticleAPI, tokens TokenSource, logger *slog.Logger, m metrics.MetricsCollector) *Store {
	if m == nil {
		m = metrics.Nop()
	}
	return &Store{
		api:         api,
		tokens:      tokens,
		logger:      logger,
		metrics:     m,
		pages:       make(map[int][]model.Article),
		currentPage: 1,
		liking:      make(map[string]struct{}),
		viewing:     make(map[uint64]struct{}),
		pageApplied: make(map[int]uint64),
		slugApplied: make(map[string]uint64),
	}
}

// FetchPage は1ページ分の記事を取得し、そのページのキャッシュを上書きする。
// 総件数はレスポンスの値で更新する。
func (s *Store) FetchPage(ctx context.Context, page, pageSize int) ([]model.Article, error) {
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	seq := s.nextSeq()
	s.loading++
	s.err = nil
	s.mu.Unlock()

	result, err := s.api.ListArticles(ctx, s.tokens.Token(), pageSize, (page-1)*pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading > 0 {
		s.loading--
	}

	if seq < s.pageApplied[page] {
		s.discard(metrics.ResourcePage, seq)
		return nil, model.NewStaleResultError()
	}
	if err != nil {
		s.err = model.AsAPIError(err)
		return nil, s.err
	}

	s.pageApplied[page] = seq
	s.pages[page] = cloneArticles(result.Articles)
	s.count = result.ArticlesCount

	s.logger.Debug("記事一覧ページを取得しました",
		slog.Int("page", page),
		slog.Int("articles", len(result.Articles)),
		slog.Int("articles_count", result.ArticlesCount),
	)
	return cloneArticles(result.Articles), nil
}

// EnsurePage は現在のページを設定し、そのページが未取得の場合だけ取得する。
func (s *Store) EnsurePage(ctx context.Context, page, pageSize int) ([]model.Article, error) {
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	s.currentPage = page
	cached, ok := s.pages[page]
	if ok {
		cached = cloneArticles(cached)
	}
	s.mu.Unlock()

	s.metrics.RecordPageCache(ok)
	if ok {
		return cached, nil
	}
	return s.FetchPage(ctx, page, pageSize)
}

// SetCurrentPage は表示中のページ番号を設定する。
func (s *Store) SetCurrentPage(page int) {
	if page < 1 {
		page = 1
	}
	s.mu.Lock()
	s.currentPage = page
	s.mu.Unlock()
}

// ClearCurrent は閲覧中の記事から離れる。閲覧中記事とerrorをクリアし、
// 処理中の記事取得はloadingに数えなくなる。一覧の取得や削除の処理中状態は残す。
func (s *Store) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.err = nil
	clear(s.viewing)
	s.viewSeq = s.nextSeq()
}

// FetchBySlug は記事を取得し、閲覧中記事を無条件に置き換える。
func (s *Store) FetchBySlug(ctx context.Context, slug string) (*model.Article, error) {
	s.mu.Lock()
	seq := s.nextSeq()
	s.viewing[seq] = struct{}{}
	s.err = nil
	s.mu.Unlock()

	a, err := s.api.GetArticle(ctx, s.tokens.Token(), slug)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.viewing, seq)

	if seq < s.slugApplied[slug] || seq < s.viewSeq {
		s.discard(metrics.ResourceSlug, seq)
		return nil, model.NewStaleResultError()
	}
	if err != nil {
		s.err = model.AsAPIError(err)
		return nil, s.err
	}

	s.slugApplied[slug] = seq
	s.current = a.Clone()
	return a.Clone(), nil
}

// Create は記事を作成する。
// 成功すると閲覧中記事を新しい記事にし、1ページ目がキャッシュ済みなら先頭に追加する。
// 総件数はキャッシュの有無にかかわらず1増やす。
func (s *Store) Create(ctx context.Context, in form.Article) (*model.Article, error) {
	if fields := in.Validate(); fields != nil {
		return nil, model.NewValidationError(0, fields)
	}
	token := s.tokens.Token()
	if token == "" {
		return nil, model.NewAuthRequiredError()
	}

	s.beginSubmit()
	a, err := s.api.CreateArticle(ctx, token, in.Input())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting--
	if err != nil {
		s.err = model.AsAPIError(err)
		return nil, s.err
	}

	s.slugApplied[a.Slug] = s.nextSeq()
	s.current = a.Clone()
	if first, ok := s.pages[1]; ok {
		s.pages[1] = append([]model.Article{*a.Clone()}, first...)
	}
	s.count++

	s.logger.Info("記事を作成しました", slog.String("slug", a.Slug))
	return a.Clone(), nil
}

// Update は記事を更新し、閲覧中記事を置き換える。
// キャッシュ済みページ内の要約は更新しない。再取得するまで一覧には古いタイトル等が残る。
// 更新中に同じ記事の取得が後から始まって先に完了した場合、閲覧中記事はその取得結果のままにする。
// 更新自体は成功しているので、結果は呼び出し元に返す。
func (s *Store) Update(ctx context.Context, slug string, in form.Article) (*model.Article, error) {
	if fields := in.Validate(); fields != nil {
		return nil, model.NewValidationError(0, fields)
	}
	token := s.tokens.Token()
	if token == "" {
		return nil, model.NewAuthRequiredError()
	}

	seq := s.beginSubmit()
	a, err := s.api.UpdateArticle(ctx, token, slug, in.Input())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting--

	if err != nil {
		apiErr := model.AsAPIError(err)
		if seq >= s.slugApplied[slug] {
			s.err = apiErr
		}
		return nil, apiErr
	}

	s.applyCurrent(slug, seq, a)

	s.logger.Info("記事を更新しました", slog.String("slug", slug), slog.String("new_slug", a.Slug))
	return a.Clone(), nil
}

// Delete は記事を削除する。
// 成功すると閲覧中記事が一致すればクリアし、全キャッシュページから取り除き、総件数を1減らす（0未満にはしない）。
func (s *Store) Delete(ctx context.Context, slug string) error {
	token := s.tokens.Token()
	if token == "" {
		return model.NewAuthRequiredError()
	}

	s.mu.Lock()
	s.nextSeq()
	s.loading++
	s.err = nil
	s.mu.Unlock()

	err := s.api.DeleteArticle(ctx, token, slug)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading > 0 {
		s.loading--
	}
	if err != nil {
		s.err = model.AsAPIError(err)
		return s.err
	}

	// 削除前に開始した同じスラッグの取得結果は破棄する
	s.slugApplied[slug] = s.nextSeq()
	if s.current != nil && s.current.Slug == slug {
		s.current = nil
	}
	for page, list := range s.pages {
		s.pages[page] = removeSlug(list, slug)
	}
	s.count = max(0, s.count-1)

	s.logger.Info("記事を削除しました", slog.String("slug", slug))
	return nil
}

// Favorite は記事をお気に入りに追加する。
func (s *Store) Favorite(ctx context.Context, slug string) (*model.Article, error) {
	return s.toggleFavorite(ctx, slug, s.api.Favorite)
}

// Unfavorite は記事のお気に入りを解除する。
func (s *Store) Unfavorite(ctx context.Context, slug string) (*model.Article, error) {
	return s.toggleFavorite(ctx, slug, s.api.Unfavorite)
}

// IsLiking は指定した記事でお気に入り操作が処理中かを返す。
func (s *Store) IsLiking(slug string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.liking[slug]
	return ok
}

// Snapshot は現在の状態のディープコピーを返す。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	pages := make(map[int][]model.Article, len(s.pages))
	for page, list := range s.pages {
		pages[page] = cloneArticles(list)
	}
	return State{
		ArticlesByPage: pages,
		ArticlesCount:  s.count,
		CurrentArticle: s.current.Clone(),
		CurrentPage:    s.currentPage,
		Loading:        s.loading > 0 || len(s.viewing) > 0,
		Submitting:     s.submitting > 0,
		Liking:         len(s.liking) > 0,
		Error:          s.err,
	}
}

type favoriteFunc func(ctx context.Context, token, slug string) (*model.Article, error)

func (s *Store) toggleFavorite(ctx context.Context, slug string, call favoriteFunc) (*model.Article, error) {
	token := s.tokens.Token()
	if token == "" {
		return nil, model.NewAuthRequiredError()
	}

	s.mu.Lock()
	if _, busy := s.liking[slug]; busy {
		s.mu.Unlock()
		return nil, model.NewAlreadyInFlightError(slug)
	}
	seq := s.nextSeq()
	s.liking[slug] = struct{}{}
	s.mu.Unlock()

	a, err := call(ctx, token, slug)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.liking, slug)

	if err != nil {
		apiErr := model.AsAPIError(err)
		if seq >= s.slugApplied[slug] {
			s.err = apiErr
		}
		return nil, apiErr
	}

	// キャッシュページを書き換えるのはお気に入り操作だけなので、成功結果は常に反映する
	s.patchPages(a)
	if s.current != nil && s.current.Slug == slug {
		s.applyCurrent(slug, seq, a)
	}
	return a.Clone(), nil
}

// applyCurrent はseqがslugの最新の結果であれば閲覧中記事をaで置き換える。
// 後から始まった同じ記事の操作が先に適用済みの場合は何もしない。
func (s *Store) applyCurrent(slug string, seq uint64, a *model.Article) {
	if seq < s.slugApplied[slug] {
		s.discard(metrics.ResourceSlug, seq)
		return
	}
	s.slugApplied[slug] = seq
	if a.Slug != slug {
		s.slugApplied[a.Slug] = seq
	}
	s.current = a.Clone()
}

// patchPages は全キャッシュページの同じスラッグの記事を置き換える。
func (s *Store) patchPages(a *model.Article) {
	for _, list := range s.pages {
		for i := range list {
			if list[i].Slug == a.Slug {
				list[i] = *a.Clone()
			}
		}
	}
}

func (s *Store) beginSubmit() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting++
	s.err = nil
	return s.nextSeq()
}

// nextSeq はs.muを保持した状態で呼び出すこと。
func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) discard(resource string, seq uint64) {
	s.metrics.RecordStaleResult(resource)
	s.logger.Debug("古い記事操作の結果を破棄しました",
		slog.String("resource", resource),
		slog.Uint64("seq", seq),
	)
}

func cloneArticles(list []model.Article) []model.Article {
	out := make([]model.Article, len(list))
	for i := range list {
		out[i] = *list[i].Clone()
	}
	return out
}

func removeSlug(list []model.Article, slug string) []model.Article {
	out := make([]model.Article, 0, len(list))
	for _, a := range list {
		if a.Slug != slug {
			out = append(out, a)
		}
	}
	return out
}
