// Package model はドメインモデルを定義する。
package model

import "time"

// Author は記事の著者プロフィールを表す。
type Author struct {
	Username  string  `json:"username"`
	Bio       *string `json:"bio"`
	Image     *string `json:"image"`
	Following bool    `json:"following"`
}

// Article はリモートAPIから取得した記事を表す。
// 一覧エンドポイントの要約も同じ型で扱う（Bodyが空の場合がある）。
// Slugはキャッシュ検索とルーティングに使う一意キー。
type Article struct {
	Slug           string    `json:"slug"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Body           string    `json:"body"`
	TagList        []string  `json:"tagList"`
	Author         Author    `json:"author"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Favorited      bool      `json:"favorited"`
	FavoritesCount int       `json:"favoritesCount"`
}

// Clone は記事のディープコピーを返す。
func (a *Article) Clone() *Article {
	if a == nil {
		return nil
	}
	c := *a
	if a.TagList != nil {
		c.TagList = append([]string(nil), a.TagList...)
	}
	if a.Author.Bio != nil {
		bio := *a.Author.Bio
		c.Author.Bio = &bio
	}
	if a.Author.Image != nil {
		image := *a.Author.Image
		c.Author.Image = &image
	}
	return &c
}

// ArticleInput は記事の作成・更新の入力値。
type ArticleInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Body        string   `json:"body"`
	TagList     []string `json:"tagList"`
}

// ArticlePage は記事一覧の1ページ分の取得結果。
type ArticlePage struct {
	Articles      []Article `json:"articles"`
	ArticlesCount int       `json:"articlesCount"`
}
