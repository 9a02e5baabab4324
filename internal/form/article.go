package form

import (
	"strings"

	"github.com/hitoshi/blogclient/internal/model"
)

// Article は記事の作成・編集フォームの入力値。
type Article struct {
	Title       string   `json:"title" validate:"required,min=3,max=100"`
	Description string   `json:"description" validate:"required,min=10,max=200"`
	Body        string   `json:"body" validate:"required,min=20"`
	TagList     []string `json:"tagList"`
}

var articleMessages = messages{
	"title.required":       "Title is required",
	"title.min":            "Title must be at least 3 characters",
	"title.max":            "Title must be at most 100 characters",
	"description.required": "Short description is required",
	"description.min":      "Description must be at least 10 characters",
	"description.max":      "Description must be at most 200 characters",
	"body.required":        "Text is required",
	"body.min":             "Text must be at least 20 characters",
}

// Validate は記事フォームを検証する。
func (f Article) Validate() model.FieldErrors {
	return run(f, articleMessages)
}

// Input はAPIに送信する記事入力を返す。タグは正規化される。
func (f Article) Input() model.ArticleInput {
	return model.ArticleInput{
		Title:       f.Title,
		Description: f.Description,
		Body:        f.Body,
		TagList:     NormalizeTags(f.TagList),
	}
}

// NormalizeTags は前後の空白を除去し、空のタグを取り除く。
// 結果は常に非nilのスライス。
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := strings.TrimSpace(tag); t != "" {
			out = append(out, t)
		}
	}
	return out
}
