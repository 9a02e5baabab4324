package form

import (
	"strings"
	"testing"
)

func validArticle() Article {
	return Article{
		Title:       "How to train",
		Description: "A short description",
		Body:        "This body is definitely long enough.",
		TagList:     []string{"dragons"},
	}
}

func TestArticle_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Article)
		wantField string
		wantMsg   string
	}{
		{"正常", func(a *Article) {}, "", ""},
		{"タイトル未入力", func(a *Article) { a.Title = "" }, "title", "Title is required"},
		{"タイトルが短い", func(a *Article) { a.Title = "ab" }, "title", "Title must be at least 3 characters"},
		{"タイトルが長い", func(a *Article) { a.Title = strings.Repeat("t", 101) }, "title", "Title must be at most 100 characters"},
		{"説明が短い", func(a *Article) { a.Description = "short" }, "description", "Description must be at least 10 characters"},
		{"説明が長い", func(a *Article) { a.Description = strings.Repeat("d", 201) }, "description", "Description must be at most 200 characters"},
		{"本文未入力", func(a *Article) { a.Body = "" }, "body", "Text is required"},
		{"本文が短い", func(a *Article) { a.Body = "too short" }, "body", "Text must be at least 20 characters"},
		{"マルチバイトは文字数で数える", func(a *Article) { a.Title = "記事名" }, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validArticle()
			tt.mutate(&a)
			got := a.Validate()
			if tt.wantField == "" {
				if got != nil {
					t.Fatalf("Validate() = %v, want nil", got)
				}
				return
			}
			if msgs := got[tt.wantField]; len(msgs) != 1 || msgs[0] != tt.wantMsg {
				t.Errorf("Validate()[%s] = %v, want [%s]", tt.wantField, msgs, tt.wantMsg)
			}
		})
	}
}

func TestArticle_Validate_MultipleFields(t *testing.T) {
	got := Article{}.Validate()
	for _, field := range []string{"title", "description", "body"} {
		if !got.Has(field) {
			t.Errorf("Validate() should report %s, got %v", field, got)
		}
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"  go ", "", "   ", "web"})
	if len(got) != 2 || got[0] != "go" || got[1] != "web" {
		t.Errorf("NormalizeTags() = %v, want [go web]", got)
	}

	if empty := NormalizeTags(nil); empty == nil || len(empty) != 0 {
		t.Errorf("NormalizeTags(nil) = %v, want empty non-nil slice", empty)
	}
}

func TestArticle_Input_NormalizesTags(t *testing.T) {
	a := validArticle()
	a.TagList = []string{" a ", ""}
	in := a.Input()
	if len(in.TagList) != 1 || in.TagList[0] != "a" {
		t.Errorf("Input().TagList = %v, want [a]", in.TagList)
	}
	if in.Title != a.Title || in.Body != a.Body {
		t.Errorf("Input() = %+v", in)
	}
}
