package security

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const ellipsis = "..."

// デフォルトの切り詰め長（rune数）
const (
	TitleMaxLength   = 60
	ExcerptMaxLength = 160
)

// Truncate は文字列をmaxLength文字（rune単位）に切り詰め、末尾に"..."を付ける。
// maxLength以下の場合はそのまま返す。
func Truncate(text string, maxLength int) string {
	if maxLength <= 0 || utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimRight(string(runes[:maxLength]), " ") + ellipsis
}

// Excerpt はHTMLまたはプレーンテキストから本文テキストを抽出し、
// 空白を1文字に畳み込んだうえでmaxLength文字に切り詰める。
// script/style要素の中身は含めない。
func Excerpt(content string, maxLength int) string {
	z := html.NewTokenizer(strings.NewReader(content))

	var b strings.Builder
	skipDepth := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF 以外のエラーでもそこまでに読めたテキストを使う
			return Truncate(strings.Join(strings.Fields(b.String()), " "), maxLength)
		case html.StartTagToken:
			name, _ := z.TagName()
			if isSkippedElement(string(name)) {
				skipDepth++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if isSkippedElement(string(name)) && skipDepth > 0 {
				skipDepth--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isSkippedElement(name string) bool {
	return name == "script" || name == "style"
}
