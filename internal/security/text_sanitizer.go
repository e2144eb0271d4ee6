// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力したメッセージ・回答・思い出の本文から
// マークアップを取り除き、プレーンテキストとして保存できる形に整える。
package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/atom"
)

// TextSanitizer はユーザー入力テキストの整形機能のインターフェースを定義する。
type TextSanitizer interface {
	// Clean はHTML要素のタグを除去し、前後の空白を取り除いた文字列を返す。
	// script/styleタグは中身ごと除去する。
	// HTML要素でない山括弧（"<Sarah>" や "<3"）や文字参照は入力のまま残る。
	Clean(text string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// tagPattern はタグの形をした部分に一致する。
var tagPattern = regexp.MustCompile(`</?([A-Za-z][A-Za-z0-9-]*)(\s[^<>]*)?/?>`)

// Clean は入力からマークアップを除去する。
func (s *textSanitizer) Clean(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(escapeNonMarkup(text))))
}

// escapeNonMarkup はHTML要素のタグ以外をすべてエスケープする。
// bluemondayには本物のタグだけが渡り、それ以外は文字として残る。
func escapeNonMarkup(text string) string {
	var b strings.Builder
	last := 0
	for _, m := range tagPattern.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(html.EscapeString(text[last:m[0]]))
		tag := text[m[0]:m[1]]
		name := text[m[2]:m[3]]
		hasAttrs := m[4] >= 0 && strings.TrimSpace(strings.TrimSuffix(text[m[4]:m[5]], "/")) != ""
		if isMarkup(name, hasAttrs) {
			b.WriteString(tag)
		} else {
			b.WriteString(html.EscapeString(tag))
		}
		last = m[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}

// isMarkup は既知のHTML名のタグをマークアップとみなす。
// 属性の無い大文字始まりのタグ（"<Mark>"）は人名として扱う。
func isMarkup(name string, hasAttrs bool) bool {
	lower := strings.ToLower(name)
	if atom.Lookup([]byte(lower)) == 0 {
		return false
	}
	return name == lower || hasAttrs
}

// compile-time interface check
var _ TextSanitizer = (*textSanitizer)(nil)
