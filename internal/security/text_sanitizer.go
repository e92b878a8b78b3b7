package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は場所の名前や説明などのプレーンテキスト入力からHTMLを取り除く。
type TextSanitizer interface {
	// Sanitize は全てのタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	Sanitize(input string) string
}

// strictSanitizer はbluemondayのStrictPolicyによるTextSanitizerの実装。
// bluemonday.Policyはゴルーチンセーフなので共有して使う。
type strictSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &strictSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去した後、StrictPolicyが付与した文字参照を元に戻す。
// 出力時のエスケープはテンプレートが行うため、保存値はエスケープしない。
func (s *strictSanitizer) Sanitize(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(input)))
}
