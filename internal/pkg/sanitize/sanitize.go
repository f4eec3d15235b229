package sanitize

import (
	"regexp"
	"strings"
)

// MaxTextLen 自由文本落库前的最大长度（按 rune 计）
const MaxTextLen = 1000

var (
	scriptBlockRegex = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	markupTagRegex   = regexp.MustCompile(`<[^>]*>`)
	unsafeURIRegex   = regexp.MustCompile(`(?i)(javascript|data|vbscript)\s*:`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
)

// Text 清洗用户提交的自由文本：去掉标记标签和危险 URI 前缀，
// 压缩空白并截断到 MaxTextLen。对已清洗的输入再次调用结果不变。
func Text(s string) string {
	if s == "" {
		return ""
	}

	// 循环替换到不动点，防止 "java<script>script:" 这类拼接绕过
	for scriptBlockRegex.MatchString(s) {
		s = scriptBlockRegex.ReplaceAllString(s, "")
	}
	for markupTagRegex.MatchString(s) {
		s = markupTagRegex.ReplaceAllString(s, "")
	}
	for unsafeURIRegex.MatchString(s) {
		s = unsafeURIRegex.ReplaceAllString(s, "")
	}

	s = whitespaceRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if runes := []rune(s); len(runes) > MaxTextLen {
		s = strings.TrimSpace(string(runes[:MaxTextLen]))
	}
	return s
}
