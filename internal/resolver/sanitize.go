package resolver

import (
	"strings"
	"unicode"
)

// Sanitize 去掉命名空间目录段和标点，小写，空白折叠为单个 "-"
//
//	"Workers/Syncing - Team Roster" -> ("Workers", "syncing-team-roster")
func Sanitize(name string) (namespace, slug string) {
	rest := name
	if ns, after, found := strings.Cut(name, "/"); found {
		namespace = strings.TrimSpace(ns)
		rest = after
	}

	var sb strings.Builder
	for _, r := range rest {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
	}

	return namespace, strings.Join(strings.Fields(sb.String()), "-")
}

// tokens slug 按 "-" 拆分
func tokens(slug string) []string {
	if slug == "" {
		return nil
	}
	return strings.Split(slug, "-")
}

// significantTokens 长度 > 3 的去重 token
func significantTokens(slug string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range tokens(slug) {
		if len(tok) > 3 && !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// endpointTokenSet 端点名按非字母数字切分后的词干集合
func endpointTokenSet(name string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[stem(tok)] = true
	}
	return set
}

// stem 去掉常见英文词尾：syncing -> sync, roles -> role
func stem(tok string) string {
	for _, suffix := range []string{"ing", "ed", "s"} {
		if strings.HasSuffix(tok, suffix) && len(tok)-len(suffix) >= 3 {
			return strings.TrimSuffix(tok, suffix)
		}
	}
	return tok
}
