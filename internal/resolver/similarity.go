package resolver

import (
	"math"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// NameSimilarity 计算两个 slug 的相似度 0-1
func NameSimilarity(name1, name2 string) float64 {
	n1 := strings.ToLower(name1)
	n2 := strings.ToLower(name2)

	// 完全匹配
	if n1 == n2 {
		return 1.0
	}

	// 包含关系
	if n1 != "" && n2 != "" && (strings.Contains(n1, n2) || strings.Contains(n2, n1)) {
		return 0.8
	}

	// Levenshtein 距离
	maxLen := math.Max(float64(len(n1)), float64(len(n2)))
	if maxLen == 0 {
		return 0
	}

	distance := levenshtein.DistanceForStrings([]rune(n1), []rune(n2), levenshtein.DefaultOptions)
	similarity := 1.0 - float64(distance)/maxLen

	if similarity > 0.3 {
		return similarity
	}

	return 0
}

// tokenOverlap slug 中出现在端点 token 集合里的 token 数
func tokenOverlap(tokens []string, endpointTokens map[string]bool) int {
	count := 0
	for _, tok := range tokens {
		if endpointTokens[stem(tok)] {
			count++
		}
	}
	return count
}
