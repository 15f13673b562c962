// Package content 从电影的文本/类别字段构建稀疏的 TF-IDF 向量空间，
// 并暴露两两余弦相似度（经 cache 记忆化）。
package content

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Vectorizer 词表参数（对齐离线训练管线的取值）
const (
	maxFeatures = 500  // 词表上限
	minDF       = 2    // 只出现在 1 个文档中的词排除
	maxDFRatio  = 0.95 // 出现在超过 95% 文档中的词排除
)

// Vectorizer 把文档集拟合成稀疏 TF-IDF 向量空间：仅 unigram、统一小写、
// 去重音、去英文停用词；idf 采用平滑形式 ln((1+n)/(1+df))+1，行向量 L2 归一。
// 词表与 idf 一并保留，但未在拟合期出现的新文档不支持二次编码，需要重训。
type Vectorizer struct {
	Vocabulary map[string]int `json:"vocabulary"` // term -> 列下标
	IDF        []float64      `json:"idf"`
}

// stripAccents 去掉重音记号（NFD 分解后删除 Mn 组合符）。
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// tokenize 统一小写、去重音后切出长度 >=2 的字母数字 token，并丢弃停用词。
func tokenize(doc string) []string {
	doc = strings.ToLower(doc)
	if stripped, _, err := transform.String(stripAccents, doc); err == nil {
		doc = stripped
	}
	fields := strings.FieldsFunc(doc, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, tok := range fields {
		if len(tok) < 2 || englishStopWords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Fit 在文档集上拟合词表与 idf，并返回每个文档的 L2 归一 TF-IDF 稀疏向量。
// 过滤后词表为空时返回 (nil, nil)，调用方应将内容索引标记为不可用。
func Fit(docs []string) (*Vectorizer, []map[int]float64) {
	n := len(docs)
	if n == 0 {
		return nil, nil
	}

	tokenized := make([][]string, n)
	df := make(map[string]int)
	tf := make(map[string]int)
	for i, doc := range docs {
		toks := tokenize(doc)
		tokenized[i] = toks
		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			tf[t]++
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	// 词表筛选：df ∈ [minDF, maxDFRatio*n]
	maxDF := int(maxDFRatio * float64(n))
	if maxDF < 1 {
		maxDF = 1
	}
	candidates := make([]string, 0, len(df))
	for term, d := range df {
		if d < minDF || d > maxDF {
			continue
		}
		candidates = append(candidates, term)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// 超出上限时按语料总词频截断，词频相同按字典序，保证确定性
	sort.Slice(candidates, func(i, j int) bool {
		if tf[candidates[i]] != tf[candidates[j]] {
			return tf[candidates[i]] > tf[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})
	if len(candidates) > maxFeatures {
		candidates = candidates[:maxFeatures]
	}
	sort.Strings(candidates)

	v := &Vectorizer{
		Vocabulary: make(map[string]int, len(candidates)),
		IDF:        make([]float64, len(candidates)),
	}
	for col, term := range candidates {
		v.Vocabulary[term] = col
		v.IDF[col] = smoothIDF(n, df[term])
	}

	rows := make([]map[int]float64, n)
	for i, toks := range tokenized {
		rows[i] = v.encode(toks)
	}
	return v, rows
}

// encode 把 token 列表编码为 L2 归一的稀疏 TF-IDF 向量。
func (v *Vectorizer) encode(tokens []string) map[int]float64 {
	vec := make(map[int]float64)
	for _, t := range tokens {
		if col, ok := v.Vocabulary[t]; ok {
			vec[col] += v.IDF[col]
		}
	}
	normalizeL2(vec)
	return vec
}
