package content

import (
	"math"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "lowercases and splits punctuation", in: "Space Wars: Part II", want: []string{"space", "wars", "part", "ii"}},
		{name: "drops single-char tokens", in: "a b cd", want: []string{"cd"}},
		{name: "drops stop words", in: "the story of an empire", want: []string{"story", "empire"}},
		{name: "strips accents", in: "Amélie à Montréal", want: []string{"amelie", "montreal"}},
		{name: "keeps digits", in: "blade runner 2049", want: []string{"blade", "runner", "2049"}},
		{name: "empty input", in: "", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFitVocabularyRules(t *testing.T) {
	docs := []string{
		"space battle fleet",
		"space battle empire",
		"space romance empire",
	}
	v, rows := Fit(docs)
	if v == nil {
		t.Fatal("Fit returned nil vectorizer")
	}

	// "fleet" 与 "romance" 只出现在 1 个文档中，被 min-df 排除；
	// "space" 出现在全部文档中，超过 max-df 上限，同样排除
	for _, excluded := range []string{"fleet", "romance", "space"} {
		if _, ok := v.Vocabulary[excluded]; ok {
			t.Errorf("term %q must be excluded by the df bounds", excluded)
		}
	}
	for _, kept := range []string{"battle", "empire"} {
		if _, ok := v.Vocabulary[kept]; !ok {
			t.Errorf("term %q must be in vocabulary", kept)
		}
	}
	if len(rows) != len(docs) {
		t.Fatalf("rows = %d, want %d", len(rows), len(docs))
	}

	// 行向量 L2 归一
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		sum := 0.0
		for _, w := range row {
			sum += w * w
		}
		if math.Abs(math.Sqrt(sum)-1) > 1e-9 {
			t.Errorf("row %d norm = %f, want 1", i, math.Sqrt(sum))
		}
	}
}

func TestFitEmptyVocabulary(t *testing.T) {
	tests := []struct {
		name string
		docs []string
	}{
		{name: "no documents", docs: nil},
		{name: "all terms too rare", docs: []string{"alpha", "beta", "gamma"}},
		{name: "only stop words", docs: []string{"the and of", "the and of"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, rows := Fit(tt.docs)
			if v != nil || rows != nil {
				t.Errorf("Fit(%v) = (%v, %v), want (nil, nil)", tt.docs, v, rows)
			}
		})
	}
}

func TestSmoothIDF(t *testing.T) {
	// ln((1+n)/(1+df)) + 1
	got := smoothIDF(3, 2)
	want := math.Log(4.0/3.0) + 1
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("smoothIDF(3,2) = %f, want %f", got, want)
	}
	// 出现在所有文档中的词 idf = 1
	if got := smoothIDF(5, 5); math.Abs(got-1) > 1e-12 {
		t.Errorf("smoothIDF(5,5) = %f, want 1", got)
	}
}
