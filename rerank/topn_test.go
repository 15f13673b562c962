package rerank

import (
	"context"
	"testing"

	"github.com/flixmate/recommender/core"
)

func TestTopNNode(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		in    int
		want  int
	}{
		{name: "truncates to n", n: 2, in: 5, want: 2},
		{name: "fewer items than n", n: 10, in: 3, want: 3},
		{name: "exactly n", n: 3, in: 3, want: 3},
		{name: "non-positive n keeps all", n: 0, in: 4, want: 4},
		{name: "negative n keeps all", n: -1, in: 4, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]*core.Item, tt.in)
			for i := range items {
				items[i] = core.NewItem(i + 1)
			}
			node := &TopNNode{N: tt.n}
			out, err := node.Process(context.Background(), nil, items)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if len(out) != tt.want {
				t.Errorf("kept %d items, want %d", len(out), tt.want)
			}
			// 截断保持原有顺序
			for i, it := range out {
				if it.ID != i+1 {
					t.Errorf("out[%d].ID = %d, want %d", i, it.ID, i+1)
				}
			}
		})
	}
}
