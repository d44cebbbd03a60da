package indexer

import (
	"strings"
	"testing"
)

func BenchmarkChunker_Split(b *testing.B) {
	c, _ := NewChunker(500, 50)
	para := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	text := strings.Repeat(para+"\n\n", 50)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Split(text, "bench.txt")
	}
}
