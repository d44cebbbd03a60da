package vector

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	ids := []string{"a", "b", "c"}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", results[0].ID, results[1].ID)
	}
	if math.Abs(results[0].Score-1) > 1e-6 {
		t.Errorf("identical vector should score 1, got %f", results[0].Score)
	}
}

func TestMemoryIndex_cosineIgnoresMagnitude(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"long", "aligned"}, [][]float32{{10, 10}, {0.1, 0}})
	results, _ := idx.Search(ctx, []float32{1, 0}, 1)
	if results[0].ID != "aligned" {
		t.Errorf("expected direction to win over magnitude, got %s", results[0].ID)
	}
}

func TestMemoryIndex_Search_edgeCases(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()

	results, err := idx.Search(ctx, []float32{1, 0}, 5)
	if err != nil || len(results) != 0 {
		t.Errorf("empty index: got %v, %v", results, err)
	}

	_ = idx.Add(ctx, []string{"x", "y", "z"}, [][]float32{{0, 1}, {0, 1}, {0, 1}})
	results, _ = idx.Search(ctx, []float32{0, 1}, 10)
	if len(results) != 3 {
		t.Fatalf("k larger than size should return all, got %d", len(results))
	}
	for i, want := range []string{"x", "y", "z"} {
		if results[i].ID != want {
			t.Errorf("ties should keep insertion order: position %d is %s", i, results[i].ID)
		}
	}

	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
	if err := idx.Add(ctx, []string{"w"}, [][]float32{{1, 2, 3}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch on add, got %v", err)
	}
	if idx.Size() != 3 {
		t.Errorf("failed add must not change the index, size %d", idx.Size())
	}
}

func TestMemoryIndex_RemoveReset(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y", "z"}, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	if err := idx.Remove(ctx, []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 || idx.Has("x") || !idx.Has("y", "z") {
		t.Errorf("unexpected contents after remove, size %d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{1, 0}, 1)
	if results[0].ID != "z" {
		t.Errorf("expected z after removing x, got %s", results[0].ID)
	}
	idx.Reset()
	if idx.Size() != 0 {
		t.Errorf("expected empty index after reset, size %d", idx.Size())
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "vectors.bin")
	ctx := context.Background()

	idx, _ := NewMemoryIndex(3)
	_ = idx.Add(ctx, []string{"alpha", "β"}, [][]float32{{1, 2, 3}, {-1, 0.5, 0}})
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _ := NewMemoryIndex(3)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != 2 || !loaded.Has("alpha", "β") {
		t.Fatalf("loaded index has size %d", loaded.Size())
	}
	results, _ := loaded.Search(ctx, []float32{-1, 0.5, 0}, 1)
	if results[0].ID != "β" {
		t.Errorf("expected β, got %s", results[0].ID)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}

	wrongDim, _ := NewMemoryIndex(4)
	if err := wrongDim.Load(path); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
	if err := loaded.Load(filepath.Join(dir, "missing.bin")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestMemoryIndex_Load_truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	idx, _ := NewMemoryIndex(2)
	_ = idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0}})
	_ = idx.Save(path)
	data, _ := os.ReadFile(path)
	if err := os.WriteFile(path, data[:len(data)-3], 0644); err != nil {
		t.Fatal(err)
	}

	other, _ := NewMemoryIndex(2)
	_ = other.Add(context.Background(), []string{"keep"}, [][]float32{{0, 1}})
	if err := other.Load(path); err == nil {
		t.Fatal("expected error for truncated snapshot")
	}
	if !other.Has("keep") || other.Size() != 1 {
		t.Error("failed load must leave the index unchanged")
	}
}

func TestEncodeDecodeVector(t *testing.T) {
	v := []float32{1.5, -2, 0, float32(math.Pi)}
	got := DecodeVector(EncodeVector(v))
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("got %v, want %v", got, v)
		}
	}
}

func TestNewMemoryIndex_invalidDimension(t *testing.T) {
	if _, err := NewMemoryIndex(0); err == nil {
		t.Error("expected error for zero dimension")
	}
}
