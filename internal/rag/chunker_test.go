package rag

import (
	"strings"
	"testing"
)

func TestChunkerShortTextSingleChunk(t *testing.T) {
	c := NewChunker(1000, 200)
	chunks := c.Split("hello world")
	if len(chunks) != 1 {
		t.Fatalf("chunk count: want=1 got=%d", len(chunks))
	}
	if chunks[0] != "hello world" {
		t.Fatalf("chunk content: want=%q got=%q", "hello world", chunks[0])
	}
}

func TestChunkerEmptyTextNoChunks(t *testing.T) {
	c := NewChunker(1000, 200)
	if chunks := c.Split(""); len(chunks) != 0 {
		t.Fatalf("chunk count: want=0 got=%d", len(chunks))
	}
}

func TestChunkerOverlapWindows(t *testing.T) {
	c := NewChunker(10, 4)
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := c.Split(text)

	// step is 6, so windows start at 0, 6, 12, 18, 24.
	want := []string{"abcdefghij", "ghijklmnop", "mnopqrstuv", "stuvwxyz"}
	if len(chunks) != len(want) {
		t.Fatalf("chunk count: want=%d got=%d (%v)", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d: want=%q got=%q", i, want[i], chunks[i])
		}
	}
}

func TestChunkerConsecutiveChunksShareOverlap(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("0123456789", 50)
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1][len(chunks[i-1])-20:]
		head := chunks[i][:20]
		if prevTail != head {
			t.Fatalf("chunk %d overlap mismatch: tail=%q head=%q", i, prevTail, head)
		}
	}
}

func TestChunkerMultiByteRunesNeverSplit(t *testing.T) {
	c := NewChunker(5, 2)
	text := strings.Repeat("日本語テキスト", 4)
	for i, chunk := range c.Split(text) {
		if strings.ContainsRune(chunk, '�') {
			t.Fatalf("chunk %d contains replacement rune: %q", i, chunk)
		}
	}
}

func TestChunkerGuardsDegenerateOverlap(t *testing.T) {
	// overlap >= size would loop forever without the constructor guard.
	c := NewChunker(10, 10)
	chunks := c.Split(strings.Repeat("x", 40))
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i] == chunks[i-1] && len(chunks[i]) == 10 {
			t.Fatalf("chunks %d and %d identical, window is not advancing", i-1, i)
		}
	}
}

func TestChunkerCoversAllText(t *testing.T) {
	c := NewChunker(10, 4)
	text := "abcdefghijklmnopqrstuvwxyz0123456789"
	chunks := c.Split(text)
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(text, last) {
		t.Fatalf("last chunk %q is not a suffix of the input", last)
	}
}
