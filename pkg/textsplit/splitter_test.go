package textsplit

import (
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		chunkSize int
		overlap   int
		wantCount int
	}{
		{"short text single chunk", "hello world", 100, 10, 1},
		{"empty text", "   ", 100, 10, 0},
		{"exact boundary", strings.Repeat("a", 100), 100, 10, 1},
		{"two chunks with overlap", strings.Repeat("a", 150), 100, 20, 2},
		{"overlap larger than size falls back", strings.Repeat("b", 250), 100, 100, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.chunkSize, tt.overlap)
			if len(got) != tt.wantCount {
				t.Errorf("Split() returned %d chunks, want %d", len(got), tt.wantCount)
			}
			for i, c := range got {
				if len([]rune(c)) > tt.chunkSize {
					t.Errorf("chunk %d exceeds chunkSize: %d", i, len([]rune(c)))
				}
			}
		})
	}
}

func TestSplitPreservesOverlapContext(t *testing.T) {
	text := strings.Repeat("x", 90) + strings.Repeat("y", 90)
	chunks := Split(text, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	// The tail of chunk 0 must reappear at the head of chunk 1.
	tail := chunks[0][len(chunks[0])-20:]
	if !strings.HasPrefix(chunks[1], tail) {
		t.Errorf("overlap lost between chunks: tail %q, next head %q", tail, chunks[1][:20])
	}
}

func TestSplitUnicodeSafe(t *testing.T) {
	text := strings.Repeat("日本語テキスト分割", 40)
	chunks := Split(text, 64, 8)
	for i, c := range chunks {
		if strings.ContainsRune(c, '�') {
			t.Errorf("chunk %d contains a broken rune", i)
		}
	}
	joined := strings.Join(chunks, "")
	if !strings.Contains(joined, "日本語") {
		t.Error("content lost while splitting")
	}
}
