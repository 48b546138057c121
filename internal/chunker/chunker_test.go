package chunker

import (
	"strings"
	"testing"
)

func TestSplitEmptyDocument(t *testing.T) {
	c := New(100, 10, 10)
	if chunks := c.Split("doc-1", ""); len(chunks) != 0 {
		t.Errorf("Split(empty) returned %d chunks, want 0", len(chunks))
	}
}

func TestSplitShortDocument(t *testing.T) {
	c := New(100, 10, 10)
	chunks := c.Split("doc-1", "short text")
	if len(chunks) != 1 {
		t.Fatalf("Split(short) returned %d chunks, want 1", len(chunks))
	}
	got := chunks[0]
	if got.Text != "short text" {
		t.Errorf("chunk text = %q, want full document", got.Text)
	}
	if got.Start != 0 || got.End != len([]rune("short text")) {
		t.Errorf("chunk span = [%d,%d), want full span", got.Start, got.End)
	}
	if got.Ordinal != 0 {
		t.Errorf("chunk ordinal = %d, want 0", got.Ordinal)
	}
}

func TestSplitDeterminism(t *testing.T) {
	c := New(40, 8, 10)
	text := strings.Repeat("The quarterly report shows steady growth. ", 20)

	first := c.Split("doc-1", text)
	second := c.Split("doc-1", text)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSplitCoverage(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
	}{
		{
			name:    "sentences with overlap",
			size:    50,
			overlap: 10,
			text:    strings.Repeat("Revenue grew this quarter. Costs were flat. ", 12),
		},
		{
			name:    "no overlap",
			size:    30,
			overlap: 0,
			text:    strings.Repeat("word soup without much punctuation here ", 10),
		},
		{
			name:    "no whitespace at all",
			size:    16,
			overlap: 4,
			text:    strings.Repeat("x", 100),
		},
		{
			name:    "unicode text",
			size:    20,
			overlap: 5,
			text:    strings.Repeat("营收在第三季度增长了。", 15),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.size, tt.overlap, tt.size/5)
			chunks := c.Split("doc-1", tt.text)
			if len(chunks) == 0 {
				t.Fatal("no chunks produced")
			}

			runes := []rune(tt.text)

			// De-overlapped spans must reconstruct the document exactly.
			var rebuilt []rune
			for i, ch := range chunks {
				span := []rune(ch.Text)
				if len(span) != ch.End-ch.Start {
					t.Fatalf("chunk %d text length %d does not match span [%d,%d)", i, len(span), ch.Start, ch.End)
				}
				if ch.End > len(runes) {
					t.Fatalf("chunk %d end %d past document length %d", i, ch.End, len(runes))
				}
				if i == 0 {
					rebuilt = append(rebuilt, span...)
					continue
				}
				prev := chunks[i-1]
				if ch.Start > prev.End {
					t.Fatalf("gap between chunk %d (end %d) and chunk %d (start %d)", i-1, prev.End, i, ch.Start)
				}
				rebuilt = append(rebuilt, span[prev.End-ch.Start:]...)
			}
			if string(rebuilt) != tt.text {
				t.Error("de-overlapped chunks do not reconstruct the document")
			}

			// Every chunk respects the size bound.
			for i, ch := range chunks {
				if ch.End-ch.Start > tt.size {
					t.Errorf("chunk %d length %d exceeds size %d", i, ch.End-ch.Start, tt.size)
				}
			}
		})
	}
}

func TestSplitOverlapWindow(t *testing.T) {
	c := New(20, 5, 0)
	text := strings.Repeat("abcdefghij", 10) // no boundaries, forces hard cuts
	chunks := c.Split("doc-1", text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		overlap := chunks[i-1].End - chunks[i].Start
		if overlap != 5 {
			t.Errorf("overlap between chunks %d and %d = %d, want 5", i-1, i, overlap)
		}
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	// The hard cutoff at 40 lands mid-word; the sentence break at
	// offset 21 is inside the 25-rune lookback window.
	text := "First sentence ends. Second sentence continues for a while longer."
	c := New(40, 0, 25)
	chunks := c.Split("doc-1", text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, "ends.") && !strings.HasSuffix(chunks[0].Text, "ends. ") {
		t.Errorf("first chunk did not break at sentence boundary: %q", chunks[0].Text)
	}
}

func TestChunkIDDeterministic(t *testing.T) {
	a := ChunkID("doc-1", 2, 140)
	b := ChunkID("doc-1", 2, 140)
	if a != b {
		t.Errorf("ChunkID not deterministic: %q vs %q", a, b)
	}
	if a == ChunkID("doc-2", 2, 140) {
		t.Error("ChunkID collides across documents")
	}
}

func TestScenarioRevenueChunking(t *testing.T) {
	text := "Revenue grew 12% in Q3 driven by cloud sales."
	c := New(20, 5, 4)
	chunks := c.Split("doc-q3", text)
	if len(chunks) < 2 {
		t.Fatalf("expected overlapping chunks, got %d", len(chunks))
	}

	// Chunks collectively cover the full text.
	covered := make([]bool, len([]rune(text)))
	for _, ch := range chunks {
		for i := ch.Start; i < ch.End; i++ {
			covered[i] = true
		}
	}
	for i, ok := range covered {
		if !ok {
			t.Errorf("rune %d not covered by any chunk", i)
		}
	}
}
