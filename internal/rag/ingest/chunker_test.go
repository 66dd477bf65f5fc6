package ingest

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"
)

func sampleTexts() map[string]string {
	para := "Personal loans have fixed rates. The APR depends on credit history and income. " +
		"Autopay lowers the rate by a quarter point.\nThere are no origination fees."
	return map[string]string{
		"paragraphs": strings.Repeat(para+"\n\n", 8),
		"sentences":  strings.Repeat("The savings account pays interest monthly. ", 30),
		"words":      strings.Repeat("balance ", 120),
		"no breaks":  strings.Repeat("x", 1234),
		"unicode":    strings.Repeat("Zinsen für Sparkonten €. ", 40),
	}
}

func TestNewSplitter_Validation(t *testing.T) {
	tests := []struct {
		size, overlap int
		wantErr       bool
	}{
		{300, 50, false},
		{300, 0, false},
		{300, 300, true},
		{300, -1, true},
		{0, 0, true},
	}
	for _, tt := range tests {
		_, err := NewSplitter(tt.size, tt.overlap)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewSplitter(%d, %d) error = %v, wantErr %v", tt.size, tt.overlap, err, tt.wantErr)
		}
	}
}

func TestSplitText_Invariants(t *testing.T) {
	configs := []struct{ size, overlap int }{
		{300, 50},
		{100, 10},
		{64, 0},
		{40, 39},
	}

	for name, text := range sampleTexts() {
		for _, c := range configs {
			s, err := NewSplitter(c.size, c.overlap)
			if err != nil {
				t.Fatal(err)
			}
			chunks := s.SplitText(text)
			if len(chunks) == 0 {
				t.Fatalf("%s: no chunks", name)
			}

			rebuilt := chunks[0]
			for i, chunk := range chunks {
				if n := utf8.RuneCountInString(chunk); n > c.size {
					t.Errorf("%s size=%d: chunk %d has %d runes", name, c.size, i, n)
				}
				if i == 0 {
					continue
				}
				prev := []rune(chunks[i-1])
				cur := []rune(chunk)
				if len(prev) < c.overlap || len(cur) < c.overlap {
					t.Fatalf("%s: chunk %d shorter than overlap", name, i)
				}
				tail := string(prev[len(prev)-c.overlap:])
				if !strings.HasPrefix(chunk, tail) {
					t.Errorf("%s size=%d overlap=%d: chunk %d does not start with the previous tail %q", name, c.size, c.overlap, i, tail)
				}
				rebuilt += string(cur[c.overlap:])
			}

			if rebuilt != text {
				t.Errorf("%s size=%d: chunks do not cover the text exactly", name, c.size)
			}
		}
	}
}

func TestSplitText_Deterministic(t *testing.T) {
	s, _ := NewSplitter(300, 50)
	for name, text := range sampleTexts() {
		first := s.SplitText(text)
		second := s.SplitText(text)
		if !slices.Equal(first, second) {
			t.Errorf("%s: chunking is not deterministic", name)
		}
	}
}

func TestSplitText_SmallAndEmpty(t *testing.T) {
	s, _ := NewSplitter(300, 50)

	if got := s.SplitText("   \n\n  "); got != nil {
		t.Errorf("whitespace text produced %d chunks", len(got))
	}

	short := "Checking accounts have no monthly fee."
	got := s.SplitText(short)
	if len(got) != 1 || got[0] != short {
		t.Errorf("short text = %q, want it unchanged", got)
	}
}

func TestSplitText_PrefersCoarseBoundaries(t *testing.T) {
	s, _ := NewSplitter(300, 50)

	para1 := strings.Repeat("a", 199) + "."
	para2 := strings.Repeat("b", 200)
	chunks := s.SplitText(para1 + "\n\n" + para2)
	if chunks[0] != para1 {
		t.Errorf("first chunk should end at the paragraph break, got %d runes", len(chunks[0]))
	}

	s, _ = NewSplitter(100, 10)
	chunks = s.SplitText(strings.Repeat("The rate is fixed. ", 20))
	if !strings.HasSuffix(chunks[0], "fixed.") {
		t.Errorf("first chunk should end on a sentence, got %q", chunks[0])
	}
}

func TestSplitText_HardCut(t *testing.T) {
	s, _ := NewSplitter(300, 50)
	chunks := s.SplitText(strings.Repeat("x", 700))

	wantLens := []int{300, 300, 200}
	if len(chunks) != len(wantLens) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(wantLens))
	}
	for i, c := range chunks {
		if len(c) != wantLens[i] {
			t.Errorf("chunk %d has length %d, want %d", i, len(c), wantLens[i])
		}
	}
}
