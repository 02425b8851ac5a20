package pagination

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

func paragraphs(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "<p>paragraph %d</p>\n", i)
	}
	return b.String()
}

func TestText(t *testing.T) {
	t.Run("ten thousand words", func(t *testing.T) {
		text := words(10000)

		first := Text(text, 1, 500)
		if first.TotalPages != 20 {
			t.Fatalf("TotalPages = %d, want 20", first.TotalPages)
		}
		if got := len(strings.Fields(first.Content)); got != 500 {
			t.Errorf("page 1 has %d words, want 500", got)
		}
		if !first.HasNextPage || first.HasPrevPage {
			t.Errorf("page 1 flags = next:%v prev:%v", first.HasNextPage, first.HasPrevPage)
		}

		last := Text(text, 20, 500)
		if last.HasNextPage || !last.HasPrevPage {
			t.Errorf("page 20 flags = next:%v prev:%v", last.HasNextPage, last.HasPrevPage)
		}
		if !strings.HasSuffix(last.Content, "w9999") {
			t.Errorf("last page should end with final word, got %q", last.Content[len(last.Content)-10:])
		}
	})

	t.Run("total pages formula", func(t *testing.T) {
		for _, tc := range []struct{ words, wpp, want int }{
			{0, 10, 0},
			{1, 10, 1},
			{10, 10, 1},
			{11, 10, 2},
			{999, 100, 10},
		} {
			got := Text(words(tc.words), 1, tc.wpp).TotalPages
			if got != tc.want {
				t.Errorf("words=%d wpp=%d: TotalPages = %d, want %d", tc.words, tc.wpp, got, tc.want)
			}
		}
	})

	t.Run("pages reconstruct the word sequence", func(t *testing.T) {
		text := "  alpha\tbeta\n\ngamma   delta epsilon zeta eta  "
		var got []string
		total := Text(text, 1, 3).TotalPages
		for p := 1; p <= total; p++ {
			got = append(got, strings.Fields(Text(text, p, 3).Content)...)
		}
		if strings.Join(got, " ") != strings.Join(strings.Fields(text), " ") {
			t.Errorf("reconstructed %q", got)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		text := words(777)
		a := Text(text, 3, 100)
		b := Text(text, 3, 100)
		if a != b {
			t.Errorf("repeated calls differ: %+v vs %+v", a, b)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		p := Text(words(10), 5, 5)
		if p.Content != "" {
			t.Errorf("Content = %q, want empty", p.Content)
		}
		if p.TotalPages != 2 || p.HasNextPage {
			t.Errorf("unexpected page %+v", p)
		}
	})

	t.Run("huge page numbers", func(t *testing.T) {
		p := Text("a b c d e f", math.MaxInt, 2)
		if p.Content != "" || p.TotalPages != 3 || p.HasNextPage || !p.HasPrevPage {
			t.Errorf("unexpected page %+v", p)
		}
		p = Text("a b c d e f", math.MaxInt, math.MaxInt)
		if p.Content != "" || p.TotalPages != 1 {
			t.Errorf("unexpected page %+v", p)
		}
		p = Text("a b c d e f", 1, math.MaxInt)
		if p.Content != "a b c d e f" || p.TotalPages != 1 {
			t.Errorf("unexpected page %+v", p)
		}
		if h := HTML(paragraphs(5), math.MaxInt, 50); h.Content != "" || h.TotalPages != 5 {
			t.Errorf("unexpected html page %+v", h)
		}
	})

	t.Run("empty content and clamped page", func(t *testing.T) {
		p := Text("", 0, 500)
		if p.TotalPages != 0 || p.CurrentPage != 1 || p.Content != "" {
			t.Errorf("unexpected page %+v", p)
		}
	})

	t.Run("default words per page", func(t *testing.T) {
		if got := Text(words(1000), 1, 0).TotalPages; got != 2 {
			t.Errorf("TotalPages = %d, want 2", got)
		}
	})
}

func TestParagraphs(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
	}{
		{"empty", "", 0},
		{"single", "<p>one</p>", 1},
		{"paragraph seams", "<p>a</p><p>b</p>\n<p class=\"x\">c</p>", 3},
		{"div seams", "<div>a</div> <div id=1>b</div>", 2},
		{"list seams", "<ul><li>a</li><li>b</li><li>c</li></ul>", 3},
		{"case insensitive", "<P>a</P><P>b</P>", 2},
		{"no false split on pre", "<p>a</p><pre>b</pre>", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(Paragraphs(tt.html)); got != tt.want {
				t.Errorf("len(Paragraphs) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHTML(t *testing.T) {
	t.Run("paragraphs per page", func(t *testing.T) {
		for _, tc := range []struct{ wpp, want int }{
			{0, 10}, {10, 1}, {49, 1}, {50, 1}, {100, 2}, {500, 10},
		} {
			if got := ParagraphsPerPage(tc.wpp); got != tc.want {
				t.Errorf("ParagraphsPerPage(%d) = %d, want %d", tc.wpp, got, tc.want)
			}
		}
	})

	t.Run("pages are wrapped and contiguous", func(t *testing.T) {
		html := paragraphs(25)
		p1 := HTML(html, 1, 500)
		if p1.TotalPages != 3 {
			t.Fatalf("TotalPages = %d, want 3", p1.TotalPages)
		}
		if !strings.HasPrefix(p1.Content, "<p>paragraph 0") {
			t.Errorf("page 1 starts with %q", p1.Content[:20])
		}
		if !strings.Contains(p1.Content, "paragraph 9") || strings.Contains(p1.Content, "paragraph 10<") {
			t.Errorf("page 1 has wrong paragraphs: %q", p1.Content)
		}
		p3 := HTML(html, 3, 500)
		if !strings.Contains(p3.Content, "paragraph 24") || p3.HasNextPage {
			t.Errorf("page 3 = %+v", p3)
		}
	})

	t.Run("wraps bare fragments", func(t *testing.T) {
		p := HTML("<p>a</p><p>b</p><p>c", 2, 50)
		if p.Content != "<p>b</p>" {
			t.Errorf("Content = %q, want <p>b</p>", p.Content)
		}
	})

	t.Run("matches HTMLPages", func(t *testing.T) {
		html := paragraphs(40)
		for _, wpp := range []int{50, 120, 500, 1000} {
			pages := HTMLPages(html, wpp)
			for i, content := range pages {
				if got := HTML(html, i+1, wpp).Content; got != content {
					t.Errorf("wpp=%d page=%d differs", wpp, i+1)
				}
			}
		}
	})

	t.Run("empty", func(t *testing.T) {
		p := HTML("   ", 1, 500)
		if p.TotalPages != 0 || p.Content != "" {
			t.Errorf("unexpected page %+v", p)
		}
	})
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("HTML") != FormatHTML {
		t.Error("expected html")
	}
	if ParseFormat("") != FormatText || ParseFormat("pdf") != FormatText {
		t.Error("expected text fallback")
	}
}
