package render

import (
	"strings"
	"testing"
)

func TestRenderProducesHTMLAndOutline(t *testing.T) {
	r := New(Options{})
	body := []byte("# Hello\n\nWelcome to the *blog*.\n\n## Setup\n\nInstall it.\n\n```go\nfmt.Println(\"skipped\")\n```\n")

	result, err := r.Render(body)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(result.HTML, `<h1 id="hello">Hello</h1>`) {
		t.Fatalf("unexpected html %s", result.HTML)
	}
	if !strings.Contains(result.HTML, "<em>blog</em>") {
		t.Fatalf("expected emphasis in html %s", result.HTML)
	}
	if len(result.Outline) != 2 {
		t.Fatalf("expected two headings, got %+v", result.Outline)
	}
	if result.Outline[0] != (Heading{Level: 1, Text: "Hello", ID: "hello"}) {
		t.Fatalf("unexpected first heading %+v", result.Outline[0])
	}
	if result.Outline[1].Level != 2 || result.Outline[1].ID != "setup" {
		t.Fatalf("unexpected second heading %+v", result.Outline[1])
	}
	if strings.Contains(result.PlainText, "skipped") {
		t.Fatalf("code blocks must not reach plain text: %q", result.PlainText)
	}
	if result.PlainText != "Hello Welcome to the blog. Setup Install it." {
		t.Fatalf("unexpected plain text %q", result.PlainText)
	}
	if result.WordCount != 8 || result.ReadingMinutes != 1 {
		t.Fatalf("unexpected metrics words=%d minutes=%d", result.WordCount, result.ReadingMinutes)
	}
}

func TestReadingMinutes(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 200: 1, 201: 2, 1000: 5}
	for words, want := range cases {
		if got := readingMinutes(words); got != want {
			t.Fatalf("readingMinutes(%d) = %d, want %d", words, got, want)
		}
	}
}

func TestRenderLongBody(t *testing.T) {
	body := strings.Repeat("word ", 450)
	result, err := New(Options{}).Render([]byte(body))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if result.WordCount != 450 || result.ReadingMinutes != 3 {
		t.Fatalf("unexpected metrics words=%d minutes=%d", result.WordCount, result.ReadingMinutes)
	}
}

func TestRenderRawHTMLRequiresUnsafe(t *testing.T) {
	body := []byte("<div class=\"note\">hi</div>\n")
	safe, err := New(Options{}).Render(body)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(safe.HTML, `<div class="note">`) {
		t.Fatalf("expected raw html to be omitted, got %s", safe.HTML)
	}
	unsafe, err := New(Options{Unsafe: true}).Render(body)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(unsafe.HTML, `<div class="note">`) {
		t.Fatalf("expected raw html, got %s", unsafe.HTML)
	}
}
