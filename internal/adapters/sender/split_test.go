package sender

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitTextByBytesRoundTrip(t *testing.T) {
	var builder strings.Builder
	builder.WriteString(strings.Repeat("a", 3000))
	builder.WriteString("\n\n")
	builder.WriteString(strings.Repeat("中", 1500))
	builder.WriteString("\n")
	builder.WriteString(strings.Repeat("c", 500))

	text := builder.String()
	for _, limit := range []int{100, 1000, 3800, 9000} {
		parts := SplitTextByBytes(text, limit)
		if got := strings.Join(parts, ""); got != text {
			t.Fatalf("limit %d: concatenation differs from input", limit)
		}
		for i, part := range parts {
			if len(part) > limit {
				t.Fatalf("limit %d: part %d exceeds limit: %d", limit, i, len(part))
			}
			if !utf8.ValidString(part) {
				t.Fatalf("limit %d: part %d splits a rune", limit, i)
			}
		}
	}
}

func TestSplitTextByBytesPrefersLineBoundaries(t *testing.T) {
	text := strings.Repeat("a", 30) + "\n" + strings.Repeat("b", 30) + "\n" + strings.Repeat("c", 30)
	parts := SplitTextByBytes(text, 64)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %q", len(parts), parts)
	}
	if parts[0] != strings.Repeat("a", 30)+"\n"+strings.Repeat("b", 30)+"\n" {
		t.Fatalf("unexpected first part: %q", parts[0])
	}
	if parts[1] != strings.Repeat("c", 30) {
		t.Fatalf("unexpected second part: %q", parts[1])
	}
}

func TestSplitTextByBytesHardSplitsMultibyte(t *testing.T) {
	text := strings.Repeat("中", 10) // 30 bytes
	parts := SplitTextByBytes(text, 8)
	if len(parts) != 5 {
		t.Fatalf("expected 5 parts, got %d", len(parts))
	}
	for i, part := range parts {
		if part != "中中" {
			t.Fatalf("part %d = %q", i, part)
		}
	}
}

func TestSplitTextByBytesShortAndEmpty(t *testing.T) {
	if parts := SplitTextByBytes("hello", 100); len(parts) != 1 || parts[0] != "hello" {
		t.Fatalf("unexpected parts: %q", parts)
	}
	if parts := SplitTextByBytes("", 100); len(parts) != 0 {
		t.Fatalf("expected no parts for empty input, got %d", len(parts))
	}
}

func TestPaginateReservesMarker(t *testing.T) {
	text := strings.Repeat(strings.Repeat("x", 40)+"\n", 20)
	parts := paginate(text, 100, wecomMarker)
	if len(parts) < 2 {
		t.Fatalf("expected several parts, got %d", len(parts))
	}
	var body strings.Builder
	for i, part := range parts {
		if len(part) > 100 {
			t.Fatalf("part %d exceeds limit: %d", i, len(part))
		}
		marker := wecomMarker(i+1, len(parts))
		if !strings.HasPrefix(part, marker) {
			t.Fatalf("part %d has no marker: %q", i, part)
		}
		body.WriteString(strings.TrimPrefix(part, marker))
	}
	if body.String() != text {
		t.Fatalf("payload bodies do not reassemble the text")
	}

	single := paginate("short", 100, wecomMarker)
	if len(single) != 1 || single[0] != "short" {
		t.Fatalf("single chunk must not carry a marker: %q", single)
	}
}
