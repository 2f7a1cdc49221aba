package sender

import (
	"strings"
	"unicode/utf8"
)

// SplitTextByBytes режет текст на куски не длиннее maxBytes байт.
// Сначала по границам строк, слишком длинная строка режется по символам,
// не разрывая многобайтовые руны. Склейка кусков даёт исходный текст.
func SplitTextByBytes(text string, maxBytes int) []string {
	if text == "" {
		return nil
	}
	if maxBytes <= 0 || len(text) <= maxBytes {
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		if len(line) > maxBytes {
			flush()
			parts := splitRunes(line, maxBytes)
			chunks = append(chunks, parts[:len(parts)-1]...)
			current.WriteString(parts[len(parts)-1])
			continue
		}
		if current.Len()+len(line) > maxBytes {
			flush()
		}
		current.WriteString(line)
	}
	flush()
	return chunks
}

// splitRunes режет строку по границам рун. Всегда возвращает хотя бы один элемент.
func splitRunes(s string, maxBytes int) []string {
	var out []string
	for len(s) > maxBytes {
		cut := maxBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(s)
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	return append(out, s)
}

// paginate делит текст и добавляет маркер страницы, если кусков больше одного.
// Место под маркер резервируется, поэтому итоговое сообщение не длиннее maxBytes.
func paginate(text string, maxBytes int, marker func(i, n int) string) []string {
	chunks := SplitTextByBytes(text, maxBytes)
	if len(chunks) <= 1 {
		return chunks
	}
	for range 4 {
		reserve := len(marker(len(chunks), len(chunks)))
		next := SplitTextByBytes(text, maxBytes-reserve)
		stable := len(next) == len(chunks)
		chunks = next
		if stable {
			break
		}
	}
	out := make([]string, len(chunks))
	for i, chunk := range chunks {
		out[i] = marker(i+1, len(chunks)) + chunk
	}
	return out
}
