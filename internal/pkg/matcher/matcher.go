// Package matcher нормализует ответы игроков и сверяет их с ответом и зачетом вопроса.
package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	splitRe   = regexp.MustCompile(`(?i)[\n;,/]|\s+или\s+`)
	bracketRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
)

// Normalize приводит текст к канонической форме: без диакритики, ё→е, нижний регистр,
// без скобочных пояснений и знаков препинания, с одиночными пробелами.
func Normalize(value string) string {
	value = stripMarks(norm.NFD.String(value))
	value = strings.NewReplacer("ё", "е", "Ё", "Е").Replace(value)
	value = strings.TrimSpace(strings.ToLower(value))
	value = bracketRe.ReplaceAllString(value, " ")
	value = strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, value)
	return strings.Join(strings.Fields(value), " ")
}

// IsCorrect сверяет ответ игрока с ответом и зачетом. Только точное совпадение после нормализации.
func IsCorrect(userText, answer, zachet string) bool {
	user := Normalize(userText)
	if user == "" {
		return false
	}
	_, ok := Candidates(answer, zachet)[user]
	return ok
}

// Candidates возвращает множество принимаемых форм ответа
func Candidates(values ...string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, value := range values {
		if value == "" {
			continue
		}
		for _, part := range splitRe.Split(value, -1) {
			if n := Normalize(part); n != "" {
				out[n] = struct{}{}
			}
		}
	}
	return out
}

func stripMarks(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
