package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "  Париж  ", want: "париж"},
		{in: "Ёлка", want: "елка"},
		{in: "Café", want: "cafe"},
		{in: "Пушкин (Александр Сергеевич)", want: "пушкин"},
		{in: "[неточно] Лев   Толстой!", want: "лев толстои"},
		{in: "Чайковский", want: "чаиковскии"},
		{in: "Санкт-Петербург", want: "санкт петербург"},
		{in: "", want: ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "Normalize(%q)", tc.in)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"Ёжик в тумане", "Café (old)", "A/B; c", "  ", "Жюль Верн!!!", "ĄČĘ ŠŲŪŽ"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "Normalize не идемпотентна для %q", in)
	}
}

func TestIsCorrect_Basic(t *testing.T) {
	assert.True(t, IsCorrect("Paris", "Paris", ""))
	assert.True(t, IsCorrect("PARIS", "paris", ""), "регистр не важен")
	assert.True(t, IsCorrect("parís", "Paris", ""), "диакритика не важна")
	assert.False(t, IsCorrect("Parris", "Paris", ""), "нечеткого совпадения нет")
	assert.False(t, IsCorrect("", "Paris", ""), "пустой ответ")
	assert.True(t, IsCorrect("Толстой", "толстой", ""), "й и и сводятся одинаково с обеих сторон")
	assert.True(t, IsCorrect("толстои", "Толстой", ""))
	assert.False(t, IsCorrect("!!!", "Paris", ""), "ответ из одних знаков")
}

func TestIsCorrect_Aliases(t *testing.T) {
	assert.True(t, IsCorrect("London", "Paris", "London; Rome"))
	assert.True(t, IsCorrect("Rome", "Paris", "London; Rome"))
	assert.True(t, IsCorrect("ёж", "Ежик или ёж", ""))
	assert.True(t, IsCorrect("ежик", "Ежик ИЛИ ёж", ""), "разделитель 'или' без учета регистра")
	assert.True(t, IsCorrect("кот", "пёс/кот", ""))
	assert.True(t, IsCorrect("b", "a,\nb", ""))
	assert.False(t, IsCorrect("Paris London", "Paris", "London"), "склейка вариантов не засчитывается")
}

func TestCandidates_SkipsEmptyFragments(t *testing.T) {
	got := Candidates("Paris;; ;", "")
	assert.Len(t, got, 1)
	assert.Contains(t, got, "paris")
}
