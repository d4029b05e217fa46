package crawler

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Маркеры JSON внутри RSC-потока страницы
const (
	packMarker    = `"pack":{"id":`
	packPrefix    = `"pack":`
	listingMarker = `"packs":[{`
	listingPrefix = `"packs":`
)

var nextChunkRe = regexp.MustCompile(`(?s)^\s*self\.__next_f\.push\(\[1,"(.*)"\]\)\s*;?\s*$`)

// errMarkerMissing - на странице нет ожидаемых данных
var errMarkerMissing = errors.New("payload marker not found")

// decodeNextPayload собирает строковые чанки self.__next_f.push([1,"..."]) из скриптов страницы
func decodeNextPayload(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		m := nextChunkRe.FindStringSubmatch(s.Text())
		if m == nil {
			return
		}
		var chunk string
		// Битые чанки пропускаются
		if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &chunk); err != nil {
			return
		}
		sb.WriteString(chunk)
	})
	return sb.String(), nil
}

// decodeAfterMarker декодирует первое JSON-значение, начинающееся после prefix у найденного marker
func decodeAfterMarker(payload, marker, prefix string, dest interface{}) error {
	idx := strings.Index(payload, marker)
	if idx < 0 {
		return errMarkerMissing
	}
	dec := json.NewDecoder(strings.NewReader(payload[idx+len(prefix):]))
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("decode json after %s: %w", prefix, err)
	}
	return nil
}

type rawPack struct {
	ID      int64         `json:"id"`
	Title   string        `json:"title"`
	PubDate interface{}   `json:"pubDate"`
	TrueDl  []interface{} `json:"trueDl"`
	Tours   []rawTour     `json:"tours"`
}

type rawTour struct {
	Questions []json.RawMessage `json:"questions"`
}

type rawQuestion struct {
	ID             *int64        `json:"id"`
	Number         int           `json:"number"`
	Text           string        `json:"text"`
	RazdatkaText   string        `json:"razdatkaText"`
	RazdatkaPic    string        `json:"razdatkaPic"`
	Answer         string        `json:"answer"`
	Zachet         string        `json:"zachet"`
	Comment        string        `json:"comment"`
	Source         string        `json:"source"`
	TotalLikes     int           `json:"totalLikes"`
	CorrectAnswers []interface{} `json:"correct_answers"`
	Teams          []interface{} `json:"teams"`
}

type rawListingPack struct {
	ID int64 `json:"id"`
}

// complexity возвращает оценки сложности trueDl[0] и trueDl[1]
func (p *rawPack) complexity() (*float64, *float64) {
	return numberAt(p.TrueDl, 0), numberAt(p.TrueDl, 1)
}

func (p *rawPack) pubDate() string {
	switch v := p.PubDate.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// take возвращает число взявших команд и число команд
func (q *rawQuestion) take() (*int, *int) {
	return intAt(q.CorrectAnswers, 0), intAt(q.Teams, 0)
}

func numberAt(values []interface{}, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	f, ok := values[i].(float64)
	if !ok {
		return nil
	}
	return &f
}

func intAt(values []interface{}, i int) *int {
	f := numberAt(values, i)
	if f == nil || *f != float64(int(*f)) {
		return nil
	}
	n := int(*f)
	return &n
}
