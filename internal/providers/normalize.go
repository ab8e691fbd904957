package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ewangclarkson/news-aggregator-app/internal/models"
)

// Форматы дат, которые встречаются у провайдеров.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime приводит дату провайдера к UTC с точностью до секунды.
// Пустое или нераспознанное значение даёт nil.
func parseTime(raw *string) *time.Time {
	s := optional(raw)
	if s == nil {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			t = t.UTC().Truncate(time.Second)
			return &t
		}
	}
	return nil
}

// optional считает пустую строку отсутствующим значением.
func optional(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	v := *p
	return &v
}

func category(p *string) string {
	if c := optional(p); c != nil {
		return *c
	}
	return models.DefaultCategory
}

// NewsAPI (top headlines).

type newsAPIResponse struct {
	Status   string            `json:"status"`
	Message  string            `json:"message"`
	Articles *[]newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	Category    *string `json:"category"`
	Author      *string `json:"author"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	URLToImage  *string `json:"urlToImage"`
	PublishedAt *string `json:"publishedAt"`
}

// NormalizeNewsAPI разбирает ответ NewsAPI. Статьи без заголовка пропускаются.
func NormalizeNewsAPI(payload []byte) ([]models.Article, error) {
	var resp newsAPIResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "error" {
		return nil, fmt.Errorf("provider error: %s", resp.Message)
	}
	if resp.Articles == nil {
		return nil, errors.New(`payload has no "articles"`)
	}

	out := make([]models.Article, 0, len(*resp.Articles))
	for _, it := range *resp.Articles {
		title := optional(it.Title)
		if title == nil {
			continue
		}
		out = append(out, models.Article{
			Title:       *title,
			Content:     optional(it.Content),
			Category:    category(it.Category),
			Source:      models.SourceNewsAPI,
			Author:      optional(it.Author),
			Description: optional(it.Description),
			Link:        optional(it.URL),
			Image:       optional(it.URLToImage),
			PublishedAt: parseTime(it.PublishedAt),
		})
	}
	return out, nil
}

// Guardian (content search).

type guardianResponse struct {
	Response *struct {
		Status  string            `json:"status"`
		Message string            `json:"message"`
		Results *[]guardianResult `json:"results"`
	} `json:"response"`
}

type guardianResult struct {
	WebTitle           *string `json:"webTitle"`
	SectionName        *string `json:"sectionName"`
	WebURL             *string `json:"webUrl"`
	WebPublicationDate *string `json:"webPublicationDate"`
	Fields             *struct {
		Body      *string `json:"body"`
		Byline    *string `json:"byline"`
		TrailText *string `json:"trailText"`
		Thumbnail *string `json:"thumbnail"`
	} `json:"fields"`
}

// NormalizeGuardian разбирает ответ Guardian content API.
func NormalizeGuardian(payload []byte) ([]models.Article, error) {
	var resp guardianResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}
	if resp.Response == nil {
		return nil, errors.New(`payload has no "response"`)
	}
	if resp.Response.Status == "error" {
		return nil, fmt.Errorf("provider error: %s", resp.Response.Message)
	}
	if resp.Response.Results == nil {
		return nil, errors.New(`payload has no "response.results"`)
	}

	out := make([]models.Article, 0, len(*resp.Response.Results))
	for _, it := range *resp.Response.Results {
		title := optional(it.WebTitle)
		if title == nil {
			continue
		}
		a := models.Article{
			Title:       *title,
			Category:    category(it.SectionName),
			Source:      models.SourceGuardian,
			Link:        optional(it.WebURL),
			PublishedAt: parseTime(it.WebPublicationDate),
		}
		if f := it.Fields; f != nil {
			a.Content = optional(f.Body)
			a.Author = optional(f.Byline)
			a.Description = optional(f.TrailText)
			a.Image = optional(f.Thumbnail)
		}
		out = append(out, a)
	}
	return out, nil
}

// New York Times (article search).

type nytEnvelope struct {
	Status   string `json:"status"`
	Response *struct {
		Docs []json.RawMessage `json:"docs"`
	} `json:"response"`
}

type nytDoc struct {
	Headline *struct {
		Main *string `json:"main"`
	} `json:"headline"`
	LeadParagraph *string         `json:"lead_paragraph"`
	SectionName   *string         `json:"section_name"`
	Byline        json.RawMessage `json:"byline"`
	Abstract      *string         `json:"abstract"`
	WebURL        *string         `json:"web_url"`
	Multimedia    json.RawMessage `json:"multimedia"`
	PubDate       *string         `json:"pub_date"`
}

// DecodeNYTDocs извлекает response.docs. Отсутствие списка означает ноль статей.
func DecodeNYTDocs(payload []byte) ([]json.RawMessage, error) {
	var env nytEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}
	if env.Response == nil || env.Response.Docs == nil {
		return []json.RawMessage{}, nil
	}
	return env.Response.Docs, nil
}

// NormalizeNYTDoc переводит один документ NYT в статью.
// ok=false, если у документа нет заголовка.
func NormalizeNYTDoc(raw json.RawMessage) (models.Article, bool, error) {
	var doc nytDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.Article{}, false, err
	}

	var title *string
	if doc.Headline != nil {
		title = optional(doc.Headline.Main)
	}
	if title == nil {
		return models.Article{}, false, nil
	}

	return models.Article{
		Title:       *title,
		Content:     optional(doc.LeadParagraph),
		Category:    category(doc.SectionName),
		Source:      models.SourceNYT,
		Author:      nytAuthor(doc.Byline),
		Description: optional(doc.Abstract),
		Link:        optional(doc.WebURL),
		Image:       nytImage(doc.Multimedia),
		PublishedAt: parseTime(doc.PubDate),
	}, true, nil
}

// UnknownAuthor подставляется, если у первой персоны в byline пустое имя.
const UnknownAuthor = "Unknown Author"

// nytAuthor: массив byline.original склеивается через ", " (пустой массив даёт nil);
// иначе берётся "firstname lastname" первой персоны; иначе nil.
func nytAuthor(byline json.RawMessage) *string {
	var b struct {
		Original json.RawMessage `json:"original"`
		Person   json.RawMessage `json:"person"`
	}
	if len(byline) == 0 || json.Unmarshal(byline, &b) != nil {
		return nil
	}

	var names []any
	if json.Unmarshal(b.Original, &names) == nil && names != nil {
		if len(names) == 0 {
			return nil
		}
		parts := make([]string, 0, len(names))
		for _, n := range names {
			if s, ok := n.(string); ok {
				parts = append(parts, s)
			} else if n != nil {
				parts = append(parts, fmt.Sprint(n))
			}
		}
		joined := strings.Join(parts, ", ")
		return &joined
	}

	var persons []struct {
		Firstname *string `json:"firstname"`
		Lastname  *string `json:"lastname"`
	}
	if json.Unmarshal(b.Person, &persons) == nil && len(persons) > 0 {
		p := persons[0]
		name := strings.TrimSpace(deref(p.Firstname) + " " + deref(p.Lastname))
		if name == "" {
			name = UnknownAuthor
		}
		return &name
	}
	return nil
}

// nytImage возвращает url первого элемента multimedia, если это непустой массив.
func nytImage(multimedia json.RawMessage) *string {
	var items []struct {
		URL *string `json:"url"`
	}
	if len(multimedia) == 0 || json.Unmarshal(multimedia, &items) != nil || len(items) == 0 {
		return nil
	}
	return optional(items[0].URL)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
