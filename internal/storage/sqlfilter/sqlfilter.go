// sqlfilter строит WHERE-условие поиска статей для SQL-бэкендов.
package sqlfilter

import (
	"strconv"
	"strings"
	"time"

	"github.com/ewangclarkson/news-aggregator-app/internal/storage"
)

// Dialect различия SQL-диалектов, важные для фильтра.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// FoldFunc имя SQL-функции SQLite, приводящей строку к нижнему регистру по правилам Unicode.
// Встроенная lower() в SQLite понимает только ASCII. Функцию регистрирует пакет storage/sqlite.
const FoldFunc = "unicode_lower"

// TimeLayout формат хранения времени в SQLite. Строки этого формата
// сравниваются лексикографически в том же порядке, что и время.
const TimeLayout = "2006-01-02T15:04:05Z"

// Placeholder возвращает n-й (с 1) плейсхолдер аргумента.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// TimeArg приводит время к представлению, в котором оно хранится.
func (d Dialect) TimeArg(t time.Time) any {
	t = t.UTC()
	if d == SQLite {
		return t.Format(TimeLayout)
	}
	return t
}

// Build возвращает условие вида " WHERE ..." (или пустую строку) и его аргументы.
func Build(d Dialect, c storage.Criteria) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	next := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	if kw := strings.TrimSpace(c.Keyword); kw != "" {
		pattern := "%" + EscapeLike(kw) + "%"
		if d == Postgres {
			clauses = append(clauses, "title ILIKE "+next(pattern)+` ESCAPE '\'`)
		} else {
			clauses = append(clauses, FoldFunc+"(title) LIKE "+next(strings.ToLower(pattern))+` ESCAPE '\'`)
		}
	}

	in := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		if d == Postgres {
			clauses = append(clauses, column+" = ANY("+next(values)+")")
			return
		}
		ph := make([]string, len(values))
		for i, v := range values {
			ph[i] = next(v)
		}
		clauses = append(clauses, column+" IN ("+strings.Join(ph, ", ")+")")
	}
	in("category", c.Categories)
	in("source", c.Sources)
	in("author", c.Authors)

	if r := c.Published; r != nil {
		clauses = append(clauses, "published_at BETWEEN "+next(d.TimeArg(r.From))+" AND "+next(d.TimeArg(r.To)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// EscapeLike экранирует спецсимволы LIKE, чтобы ключевое слово искалось буквально.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
