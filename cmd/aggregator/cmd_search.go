package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/ewangclarkson/news-aggregator-app/internal/app"
	"github.com/ewangclarkson/news-aggregator-app/internal/models"
)

const titleWidth = 60

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [keyword]",
		Short: "Search stored articles",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := queryFromFlags(cmd, args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				page, err := a.Search.Search(ctx, q)
				if err != nil {
					return err
				}
				writeOutput(cmd, page, func() { printPage(cmd.OutOrStdout(), page) })
				return nil
			})
		},
	}
	cmd.Flags().StringSlice("category", nil, "Categories to include")
	cmd.Flags().StringSlice("source", nil, "Sources to include (NEWS_ORG, GUARDIAN_NEWS, NEW_YORK_TIME_NEWS)")
	cmd.Flags().StringSlice("author", nil, "Authors to include")
	cmd.Flags().String("from", "", "Start date, YYYY-MM-DD (used only together with --to)")
	cmd.Flags().String("to", "", "End date, YYYY-MM-DD (used only together with --from)")
	cmd.Flags().IntP("page", "p", 1, "Page number, 1-based")
	return cmd
}

func queryFromFlags(cmd *cobra.Command, args []string) (models.SearchQuery, error) {
	var q models.SearchQuery
	if len(args) == 1 {
		q.Keyword = args[0]
	}
	q.Categories, _ = cmd.Flags().GetStringSlice("category")
	q.Sources, _ = cmd.Flags().GetStringSlice("source")
	q.Authors, _ = cmd.Flags().GetStringSlice("author")
	q.Page, _ = cmd.Flags().GetInt("page")

	for name, dst := range map[string]**time.Time{"from": &q.StartDate, "to": &q.EndDate} {
		raw, _ := cmd.Flags().GetString(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return q, fmt.Errorf("--%s: expected YYYY-MM-DD: %w", name, err)
		}
		if name == "to" {
			// Конец дня включительно.
			t = t.Add(24*time.Hour - time.Second)
		}
		*dst = &t
	}
	return q, nil
}

// printPage печатает страницу таблицей; заголовки обрезаются по ширине экрана, а не по байтам.
func printPage(w io.Writer, p *models.Page) {
	if len(p.Data) == 0 {
		fmt.Fprintf(w, "No articles on page %d (total %d).\n", p.Meta.CurrentPage, p.Meta.TotalItems)
		return
	}

	for _, a := range p.Data {
		published := "-"
		if a.PublishedAt != nil {
			published = a.PublishedAt.Format("2006-01-02")
		}
		title := runewidth.Truncate(strings.ReplaceAll(a.Title, "\n", " "), titleWidth, "...")
		fmt.Fprintf(w, "%6d  %s  %s  %-18s %s\n",
			a.ID, published, runewidth.FillRight(title, titleWidth), a.Source, a.Category)
	}
	fmt.Fprintf(w, "\nPage %d of %d, %d articles total\n", p.Meta.CurrentPage, p.Meta.TotalPages, p.Meta.TotalItems)
}
