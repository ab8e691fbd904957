package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ewangclarkson/news-aggregator-app/internal/ingest"
	"github.com/ewangclarkson/news-aggregator-app/internal/models"
)

func TestQueryFromFlags(t *testing.T) {
	cmd := searchCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--category", "Tech,Sport",
		"--source", "NEWS_ORG",
		"--from", "2024-01-01",
		"--to", "2024-01-31",
		"-p", "3",
	}))

	q, err := queryFromFlags(cmd, []string{"election"})
	require.NoError(t, err)
	require.Equal(t, "election", q.Keyword)
	require.Equal(t, []string{"Tech", "Sport"}, q.Categories)
	require.Equal(t, []string{"NEWS_ORG"}, q.Sources)
	require.Equal(t, 3, q.Page)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *q.StartDate)
	require.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC), *q.EndDate)
}

func TestQueryFromFlags_BadDate(t *testing.T) {
	cmd := searchCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--from", "01/02/2024"}))

	_, err := queryFromFlags(cmd, nil)
	require.ErrorContains(t, err, "--from")
}

func TestPrintPage_WideTitlesTruncated(t *testing.T) {
	long := strings.Repeat("新闻", 40)
	page := &models.Page{
		Data: []models.Article{{ID: 7, Title: long, Source: models.SourceNYT, Category: "World"}},
		Meta: models.PageMeta{CurrentPage: 1, TotalPages: 1, TotalItems: 1, PageSize: 10},
	}

	var buf bytes.Buffer
	printPage(&buf, page)

	out := buf.String()
	require.Contains(t, out, "...")
	require.NotContains(t, out, long)
	require.Contains(t, out, "NEW_YORK_TIME_NEWS")
	require.Contains(t, out, "Page 1 of 1, 1 articles total")
}

func TestPrintPage_Empty(t *testing.T) {
	var buf bytes.Buffer
	printPage(&buf, &models.Page{Meta: models.PageMeta{CurrentPage: 4, TotalItems: 5}})
	require.Equal(t, "No articles on page 4 (total 5).\n", buf.String())
}

func TestPrintOutcome(t *testing.T) {
	last := time.Now().Add(-30 * time.Minute)
	var buf bytes.Buffer
	printOutcome(&buf, ingest.Outcome{Status: ingest.StatusSkipped, Reason: "already run recently", LastRun: &last})
	require.Equal(t, "Sweep skipped: already run recently (last run 30 minutes ago)\n", buf.String())

	buf.Reset()
	started := time.Now()
	printOutcome(&buf, ingest.Outcome{Status: ingest.StatusRan, Summary: &ingest.Summary{
		ID:         "abc",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Results:    []ingest.ProviderResult{
			{Key: "newsapi", Upserted: 1200},
			{Key: "guardian", Error: "boom"},
		},
	}})
	out := buf.String()
	require.Contains(t, out, "1 succeeded, 1 failed")
	require.Contains(t, out, "1,200 upserted")
	require.Contains(t, out, "FAILED: boom")
}
