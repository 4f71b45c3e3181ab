// Command chatcli sends one chat message to a running server and prints the
// streamed reply, highlights and sources.
//
// Usage:
//
//	chatcli -project <id> [-page draft.md|draft.json] [-tab draft] <message>
//
// A .json page is read as a TipTap document and flattened to markdown.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"margin/internal/anchor"
	"margin/internal/domain/models"
	"margin/internal/handler/sse"
	"margin/internal/markdown"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	project := flag.String("project", "00000000-0000-4000-8000-0000000000d1", "project id")
	page := flag.String("page", "", "page file: markdown, or TipTap JSON when it ends in .json")
	tab := flag.String("tab", "draft", "page slot the file is loaded into (brainstorm, outline, draft, revision, final)")
	token := flag.String("token", "", "bearer token (default $MARGIN_TOKEN)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <message>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	_ = godotenv.Load()

	message := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if message == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *token == "" {
		*token = os.Getenv("MARGIN_TOKEN")
	}

	pages := map[string]string{}
	if *page != "" {
		content, err := loadPage(*page)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load page: %v\n", err)
			os.Exit(1)
		}
		pages[*tab] = content
		fmt.Fprintln(os.Stderr, describePage(*tab, content))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *server, *token, map[string]interface{}{
		"projectId": *project,
		"message":   message,
		"pages":     pages,
		"activeTab": *tab,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
		os.Exit(1)
	}
}

func loadPage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if filepath.Ext(path) != ".json" {
		return string(data), nil
	}
	doc, err := anchor.Parse(data)
	if err != nil {
		return "", fmt.Errorf("parse TipTap document: %w", err)
	}
	return anchor.ToMarkdown(doc), nil
}

// describePage summarizes a loaded page by its prose word count
func describePage(tab, content string) string {
	return fmt.Sprintf("%s page: %s words", tab, humanize.Comma(int64(markdown.CountWords(content))))
}

func run(ctx context.Context, server, token string, body map[string]interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		problem, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(problem))
	}

	return sse.Decode(resp.Body, func(ev models.StreamEvent) error {
		render(os.Stdout, ev)
		return nil
	})
}

func render(w io.Writer, ev models.StreamEvent) {
	switch e := ev.(type) {
	case models.TextEvent:
		fmt.Fprint(w, e.Chunk)
	case models.HighlightEvent:
		fmt.Fprintf(w, "\n  [%s] %q\n    %s\n", e.Type, e.MatchText, e.Comment)
		if e.SuggestedEdit != "" {
			fmt.Fprintf(w, "    -> %s\n", e.SuggestedEdit)
		}
	case models.SourceEvent:
		fmt.Fprintf(w, "\n  source: %s <%s>\n", e.Title, e.URL)
	case models.ToolStatusEvent:
		fmt.Fprintf(w, "\n  (%s on %s: %s)\n", e.Tool, e.Server, e.Status)
	case models.DoneEvent:
		fmt.Fprintf(w, "\n\n[done %s]\n", e.MessageID)
	case models.ErrorEvent:
		fmt.Fprintf(w, "\n\n[error] %s\n", e.Error)
	}
}
