// Package app wires the stores and adapters together and drives the
// interactive command loop.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"recall/internal/config"
	"recall/internal/corpus"
	"recall/internal/index"
	"recall/internal/logger"
	"recall/internal/summary"
	"recall/internal/text"
)

type Corpus interface {
	Rebuild(ctx context.Context) (bool, error)
	ListDocuments() ([]string, error)
}

type Summaries interface {
	Save(ctx context.Context, content, date string) (string, error)
	ListRange(start, end string) ([]summary.Preview, error)
	Search(ctx context.Context, query string, k int) ([]summary.Hit, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]corpus.Match, error)
	SearchImage(ctx context.Context, path string, k int) (string, []corpus.Match, error)
	Report(ctx context.Context, month time.Month, year int) (string, error)
}

type App struct {
	cfg       *config.Config
	corpus    Corpus
	summaries Summaries
	search    Searcher
	in        io.Reader
	out       io.Writer
}

func New(cfg *config.Config, c Corpus, s Summaries, r Searcher, in io.Reader, out io.Writer) *App {
	return &App{cfg: cfg, corpus: c, summaries: s, search: r, in: in, out: out}
}

// Run reads commands until quit, EOF or context cancellation. Every
// command gets a fresh query id in its context so its log lines correlate.
func (a *App) Run(ctx context.Context) error {
	fmt.Fprintln(a.out, "recall - document retrieval and meeting memory")
	fmt.Fprintln(a.out, `Type "help" for commands.`)

	scanner := bufio.NewScanner(a.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(a.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, args, _ := strings.Cut(line, " ")
		cmd = strings.ToLower(cmd)
		args = strings.TrimSpace(args)

		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		a.dispatch(logger.NewQueryContext(ctx), cmd, args)
	}
}

func (a *App) dispatch(ctx context.Context, cmd, args string) {
	switch cmd {
	case "help":
		a.printHelp()
	case "list":
		a.cmdList()
	case "search":
		a.cmdSearch(ctx, args)
	case "analyze":
		a.cmdAnalyze(ctx, args)
	case "remember":
		a.cmdRemember(ctx, args)
	case "summaries":
		a.cmdSummaries(args)
	case "recall":
		a.cmdRecall(ctx, args)
	case "report":
		a.cmdReport(ctx, args)
	case "reprocess":
		a.cmdReprocess(ctx)
	default:
		fmt.Fprintf(a.out, "Unknown command %q. Type \"help\" for commands.\n", cmd)
	}
}

func (a *App) printHelp() {
	fmt.Fprint(a.out, `Commands:
  list                          show documents in the corpus directory
  search <query>                semantic search over the document corpus
  analyze <image-path>          describe an image and search with the description
  remember [YYYY-MM-DD] <text>  store a meeting summary (date defaults to today)
  summaries [start end]         list stored summaries in a date range
  recall <query>                semantic search over stored summaries
  report [month year]           generate the monthly report
  reprocess                     rebuild the corpus index from scratch
  quit                          exit
`)
}

func (a *App) cmdList() {
	names, err := a.corpus.ListDocuments()
	if err != nil {
		fmt.Fprintf(a.out, "Could not list documents: %v\n", err)
		return
	}
	if len(names) == 0 {
		fmt.Fprintf(a.out, "No documents found in %s.\n", a.cfg.CorpusDir)
		return
	}
	for _, n := range names {
		fmt.Fprintf(a.out, "  %s\n", n)
	}
}

func (a *App) cmdSearch(ctx context.Context, query string) {
	if query == "" {
		fmt.Fprintln(a.out, "Usage: search <query>")
		return
	}

	matches, err := a.search.Search(ctx, query, a.cfg.SearchTopK)
	if err != nil {
		if errors.Is(err, index.ErrNotReady) {
			fmt.Fprintf(a.out, "The document index is empty. Add files to %s and run \"reprocess\".\n", a.cfg.CorpusDir)
			return
		}
		fmt.Fprintf(a.out, "Search failed: %v\n", err)
		return
	}
	a.printMatches(query, matches)
}

func (a *App) cmdAnalyze(ctx context.Context, path string) {
	if path == "" {
		fmt.Fprintln(a.out, "Usage: analyze <image-path>")
		return
	}

	desc, matches, err := a.search.SearchImage(ctx, path, a.cfg.SearchTopK)
	if desc != "" {
		fmt.Fprintf(a.out, "Image description: %s\n\n", desc)
	}
	if err != nil {
		if errors.Is(err, index.ErrNotReady) {
			fmt.Fprintf(a.out, "The document index is empty. Add files to %s and run \"reprocess\".\n", a.cfg.CorpusDir)
			return
		}
		fmt.Fprintf(a.out, "Image search failed: %v\n", err)
		return
	}
	a.printMatches(desc, matches)
}

func (a *App) printMatches(query string, matches []corpus.Match) {
	if len(matches) == 0 {
		fmt.Fprintf(a.out, "No matching passages for %q.\n", query)
		return
	}
	for i, m := range matches {
		where := m.Source
		if m.Page != text.PageUnknown {
			where = fmt.Sprintf("%s, page %d", m.Source, m.Page)
		}
		fmt.Fprintf(a.out, "%d. [%s] (score %.3f)\n%s\n\n", i+1, where, m.Score, m.Text)
	}
}

func (a *App) cmdRemember(ctx context.Context, args string) {
	// A lone date carries no summary to store.
	if _, err := time.Parse("2006-01-02", args); args == "" || err == nil {
		fmt.Fprintln(a.out, "Usage: remember [YYYY-MM-DD] <text>")
		return
	}

	date := ""
	content := args
	if first, rest, ok := strings.Cut(args, " "); ok {
		if _, err := time.Parse("2006-01-02", first); err == nil {
			date = first
			content = strings.TrimSpace(rest)
		}
	}
	if content == "" {
		fmt.Fprintln(a.out, "Usage: remember [YYYY-MM-DD] <text>")
		return
	}

	if _, err := a.summaries.Save(ctx, content, date); err != nil {
		fmt.Fprintf(a.out, "Could not store summary: %v\n", err)
		return
	}
	if date == "" {
		fmt.Fprintln(a.out, "Meeting summary stored for today.")
	} else {
		fmt.Fprintf(a.out, "Meeting summary stored for %s.\n", date)
	}
}

func (a *App) cmdSummaries(args string) {
	start, end := "", ""
	if args != "" {
		fields := strings.Fields(args)
		if len(fields) != 2 {
			fmt.Fprintln(a.out, "Usage: summaries [start end] with YYYY-MM-DD dates")
			return
		}
		start, end = fields[0], fields[1]
	}

	previews, err := a.summaries.ListRange(start, end)
	if err != nil {
		if errors.Is(err, summary.ErrInvalidDate) {
			fmt.Fprintln(a.out, "Dates must be YYYY-MM-DD.")
			return
		}
		fmt.Fprintf(a.out, "Could not list summaries: %v\n", err)
		return
	}
	if len(previews) == 0 {
		fmt.Fprintln(a.out, "No meeting summaries in that range.")
		return
	}
	for _, p := range previews {
		fmt.Fprintf(a.out, "%s\n%s\n\n", p.Date, p.Preview)
	}
}

func (a *App) cmdRecall(ctx context.Context, query string) {
	if query == "" {
		fmt.Fprintln(a.out, "Usage: recall <query>")
		return
	}

	hits, err := a.summaries.Search(ctx, query, a.cfg.SummaryTopK)
	if err != nil {
		if errors.Is(err, index.ErrNotReady) {
			fmt.Fprintln(a.out, "No meeting summaries stored yet.")
			return
		}
		fmt.Fprintf(a.out, "Summary search failed: %v\n", err)
		return
	}
	if len(hits) == 0 {
		fmt.Fprintf(a.out, "No summaries matched %q.\n", query)
		return
	}
	for _, h := range hits {
		fmt.Fprintf(a.out, "%s\n%s\n\n", h.Date, h.Snippet)
	}
}

func (a *App) cmdReport(ctx context.Context, args string) {
	now := time.Now()
	month, year := now.Month(), now.Year()

	if args != "" {
		fields := strings.Fields(args)
		if len(fields) != 2 {
			fmt.Fprintln(a.out, "Usage: report [month year]")
			return
		}
		m, errM := strconv.Atoi(fields[0])
		y, errY := strconv.Atoi(fields[1])
		if errM != nil || errY != nil || m < 1 || m > 12 {
			fmt.Fprintln(a.out, "Usage: report [month year], e.g. report 3 2025")
			return
		}
		month, year = time.Month(m), y
	}

	report, err := a.search.Report(ctx, month, year)
	if err != nil {
		fmt.Fprintf(a.out, "Report generation failed: %v\n", err)
		return
	}
	fmt.Fprintln(a.out, report)
}

func (a *App) cmdReprocess(ctx context.Context) {
	fmt.Fprintln(a.out, "Rebuilding the corpus index...")
	ok, err := a.corpus.Rebuild(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Rebuild failed: %v\n", err)
		return
	}
	if !ok {
		fmt.Fprintf(a.out, "No documents found in %s.\n", a.cfg.CorpusDir)
		return
	}
	fmt.Fprintln(a.out, "Corpus index rebuilt.")
}
