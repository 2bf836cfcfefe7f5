package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Harvey-AU/page-pulse/internal/client"
	"github.com/Harvey-AU/page-pulse/internal/extractor"
	"github.com/Harvey-AU/page-pulse/internal/relay"
	"github.com/Harvey-AU/page-pulse/internal/ui"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	godotenv.Load(".env.local", ".env")

	baseURL := flag.String("api", envOrDefault("API_BASE_URL", "http://localhost:8080"), "visit store base URL")
	limit := flag.Int("limit", 10, "number of timeline entries to show")
	timeout := flag.Duration("timeout", 60*time.Second, "overall deadline")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <page-url>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	pageURL := flag.Arg(0)

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	apiClient := client.New(client.DefaultConfig(*baseURL))
	rly := relay.New(apiClient)
	extractor.NewProducer(extractor.New(nil), rly.Router(), pageURL)

	view := ui.NewView(rly, pageURL)
	snapshot, timeline, err := view.Refresh(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Str("url", pageURL).Msg("Failed to fetch page metrics")
	}

	printSnapshot(snapshot)
	printTimeline(timeline)
}

func printSnapshot(s *ui.Snapshot) {
	source := "live"
	if s.FromHistory {
		source = "history"
	}

	fmt.Printf("Page: %s\n", s.URL)
	fmt.Printf("Captured: %s (%s)\n\n", s.CapturedAt.Format(time.RFC3339), source)
	fmt.Printf("  Links:  %d\n", s.LinkCount)
	fmt.Printf("  Words:  %d\n", s.WordCount)
	fmt.Printf("  Images: %d\n\n", s.ImageCount)
}

func printTimeline(page *client.HistoryPage) {
	if page.Total == 0 {
		fmt.Println("No visits recorded yet.")
		return
	}

	fmt.Printf("History (%d of %d visits):\n\n", len(page.Visits), page.Total)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VISITED\tLINKS\tWORDS\tIMAGES")
	for _, v := range page.Visits {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n",
			v.VisitedAt.Format(time.RFC3339), v.LinkCount, v.WordCount, v.ImageCount)
	}
	w.Flush()
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
