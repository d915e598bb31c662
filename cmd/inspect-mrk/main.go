// Debug utility: parse a directory of flight logs and print per-session
// capture counts without running the full pipeline.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/temapeo/surveytrack/internal/clients/mrk"
)

func main() {
	dir := flag.String("dir", "datos/mrk", "flight-log directory")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	loader := mrk.NewLoader(logger)
	res, err := loader.LoadDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		os.Exit(1)
	}

	total := 0
	for _, s := range res.Sessions {
		date := "unknown date"
		if !s.Date.IsZero() {
			date = s.Date.Format("2006-01-02")
		}
		fmt.Printf("%-48s %s  %6d captures  %d skipped\n", s.ID, date, len(s.Points), s.SkippedRecords)
		total += len(s.Points)
	}
	fmt.Printf("\n%d sessions, %d photo centers, %d records skipped", len(res.Sessions), total, res.SkippedRecords)
	if res.ExcludedFiles > 0 {
		fmt.Printf(", %d files excluded", res.ExcludedFiles)
	}
	fmt.Println()
}
