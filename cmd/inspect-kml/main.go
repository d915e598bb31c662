// Debug utility: parse a directory of boundary KML files and print the
// polygon inventory without running the full pipeline.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/temapeo/surveytrack/internal/clients/kml"
	"github.com/temapeo/surveytrack/internal/config"
)

func main() {
	dir := flag.String("dir", "datos/kml", "boundary-file directory")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	loader := kml.NewLoader(logger, cfg.ZoneKeywords)
	res, err := loader.LoadDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		os.Exit(1)
	}

	totalHa := 0.0
	for _, a := range res.Areas {
		fmt.Printf("%-40s %-24s %-12s %9.2f ha (%s)\n", a.ID, a.Name, a.Zone, a.AreaHa, a.AreaSource)
		totalHa += a.AreaHa
	}
	fmt.Printf("\n%d polygons, %.1f ha total", len(res.Areas), totalHa)
	if res.ExcludedPolygons > 0 || res.ExcludedFiles > 0 {
		fmt.Printf(" (%d polygons and %d files excluded)", res.ExcludedPolygons, res.ExcludedFiles)
	}
	fmt.Println()
}
