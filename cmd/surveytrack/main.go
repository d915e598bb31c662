package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/temapeo/surveytrack/internal/config"
	"github.com/temapeo/surveytrack/internal/services"
)

func main() {
	// Optional .env for local overrides; absence is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	svc := services.NewReportService(cfg, logger)
	out, err := svc.Run(context.Background())
	if err != nil {
		logger.Fatal("pipeline failed", zap.Error(err))
	}

	if err := writeFile(cfg.Output, func(f *os.File) error {
		return services.WriteJSON(f, out.Report)
	}); err != nil {
		logger.Fatal("failed to write report", zap.Error(err))
	}
	logger.Info("report written", zap.String("path", cfg.Output))

	if cfg.KMLOutput != "" {
		if err := writeFile(cfg.KMLOutput, func(f *os.File) error {
			return services.WriteStatusKML(f, out)
		}); err != nil {
			logger.Fatal("failed to write status KML", zap.Error(err))
		}
		logger.Info("status overlay written", zap.String("path", cfg.KMLOutput))
	}
}

func writeFile(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
