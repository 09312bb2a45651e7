package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zatobox/invoice-ocr/constants"
	"github.com/zatobox/invoice-ocr/internal/app"
	"github.com/zatobox/invoice-ocr/internal/common"
	"github.com/zatobox/invoice-ocr/internal/normalize"
	"github.com/zatobox/invoice-ocr/internal/ocr"
)

// normalize prints the normalized result for a document or raw provider text.
// Images and PDFs go through the configured provider; anything else, or stdin,
// is treated as provider output and only normalized.
func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	var (
		res normalize.Result
		err error
	)
	switch {
	case len(os.Args) < 2 || os.Args[1] == "-":
		res, err = fromText(os.Stdin, cfg)
	case constants.MIMEFromExt(filepath.Ext(os.Args[1])) != "":
		res, err = fromDocument(os.Args[1], cfg, logger)
	default:
		var f *os.File
		if f, err = os.Open(os.Args[1]); err == nil {
			res, err = fromText(f, cfg)
			f.Close()
		}
	}
	if err != nil {
		logger.Error("normalize failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error("encode failed", "error", err)
		os.Exit(1)
	}
}

func fromText(r io.Reader, cfg *common.Config) (normalize.Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return normalize.Result{}, err
	}
	n := normalize.New(normalize.WithTolerance(cfg.OCR.TotalTolerance))
	return n.Parse(ocr.StripCodeFence(string(raw))), nil
}

func fromDocument(path string, cfg *common.Config, logger *slog.Logger) (normalize.Result, error) {
	ctx := context.Background()
	a, err := app.Build(ctx, cfg, app.Options{InMemoryDB: true, NoRateLimit: true}, logger)
	if err != nil {
		return normalize.Result{}, err
	}
	defer a.Close()
	return a.OCR.ProcessFile(ctx, path)
}
