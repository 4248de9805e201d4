package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"bloodwork-backend/internal/analyses"
	"bloodwork-backend/internal/bootstrap"
	"bloodwork-backend/internal/shared/config"
	"bloodwork-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()

	filePath := flag.String("file", "", "Path to lab report (pdf, jpg or png)")
	outPath := flag.String("out", "", "Path to write result JSON (optional)")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider (openai, gemini, none)")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	verbose := flag.Bool("v", false, "Log pipeline progress, including debug lines")
	flag.Parse()

	// stdout carries the result JSON.
	telemetry.SetOutput(os.Stderr)
	if *verbose {
		telemetry.SetLevel("debug")
	} else {
		telemetry.SetLevel("warn")
	}

	if strings.TrimSpace(*filePath) == "" {
		exitErr("file path is required")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		exitErr(fmt.Sprintf("read file: %v", err))
	}

	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(*provider))
	cfg.LLMModel = *model
	if cfg.ObjectStoreType == "" {
		cfg.ObjectStoreType = "local"
	}

	ctx := context.Background()
	app, err := bootstrap.BuildPipeline(ctx, cfg)
	if err != nil {
		exitErr(fmt.Sprintf("bootstrap: %v", err))
	}
	defer func() { _ = app.Close() }()

	result, err := app.AnalysesService.Run(ctx, analyses.Request{
		Data:      data,
		MediaType: mediaTypeFor(*filePath, data),
		FileName:  filepath.Base(*filePath),
	})
	if err != nil {
		var runErr *analyses.RunError
		if errors.As(err, &runErr) {
			exitErr(fmt.Sprintf("analysis failed at %s (%s): %v", runErr.Stage, runErr.Kind, runErr.Err))
		}
		exitErr(fmt.Sprintf("analysis failed: %v", err))
	}

	raw, err := json.Marshal(result)
	if err != nil {
		exitErr(fmt.Sprintf("encode result: %v", err))
	}
	pretty, err := prettyJSON(raw)
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}

	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
	if len(pretty) == 0 || pretty[len(pretty)-1] != '\n' {
		_, _ = os.Stdout.Write([]byte("\n"))
	}
}

func mediaTypeFor(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return http.DetectContentType(data)
	}
}

func prettyJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
