package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bloodwork-backend/internal/analyses"
	"bloodwork-backend/internal/documents"
	"bloodwork-backend/internal/extract"
	"bloodwork-backend/internal/llm"
	"bloodwork-backend/internal/llm/gemini"
	"bloodwork-backend/internal/llm/openai"
	"bloodwork-backend/internal/services/health"
	"bloodwork-backend/internal/shared/config"
	"bloodwork-backend/internal/shared/server"
	"bloodwork-backend/internal/shared/storage/object"
	gcsstore "bloodwork-backend/internal/shared/storage/object/gcs"
	localstore "bloodwork-backend/internal/shared/storage/object/local"
	miniostore "bloodwork-backend/internal/shared/storage/object/minio"
	s3store "bloodwork-backend/internal/shared/storage/object/s3"
	"bloodwork-backend/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	Store           object.ObjectStore
	Documents       *documents.Service
	Extractors      *extract.Registry
	LLM             llm.Client
	LLMBase         llm.Client
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
	Health          *health.Service

	closers []func() error
}

// Build prepares dependencies and wires routes.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	app, err := BuildPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.AnalysisHandler = analyses.NewHandler(app.AnalysesService, cfg.MaxUploadBytes)
	app.Health = buildHealth(app)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		AnalysisHandler: app.AnalysisHandler,
		Health:          app.Health,
	})
	return app, nil
}

// BuildPipeline prepares everything a single analysis run needs, without HTTP.
func BuildPipeline(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	app := &App{Config: cfg}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store
	if c, ok := store.(interface{ Close() error }); ok {
		app.closers = append(app.closers, c.Close)
	}

	client, err := buildLLM(ctx, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if c, ok := client.(interface{ Close() error }); ok {
		app.closers = append(app.closers, c.Close)
	}
	app.LLMBase = client
	app.LLM = llm.WithRetry(client, cfg.LLMRetryDelay)

	app.Documents = documents.NewService(store)
	app.Extractors = extract.DefaultRegistry(cfg)
	app.AnalysesService = &analyses.Service{
		Docs:           app.Documents,
		Extractors:     app.Extractors,
		LLM:            app.LLM,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"object_store": cfg.ObjectStoreType,
		"llm_provider": cfg.LLMProvider,
		"llm_model":    cfg.LLMModel,
		"max_upload":   cfg.MaxUploadBytes,
	})
	return app, nil
}

// Close releases provider and storage clients.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		return miniostore.New(ctx, miniostore.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			Prefix:    cfg.S3Prefix,
			UseSSL:    cfg.MinIOUseSSL,
		})
	case "gcs":
		return gcsstore.New(ctx, cfg.GCSBucket, cfg.GCSPrefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			if cfg.Env == "production" {
				return nil, fmt.Errorf("OPENAI_API_KEY is required")
			}
			telemetry.Warn("bootstrap.llm_unconfigured", map[string]any{"provider": cfg.LLMProvider})
			return llm.Placeholder{}, nil
		}
		return openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.LLMModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.LLMTimeout,
		})
	case "gemini":
		return gemini.New(ctx, cfg.GCPProjectID, cfg.VertexAIRegion, cfg.LLMModel, cfg.LLMTimeout)
	default:
		return llm.Placeholder{}, nil
	}
}

func buildHealth(app *App) *health.Service {
	hs := health.NewService()
	store := app.Store
	hs.Register("object_store", func(ctx context.Context) error {
		key := path.Join("health", uuid.NewString())
		if _, err := store.SaveWithKey(ctx, key, "text/plain", bytes.NewReader([]byte("ok"))); err != nil {
			return err
		}
		return store.Delete(ctx, key)
	})
	bin := app.Config.TesseractBin
	if bin == "" {
		bin = "tesseract"
	}
	hs.Register("ocr", func(ctx context.Context) error {
		_, err := exec.LookPath(bin)
		return err
	})
	provider := app.Config.LLMProvider
	hs.Register("model_provider", func(ctx context.Context) error {
		if _, ok := app.LLMBase.(llm.Placeholder); ok {
			return fmt.Errorf("no model provider configured (LLM_PROVIDER=%s)", provider)
		}
		return nil
	})
	return hs
}
