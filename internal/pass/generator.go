package pass

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"walletpass/internal/common/config"
	commonerrors "walletpass/internal/common/errors"
	"walletpass/internal/common/logger"
	"walletpass/internal/common/metrics"
	"walletpass/internal/common/observability"
	"walletpass/internal/pass/archive"
	"walletpass/internal/pass/credentials"
	"walletpass/internal/pass/manifest"
	"walletpass/internal/pass/signer"
	"walletpass/internal/pass/staging"
	"walletpass/internal/pass/template"
)

// TemplateOutputName is the fixed name of the substituted template inside
// the bundle.
const TemplateOutputName = "pass.json"

// asset is a static file copied verbatim into every pass.
type asset struct {
	name     string
	path     string
	optional bool
}

// Generator runs the pass pipeline. The template and asset locations are
// loaded once and immutable afterward; everything per-request lives in a
// call-local staging area, so concurrent Generate calls need no
// coordination.
type Generator struct {
	cfg       config.PassConfig
	template  string
	assets    []asset
	providers []credentials.Provider
	log       logger.Logger
	obs       *observability.Observability
}

// New loads the process-wide template and verifies that every required
// static asset exists. A missing template or required asset is fatal
// misconfiguration, caught at startup rather than on the first request.
func New(cfg config.PassConfig, credCfg config.CredentialsConfig, log logger.Logger, obs *observability.Observability) (*Generator, error) {
	templatePath := filepath.Join(cfg.AssetsRoot, cfg.TemplateFile)
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, commonerrors.NewTemplateMissingError(templatePath, err)
	}

	imagesRoot := filepath.Join(cfg.AssetsRoot, cfg.ImagesDir)
	var assets []asset
	for _, name := range cfg.RequiredAssets {
		path := filepath.Join(imagesRoot, name)
		if _, err := os.Stat(path); err != nil {
			return nil, commonerrors.NewTemplateMissingError(path, err)
		}
		assets = append(assets, asset{name: name, path: path})
	}
	for _, name := range cfg.OptionalAssets {
		assets = append(assets, asset{name: name, path: filepath.Join(imagesRoot, name), optional: true})
	}

	return &Generator{
		cfg:      cfg,
		template: string(raw),
		assets:   assets,
		providers: []credentials.Provider{
			&credentials.EnvProvider{
				CertVar:  credCfg.CertEnvVar,
				KeyVar:   credCfg.KeyEnvVar,
				ChainVar: credCfg.ChainEnvVar,
			},
			&credentials.FileProvider{
				Root:      cfg.AssetsRoot,
				CertFile:  credCfg.CertFile,
				KeyFile:   credCfg.KeyFile,
				ChainFile: credCfg.ChainFile,
			},
		},
		log: log.WithFields(map[string]interface{}{"component": "pass-generator"}),
		obs: obs,
	}, nil
}

// Generate runs the full pipeline for one request. Any failure is terminal
// for the call; the staging area is destroyed on every exit path and no
// partial archive is ever returned.
func (g *Generator) Generate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	result, err := g.generate(req)

	status := "success"
	if err != nil {
		status = "failure"
		stdErr := commonerrors.AsStandard(err)
		metrics.PassGenerationFailures.WithLabelValues(string(stdErr.Code)).Inc()
		g.log.Error("pass generation failed", map[string]interface{}{
			"serial":    req.SerialNumber,
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
	} else {
		g.log.Info("pass generated", map[string]interface{}{
			"serial":       req.SerialNumber,
			"archiveBytes": len(result.Archive),
			"files":        result.FileCount,
			"durationMs":   time.Since(start).Milliseconds(),
		})
		metrics.PassArchiveBytes.Observe(float64(len(result.Archive)))
	}
	metrics.PassesGenerated.WithLabelValues(status).Inc()
	metrics.PassGenerationDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if g.obs != nil {
		g.obs.RecordGeneration(ctx, status)
		g.obs.RecordDuration(ctx, time.Since(start), status)
	}

	return result, err
}

func (g *Generator) generate(req *Request) (*Result, error) {
	// Validating: rejected requests must leave no disk side effects, so
	// this happens before the staging area exists.
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	// Staging.
	area, err := staging.New(g.cfg.WorkDir, req.SerialNumber)
	if err != nil {
		return nil, commonerrors.NewStagingIOError("allocate staging area", err)
	}
	defer func() {
		if cleanupErr := area.Cleanup(); cleanupErr != nil {
			g.log.Warn("staging cleanup failed", map[string]interface{}{
				"serial": req.SerialNumber,
				"path":   area.Path(),
				"error":  cleanupErr.Error(),
			})
		}
	}()

	// Substituting.
	rendered := template.Render(g.template, req.tokens())
	if err := area.WriteFile(TemplateOutputName, []byte(rendered)); err != nil {
		return nil, commonerrors.NewStagingIOError("write "+TemplateOutputName, err)
	}
	if err := g.copyAssets(area); err != nil {
		return nil, err
	}

	// Hashing.
	digests, err := manifest.Build(area.Path())
	if err != nil {
		return nil, commonerrors.NewStagingIOError("build manifest", err)
	}
	manifestBytes, err := manifest.Serialize(digests)
	if err != nil {
		return nil, commonerrors.NewStagingIOError("serialize manifest", err)
	}
	if err := area.WriteFile(manifest.FileName, manifestBytes); err != nil {
		return nil, commonerrors.NewStagingIOError("write "+manifest.FileName, err)
	}

	// Signing. Credentials resolve fresh on every call; they may rotate
	// between requests.
	material, err := credentials.Resolve(g.providers...)
	if err != nil {
		return nil, err
	}
	creds, err := credentials.Parse(material)
	if err != nil {
		return nil, err
	}
	signature, err := signer.Sign(manifestBytes, creds)
	if err != nil {
		return nil, err
	}
	if err := area.WriteFile(manifest.SignatureName, signature); err != nil {
		return nil, commonerrors.NewStagingIOError("write "+manifest.SignatureName, err)
	}

	// Packing.
	buf, err := archive.Build(area.Path())
	if err != nil {
		return nil, commonerrors.NewStagingIOError("pack archive", err)
	}

	manifestSum := sha1.Sum(manifestBytes)
	return &Result{
		SerialNumber:  req.SerialNumber,
		Archive:       buf.Bytes(),
		ManifestSHA1:  hex.EncodeToString(manifestSum[:]),
		ManifestBytes: manifestBytes,
		FileCount:     len(digests) + 2,
	}, nil
}

// copyAssets places the static images into the staging area. Optional
// assets that are absent are skipped; a required asset that disappeared
// since startup is misconfiguration.
func (g *Generator) copyAssets(area *staging.Area) error {
	for _, a := range g.assets {
		if a.optional {
			if _, err := os.Stat(a.path); err != nil {
				continue
			}
		}
		if err := area.CopyFile(a.name, a.path); err != nil {
			if a.optional {
				continue
			}
			return commonerrors.NewTemplateMissingError(a.name, fmt.Errorf("copy asset: %w", err))
		}
	}
	return nil
}
