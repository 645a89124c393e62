package whisper

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/fmueller/voxtype/internal/domain"
	"github.com/fmueller/voxtype/internal/download"
	"go.uber.org/zap"
)

type PrepareOptions struct {
	Model        string
	ModelDir     string
	AutoDownload bool
	// Verify re-hashes a model that is already on disk and downloads a
	// fresh copy when it does not match.
	Verify     bool
	NoProgress bool
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Prepare resolves the model and makes sure a verified copy is on disk.
// Failures are ErrModelUnavailable.
func Prepare(ctx context.Context, opts PrepareOptions) (ResolvedModel, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	resolved, err := ResolveModel(opts.Model, opts.ModelDir)
	if err != nil {
		return ResolvedModel{}, err
	}
	if resolved.IsCustomPath {
		logger.Debug("using custom model path", zap.String("path", resolved.Path))
		return resolved, nil
	}

	expectedChecksum := resolved.SHA256
	if expectedChecksum == "" && resolved.SHA256URL != "" {
		checksum, err := download.ResolveExpectedChecksum(ctx, resolved.SHA256URL, filepath.Base(resolved.Path), opts.HTTPClient)
		if err != nil {
			return ResolvedModel{}, fmt.Errorf("%w: resolve checksum for model %s: %w", domain.ErrModelUnavailable, resolved.Name, err)
		}
		expectedChecksum = checksum
	}

	if !resolved.NeedsDownload && opts.Verify && expectedChecksum != "" {
		if err := download.VerifyFileChecksum(resolved.Path, expectedChecksum); err != nil {
			logger.Warn("model checksum verification failed; downloading fresh copy", zap.String("model", resolved.Name), zap.Error(err))
			resolved.NeedsDownload = true
		}
	}

	if !resolved.NeedsDownload {
		logger.Debug("model present", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
		return resolved, nil
	}

	if !opts.AutoDownload {
		return ResolvedModel{}, fmt.Errorf("%w: model %q is missing at %s; run `voxtype setup --model %s` or use --auto-download=true", domain.ErrModelUnavailable, resolved.Name, resolved.Path, resolved.Name)
	}

	logger.Info("downloading model", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
	if err := download.DownloadFile(ctx, download.Options{
		URL:            resolved.URL,
		Destination:    resolved.Path,
		ExpectedSHA256: expectedChecksum,
		ChecksumURL:    resolved.SHA256URL,
		Description:    "model " + resolved.Name,
		NoProgress:     opts.NoProgress,
		HTTPClient:     opts.HTTPClient,
		Logger:         logger,
	}); err != nil {
		return ResolvedModel{}, fmt.Errorf("%w: download model %q: %w", domain.ErrModelUnavailable, resolved.Name, err)
	}

	resolved.NeedsDownload = false
	return resolved, nil
}
