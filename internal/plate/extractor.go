// Package plate extracts vehicle registration numbers from images using an
// OCR text detector.
package plate

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/opensource-finance/axle/internal/domain"
)

// Pattern is the registration number template, e.g. MH12AB1234.
var Pattern = regexp.MustCompile(`[A-Z]{2}[0-9]{2}[A-Z]{2}[0-9]{4}`)

const cacheKeyPrefix = "plate:"

var tracer = otel.Tracer("axle-plate")

// ErrInvalidImage is returned when a data URL payload cannot be decoded.
var ErrInvalidImage = errors.New("invalid image data")

// Extractor turns images into PlateResults.
type Extractor struct {
	detector domain.TextDetector
	cache    domain.Cache
	ttl      time.Duration
}

// NewExtractor creates an extractor. A nil detector yields an extractor that
// reports domain.ErrOCRNotConfigured; a nil cache disables result caching.
func NewExtractor(detector domain.TextDetector, cache domain.Cache, ttl time.Duration) *Extractor {
	return &Extractor{
		detector: detector,
		cache:    cache,
		ttl:      ttl,
	}
}

// Enabled reports whether a detector is configured.
func (e *Extractor) Enabled() bool {
	return e != nil && e.detector != nil
}

// ExtractPlate detects text in image and matches it against Pattern.
// No text or no match is a non-success result, not an error.
func (e *Extractor) ExtractPlate(ctx context.Context, image []byte) (*domain.PlateResult, error) {
	if !e.Enabled() {
		return nil, domain.ErrOCRNotConfigured
	}

	ctx, span := tracer.Start(ctx, "plate.extract")
	defer span.End()

	raw, err := DecodeImage(image)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("image.bytes", len(raw)))

	key := cacheKey(raw)
	if cached := e.lookup(ctx, key); cached != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}

	annotations, err := e.detector.DetectText(ctx, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "text detection failed")
		return nil, fmt.Errorf("text detection failed: %w: %w", domain.ErrUpstream, err)
	}

	result := Match(annotations)
	span.SetAttributes(
		attribute.Bool("plate.success", result.Success),
		attribute.Int("plate.candidates", len(result.DetectedPatterns)),
	)

	e.store(ctx, key, result)
	return result, nil
}

// Match applies Pattern to the full text annotation. The first annotation
// holds the whole detected text by provider convention.
func Match(annotations []domain.TextAnnotation) *domain.PlateResult {
	if len(annotations) == 0 {
		return &domain.PlateResult{
			Success: false,
			Message: "No text detected in image",
		}
	}

	full := annotations[0]
	matches := Pattern.FindAllString(full.Description, -1)
	if len(matches) == 0 {
		return &domain.PlateResult{
			Success:  false,
			FullText: full.Description,
			Message:  "No registration number pattern found in detected text",
		}
	}

	return &domain.PlateResult{
		Success:          true,
		Text:             matches[0],
		PlateNumber:      matches[0],
		FullText:         full.Description,
		Confidence:       full.Confidence,
		DetectedPatterns: matches,
	}
}

// DecodeImage strips a base64 data URL prefix if present. Other input is
// returned unchanged.
func DecodeImage(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("data:")) {
		return data, nil
	}

	header, payload, ok := bytes.Cut(data, []byte(","))
	if !ok || !bytes.HasSuffix(header, []byte(";base64")) {
		return nil, fmt.Errorf("%w: expected base64 data URL", ErrInvalidImage)
	}

	out := make([]byte, base64.StdEncoding.DecodedLen(len(payload)))
	n, err := base64.StdEncoding.Decode(out, bytes.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return out[:n], nil
}

func cacheKey(image []byte) string {
	sum := sha256.Sum256(image)
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (e *Extractor) lookup(ctx context.Context, key string) *domain.PlateResult {
	if e.cache == nil {
		return nil
	}

	data, err := e.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("plate cache get failed", "error", err)
		return nil
	}
	if data == nil {
		return nil
	}

	var result domain.PlateResult
	if err := json.Unmarshal(data, &result); err != nil {
		slog.Warn("plate cache entry corrupt", "error", err)
		return nil
	}
	return &result
}

func (e *Extractor) store(ctx context.Context, key string, result *domain.PlateResult) {
	if e.cache == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, data, e.ttl); err != nil {
		slog.Warn("plate cache set failed", "error", err)
	}
}
