package plate

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/axle/internal/cache"
	"github.com/opensource-finance/axle/internal/domain"
)

type fakeDetector struct {
	annotations []domain.TextAnnotation
	err         error
	calls       int
	lastImage   []byte
}

func (f *fakeDetector) DetectText(ctx context.Context, image []byte) ([]domain.TextAnnotation, error) {
	f.calls++
	f.lastImage = image
	return f.annotations, f.err
}

func TestMatch(t *testing.T) {
	t.Run("SingleCandidate", func(t *testing.T) {
		res := Match([]domain.TextAnnotation{
			{Description: "Reg: MH12AB1234 Date:2024", Confidence: 0.97},
			{Description: "Reg:"},
			{Description: "MH12AB1234"},
		})
		if !res.Success {
			t.Fatalf("expected success, got %+v", res)
		}
		if res.PlateNumber != "MH12AB1234" || res.Text != "MH12AB1234" {
			t.Errorf("unexpected plate: %q / %q", res.PlateNumber, res.Text)
		}
		if len(res.DetectedPatterns) != 1 {
			t.Errorf("expected exactly one candidate, got %v", res.DetectedPatterns)
		}
		if res.Confidence != 0.97 {
			t.Errorf("expected confidence 0.97, got %v", res.Confidence)
		}
		if res.FullText != "Reg: MH12AB1234 Date:2024" {
			t.Errorf("unexpected full text: %q", res.FullText)
		}
	})

	t.Run("MultipleCandidates", func(t *testing.T) {
		res := Match([]domain.TextAnnotation{{Description: "KA01MN0001 and DL03CD9876"}})
		if !res.Success || res.PlateNumber != "KA01MN0001" {
			t.Fatalf("unexpected result: %+v", res)
		}
		if len(res.DetectedPatterns) != 2 || res.DetectedPatterns[1] != "DL03CD9876" {
			t.Errorf("unexpected candidates: %v", res.DetectedPatterns)
		}
	})

	t.Run("NoText", func(t *testing.T) {
		res := Match(nil)
		if res.Success {
			t.Fatal("expected failure")
		}
		if res.Message == "" {
			t.Error("expected message")
		}
	})

	t.Run("NoMatchKeepsFullText", func(t *testing.T) {
		res := Match([]domain.TextAnnotation{{Description: "mh12ab1234 lower case"}})
		if res.Success {
			t.Fatal("expected failure for lower case text")
		}
		if res.FullText != "mh12ab1234 lower case" {
			t.Errorf("full text not carried: %q", res.FullText)
		}
	})
}

func TestDecodeImage(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}

	t.Run("RawBytes", func(t *testing.T) {
		got, err := DecodeImage(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(got) != string(payload) {
			t.Error("raw bytes changed")
		}
	})

	t.Run("DataURL", func(t *testing.T) {
		in := []byte("data:image/png;base64," + base64.StdEncoding.EncodeToString(payload))
		got, err := DecodeImage(in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(got) != string(payload) {
			t.Errorf("decoded %v, want %v", got, payload)
		}
	})

	t.Run("NotBase64", func(t *testing.T) {
		_, err := DecodeImage([]byte("data:image/png,abc"))
		if !errors.Is(err, ErrInvalidImage) {
			t.Errorf("expected ErrInvalidImage, got %v", err)
		}
	})

	t.Run("CorruptBase64", func(t *testing.T) {
		_, err := DecodeImage([]byte("data:image/png;base64,!!!"))
		if !errors.Is(err, ErrInvalidImage) {
			t.Errorf("expected ErrInvalidImage, got %v", err)
		}
	})
}

func TestExtractPlate(t *testing.T) {
	ctx := context.Background()

	t.Run("NotConfigured", func(t *testing.T) {
		e := NewExtractor(nil, nil, time.Minute)
		if e.Enabled() {
			t.Error("extractor without detector should be disabled")
		}
		_, err := e.ExtractPlate(ctx, []byte("img"))
		if !errors.Is(err, domain.ErrOCRNotConfigured) {
			t.Errorf("expected ErrOCRNotConfigured, got %v", err)
		}
	})

	t.Run("UpstreamFailure", func(t *testing.T) {
		det := &fakeDetector{err: errors.New("throttled")}
		e := NewExtractor(det, nil, time.Minute)
		_, err := e.ExtractPlate(ctx, []byte("img"))
		if !errors.Is(err, domain.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
	})

	t.Run("DecodesDataURLBeforeDetection", func(t *testing.T) {
		det := &fakeDetector{annotations: []domain.TextAnnotation{{Description: "MH12AB1234"}}}
		e := NewExtractor(det, nil, time.Minute)
		in := []byte("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")))

		res, err := e.ExtractPlate(ctx, in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Success {
			t.Errorf("expected success, got %+v", res)
		}
		if string(det.lastImage) != "jpeg-bytes" {
			t.Errorf("detector got %q", det.lastImage)
		}
	})

	t.Run("CachesResults", func(t *testing.T) {
		det := &fakeDetector{annotations: []domain.TextAnnotation{{Description: "GJ05XY4321", Confidence: 0.9}}}
		lru := cache.NewLRUCache(10)
		defer lru.Close()
		e := NewExtractor(det, lru, time.Minute)

		first, err := e.ExtractPlate(ctx, []byte("same-image"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := e.ExtractPlate(ctx, []byte("same-image"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if det.calls != 1 {
			t.Errorf("expected 1 detector call, got %d", det.calls)
		}
		if second.PlateNumber != first.PlateNumber {
			t.Errorf("cached plate %q, want %q", second.PlateNumber, first.PlateNumber)
		}

		if _, err := e.ExtractPlate(ctx, []byte("other-image")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if det.calls != 2 {
			t.Errorf("expected 2 detector calls, got %d", det.calls)
		}
	})

	t.Run("ErrorsAreNotCached", func(t *testing.T) {
		det := &fakeDetector{err: errors.New("boom")}
		lru := cache.NewLRUCache(10)
		defer lru.Close()
		e := NewExtractor(det, lru, time.Minute)

		_, _ = e.ExtractPlate(ctx, []byte("img"))
		det.err = nil
		det.annotations = []domain.TextAnnotation{{Description: "MH12AB1234"}}

		res, err := e.ExtractPlate(ctx, []byte("img"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Success || det.calls != 2 {
			t.Errorf("expected fresh detection, calls=%d res=%+v", det.calls, res)
		}
	})
}
