package plate

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/opensource-finance/axle/internal/domain"
)

// RekognitionAPI is the subset of the Rekognition client used for text detection.
type RekognitionAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// RekognitionDetector adapts AWS Rekognition DetectText to domain.TextDetector.
type RekognitionDetector struct {
	client RekognitionAPI
}

// NewRekognitionDetector wraps an existing client.
func NewRekognitionDetector(client RekognitionAPI) *RekognitionDetector {
	return &RekognitionDetector{client: client}
}

// NewRekognitionDetectorFromEnv builds a client from the default AWS
// credential chain for the given region.
func NewRekognitionDetectorFromEnv(ctx context.Context, region string) (*RekognitionDetector, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewRekognitionDetector(rekognition.NewFromConfig(cfg)), nil
}

// DetectText returns the joined LINE detections as the first annotation,
// followed by one annotation per WORD. Confidence is scaled to 0-1.
func (d *RekognitionDetector) DetectText(ctx context.Context, image []byte) ([]domain.TextAnnotation, error) {
	out, err := d.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: image},
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition: %w", err)
	}

	var (
		lines   []string
		lineSum float64
		words   []domain.TextAnnotation
	)
	for _, det := range out.TextDetections {
		text := aws.ToString(det.DetectedText)
		if text == "" {
			continue
		}
		conf := float64(aws.ToFloat32(det.Confidence)) / 100

		switch det.Type {
		case types.TextTypesLine:
			lines = append(lines, text)
			lineSum += conf
		case types.TextTypesWord:
			words = append(words, domain.TextAnnotation{Description: text, Confidence: conf})
		}
	}

	if len(lines) == 0 {
		if len(words) == 0 {
			return nil, nil
		}
		// No LINE blocks: rebuild the full text from words.
		parts := make([]string, len(words))
		sum := 0.0
		for i, w := range words {
			parts[i] = w.Description
			sum += w.Confidence
		}
		full := domain.TextAnnotation{Description: strings.Join(parts, " "), Confidence: sum / float64(len(words))}
		return append([]domain.TextAnnotation{full}, words...), nil
	}

	full := domain.TextAnnotation{
		Description: strings.Join(lines, "\n"),
		Confidence:  lineSum / float64(len(lines)),
	}
	return append([]domain.TextAnnotation{full}, words...), nil
}
