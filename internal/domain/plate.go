package domain

import "context"

// TextAnnotation is a block of text reported by an OCR provider.
// By provider convention the first annotation of a detection holds the whole
// detected text and the following ones hold individual tokens.
type TextAnnotation struct {
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"` // 0-1, zero when the provider reports none
}

// TextDetector is the generic text-detection capability of an OCR provider.
type TextDetector interface {
	DetectText(ctx context.Context, image []byte) ([]TextAnnotation, error)
}

// PlateResult is the outcome of extracting a registration number from an image.
// Failure results still carry FullText so the image can be reviewed manually.
type PlateResult struct {
	Success          bool     `json:"success"`
	Text             string   `json:"text,omitempty"`
	PlateNumber      string   `json:"plateNumber,omitempty"`
	FullText         string   `json:"fullText"`
	Confidence       float64  `json:"confidence,omitempty"`
	DetectedPatterns []string `json:"detectedPatterns,omitempty"`
	Message          string   `json:"message,omitempty"`
}
