package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"io"

	"github.com/disintegration/imaging"
)

const (
	// LogoSize is the bounding box a logo is fitted into.
	LogoSize = 256

	// MaxLogoUploadSize bounds the raw upload.
	MaxLogoUploadSize = 5 << 20
)

// LogoProcessor normalises uploaded logos.
type LogoProcessor interface {
	// Process fits the image into LogoSize x LogoSize, preserving aspect
	// ratio, and returns it as PNG.
	Process(data io.Reader) ([]byte, error)
}

type imagingLogoProcessor struct{}

// NewLogoProcessor creates a LogoProcessor backed by the imaging library.
func NewLogoProcessor() LogoProcessor {
	return &imagingLogoProcessor{}
}

func (p *imagingLogoProcessor) Process(data io.Reader) ([]byte, error) {
	img, _, err := image.Decode(io.LimitReader(data, MaxLogoUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decode logo: %w", err)
	}

	// Small logos are kept at their size; imaging.Fit never upscales.
	fitted := imaging.Fit(img, LogoSize, LogoSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode logo: %w", err)
	}
	return buf.Bytes(), nil
}
