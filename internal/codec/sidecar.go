package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Sidecar describes a raw recording for the offline converter
type Sidecar struct {
	RawFile       string  `json:"raw_file"`
	Format        string  `json:"format"`
	TargetH264    string  `json:"target_h264"`
	TargetMP4     string  `json:"target_mp4,omitempty"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	FPS           float64 `json:"fps"`
	FrameCount    uint64  `json:"frame_count"`
	FramesDropped uint64  `json:"frames_dropped"`
	BitrateKbps   int     `json:"bitrate_kbps"`
	Preset        string  `json:"preset"`
}

// NewSidecar derives the sidecar for a raw stream written at rawPath
func NewSidecar(rawPath string, cfg VideoConfig, frames, dropped uint64) Sidecar {
	base := strings.TrimSuffix(rawPath, extOf(rawPath))
	return Sidecar{
		RawFile:       rawPath,
		Format:        "y4m",
		TargetH264:    base + ".h264",
		TargetMP4:     base + ".mp4",
		Width:         cfg.Width,
		Height:        cfg.Height,
		FPS:           cfg.FPS,
		FrameCount:    frames,
		FramesDropped: dropped,
		BitrateKbps:   cfg.BitrateKbps,
		Preset:        cfg.Preset,
	}
}

// SidecarPath returns the sidecar location for a raw stream
func SidecarPath(rawPath string) string {
	return rawPath + ".json"
}

// Validate checks the fields the converter needs
func (s Sidecar) Validate() error {
	var errs []error
	if s.RawFile == "" {
		errs = append(errs, errors.New("raw_file is required"))
	}
	if s.TargetH264 == "" {
		errs = append(errs, errors.New("target_h264 is required"))
	}
	if s.Width <= 0 || s.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid dimensions %dx%d", s.Width, s.Height))
	}
	if s.FrameCount == 0 {
		errs = append(errs, errors.New("frame_count must be greater than 0"))
	}
	return errors.Join(errs...)
}

// WriteSidecar writes s as indented JSON
func WriteSidecar(path string, s Sidecar) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sidecar: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	return nil
}

// ReadSidecar loads and validates a sidecar file
func ReadSidecar(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse sidecar: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sidecar: %w", err)
	}
	return &s, nil
}

func extOf(path string) string {
	slash := strings.LastIndexAny(path, `/\`)
	dot := strings.LastIndexByte(path, '.')
	if dot <= slash+1 {
		return ""
	}
	return path[dot:]
}
