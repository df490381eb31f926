// Package ffmpeg builds ffmpeg argument lists for live encoding and offline conversion.
package ffmpeg

import (
	"fmt"
	"strconv"
)

// Presets indexed by the numeric preset setting (0-4)
var Presets = []string{"ultrafast", "fast", "medium", "slow", "slower"}

// DefaultPreset is the preset index used when none is configured
const DefaultPreset = 1

// PresetName resolves a numeric preset
func PresetName(preset int) (string, error) {
	if preset < 0 || preset >= len(Presets) {
		return "", fmt.Errorf("preset %d out of range [0, %d]", preset, len(Presets)-1)
	}
	return Presets[preset], nil
}

// CommandBuilder builds ffmpeg invocations
type CommandBuilder struct {
	Binary string
}

// NewCommandBuilder creates a builder for the given ffmpeg binary
func NewCommandBuilder(binary string) *CommandBuilder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &CommandBuilder{Binary: binary}
}

// LiveParams describes raw RGBA frames piped through stdin
type LiveParams struct {
	Width       int
	Height      int
	FPS         float64
	BitrateKbps int
	Preset      string
	OutputPath  string
}

// Live returns arguments that read rawvideo RGBA on stdin and write H.264 to OutputPath
func (b *CommandBuilder) Live(p LiveParams) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-r", formatFPS(p.FPS),
		"-i", "-",
		"-c:v", "libx264",
		"-preset", p.Preset,
	}
	if p.BitrateKbps > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", p.BitrateKbps))
	}
	args = append(args, "-pix_fmt", "yuv420p", p.OutputPath)
	return args
}

// ConvertParams describes an offline conversion of a recorded raw stream
type ConvertParams struct {
	InputPath  string
	OutputPath string
	Preset     string
	CRF        int
}

// Convert returns arguments that turn a Y4M recording into an Annex B H.264 stream.
// Progress is written to stdout as key=value lines.
func (b *CommandBuilder) Convert(p ConvertParams) []string {
	preset := p.Preset
	if preset == "" {
		preset = "slow"
	}
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", p.InputPath,
		"-c:v", "libx264",
		"-preset", preset,
		"-tune", "film",
		"-crf", strconv.Itoa(p.CRF),
		"-progress", "pipe:1", "-nostats",
		"-f", "h264",
		p.OutputPath,
	}
}

// Remux returns arguments that wrap an H.264 stream into an MP4 container without re-encoding
func (b *CommandBuilder) Remux(h264Path string, fps float64, mp4Path string) []string {
	return []string{"-r", formatFPS(fps), "-i", h264Path, "-c:v", "copy", mp4Path}
}

func formatFPS(fps float64) string {
	if fps <= 0 {
		return "30"
	}
	return strconv.FormatFloat(fps, 'f', -1, 64)
}
