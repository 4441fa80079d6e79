// Package subtitle renders a transcript as an SRT or WebVTT sidecar file.
package subtitle

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// single cue
type Entry struct {
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

// complete subtitle track
type Subtitle struct {
	Entries  []Entry
	Language string
}

type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// timed transcript text
type Segment struct {
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatSRT, FormatVTT:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported subtitle format: %q", s)
	}
}

// subtitle format based on file extension, SRT when unknown
func FormatFromPath(path string) Format {
	if f, err := ParseFormat(filepath.Ext(path)); err == nil {
		return f
	}
	return FormatSRT
}

func (f Format) Extension() string {
	return "." + string(f)
}
