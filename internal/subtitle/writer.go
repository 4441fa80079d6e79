package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// encodes the track in the given format
func Encode(w io.Writer, sub *Subtitle, format Format) error {
	bw := bufio.NewWriter(w)

	var stamp func(time.Duration) string
	switch format {
	case FormatSRT:
		stamp = formatSRTTime
	case FormatVTT:
		stamp = formatVTTTime
		fmt.Fprint(bw, "WEBVTT\n\n")
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	for i, entry := range sub.Entries {
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1,
			stamp(entry.StartTime),
			stamp(entry.EndTime),
			entry.Text,
		)
	}

	return bw.Flush()
}

// writes the track to path, creating parent directories
func Write(sub *Subtitle, path string, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, sub, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// 00:00:00,000
func formatSRTTime(d time.Duration) string {
	h, m, s, ms := split(d)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// 00:00:00.000
func formatVTTTime(d time.Duration) string {
	h, m, s, ms := split(d)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func split(d time.Duration) (h, m, s, ms int) {
	if d < 0 {
		d = 0
	}
	total := int(d.Milliseconds())
	return total / 3600000, total / 60000 % 60, total / 1000 % 60, total % 1000
}
