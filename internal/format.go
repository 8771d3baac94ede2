package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RenderTranscript renders an acquired transcript in the requested output
// format: plain text, SRT subtitles built from the segment timing, or the
// full result as JSON.
func RenderTranscript(result *TranscriptResult, format OutputFormat) (string, error) {
	switch format {
	case FormatText, "":
		return result.Text, nil
	case FormatSubtitle:
		return renderSRT(result.Segments), nil
	case FormatStructured:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling transcript: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("unknown output format %q", format)
}

func renderSRT(segments []Segment) string {
	var sb strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&sb, "%d\n", i+1)
		fmt.Fprintf(&sb, "%s --> %s\n", srtTimestamp(seg.Start), srtTimestamp(seg.Start+seg.Duration))
		sb.WriteString(seg.Text)
		sb.WriteString("\n")
		if i < len(segments)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// srtTimestamp formats seconds as the SRT HH:MM:SS,mmm timestamp.
func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
