package cli

import (
	"fmt"
	"time"
)

// FormatDuration formats d to a short human readable string.
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	secs := float64(ms) / 1000
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	secs = secs - float64(mins*60)
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}

// FormatSampleRate formats a sample rate in Hz, e.g. "24kHz" or "22.05kHz".
func FormatSampleRate(hz int) string {
	if hz < 1000 {
		return fmt.Sprintf("%dHz", hz)
	}
	if hz%1000 == 0 {
		return fmt.Sprintf("%dkHz", hz/1000)
	}
	return fmt.Sprintf("%gkHz", float64(hz)/1000)
}

// Truncate shortens s to at most n runes, marking the cut with "…".
func Truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(runes[:n-1]) + "…"
}
