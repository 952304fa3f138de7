package edf

import "strings"

// ExtractField decodes field f for every channel of a column-major channel
// header block into dst, one entry per channel.
//
// The values for f start at f.Offset*len(dst) and are stored back to back,
// f.Length bytes each. No bounds checks are performed: the caller validates
// the signal count against the length of raw first.
func ExtractField(raw []byte, f Field, dst []ChannelHeader) {
	base := f.Offset * len(dst)
	for i := range dst {
		start := base + i*f.Length
		dst[i].setField(f, trimField(raw[start:start+f.Length]))
	}
}

// extractMainField returns the trimmed text of f from a main header block.
func extractMainField(raw []byte, f Field) string {
	return trimField(raw[f.Offset : f.Offset+f.Length])
}

// trimField strips the space padding and any NUL bytes left by writers that
// zero-fill rather than space-fill.
func trimField(b []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(b), "\x00"))
}
