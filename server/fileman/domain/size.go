package domain

import "strconv"

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatSize renders bytes with base-1024 units, e.g. FormatSize(1536, 1) == "1.5 KB".
func FormatSize(bytes int64, digits int) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	size := float64(bytes)
	idx := 0
	for size >= 1024 && idx < len(sizeUnits)-1 {
		size /= 1024
		idx++
	}
	return strconv.FormatFloat(size, 'f', digits, 64) + " " + sizeUnits[idx]
}
