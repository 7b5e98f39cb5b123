package dupreclaim

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

var sizeSuffixes = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// HumanSize formats a byte count with binary multiples and up to two
// decimals, e.g. 2048 -> "2.0 KB", 1536 -> "1.5 KB", 0 -> "0 B"
func HumanSize(size int64) string {
	if size == 0 {
		return "0 B"
	}

	neg := ""
	if size < 0 {
		neg = "-"
		size = -size
	}

	exponent := int(math.Floor(math.Log(float64(size)) / math.Log(1024)))
	if exponent >= len(sizeSuffixes) {
		exponent = len(sizeSuffixes) - 1
	}
	// Guard against log rounding just below an exact power of 1024
	for exponent+1 < len(sizeSuffixes) && float64(size) >= math.Pow(1024, float64(exponent+1)) {
		exponent++
	}

	value := math.Round(float64(size)/math.Pow(1024, float64(exponent))*100) / 100
	text := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.Contains(text, ".") {
		text += ".0"
	}
	return fmt.Sprintf("%s%s %s", neg, text, sizeSuffixes[exponent])
}

// ParseHumanSize parses human-readable size strings (e.g., "2M", "512k", "1G")
func ParseHumanSize(sizeStr string) (int, error) {
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))

	var numPart string
	var suffix string
	for i, char := range sizeStr {
		if char >= '0' && char <= '9' || char == '.' {
			numPart += string(char)
		} else {
			suffix = strings.TrimSpace(sizeStr[i:])
			break
		}
	}

	if numPart == "" {
		return 0, fmt.Errorf("no numeric part in size string: %s", sizeStr)
	}

	num, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric part in size string %s: %w", sizeStr, err)
	}

	var multiplier int64
	switch suffix {
	case "", "B":
		multiplier = 1
	case "K", "KB", "KIB":
		multiplier = 1024
	case "M", "MB", "MIB":
		multiplier = 1024 * 1024
	case "G", "GB", "GIB":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown size suffix: %s", suffix)
	}

	result := int64(num * float64(multiplier))
	if result <= 0 {
		return 0, fmt.Errorf("size must be positive: %s", sizeStr)
	}
	if result > int64(^uint(0)>>1) {
		return 0, fmt.Errorf("size too large: %s", sizeStr)
	}

	return int(result), nil
}

// medianInt64 returns the median, averaging (and truncating) the middle pair
// of an even-length input. values must not be empty.
func medianInt64(values []int64) int64 {
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	a, b := sorted[mid-1], sorted[mid]
	// a/2 + b/2 avoids overflow on very large sizes
	return a/2 + b/2 + (a%2+b%2)/2
}

// medianTime returns the median timestamp at nanosecond precision
func medianTime(times []time.Time) time.Time {
	nanos := make([]int64, len(times))
	for i, t := range times {
		nanos[i] = t.UnixNano()
	}
	return time.Unix(0, medianInt64(nanos))
}
