package table

import (
	"math"
	"strconv"
	"strings"
)

// missingMarkers are cell texts that mean "no value" in the source files.
var missingMarkers = map[string]bool{
	"": true, "-": true, "- -": true, "--": true, "na": true, "n/a": true,
	"nan": true, "null": true, "s/i": true, "*": true, "<nil>": true,
}

// ParseDecimal converts a numeric cell written with either '.' or ',' as the
// decimal separator. When both appear, the rightmost one is the decimal
// separator and the other groups thousands; a separator repeated more than
// once is always a thousands separator. Unparseable cells report ok=false
// and must be treated as missing, never as zero.
func ParseDecimal(s string) (v float64, ok bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if missingMarkers[strings.ToLower(s)] {
		return 0, false
	}

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case dot >= 0 && strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseCode parses an integer identifier such as a region or commune code.
// Workbooks often store codes as floats ("13101.0"), which are accepted when
// they have no fractional part.
func ParseCode(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	v, ok := ParseDecimal(s)
	if !ok || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}
