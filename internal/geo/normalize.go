package geo

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var (
	fractionPattern = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)\s*/\s*(-?\d+(?:\.\d+)?)$`)
	numberToken     = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	// A hemisphere letter or word that is not part of a longer word, so the
	// "e" in "deg" is not taken for East.
	hemisphereToken = regexp.MustCompile(`(?i)(?:^|[^a-z])(north|south|east|west|n|s|e|w)(?:[^a-z]|$)`)
)

// ToNumber coerces a single scalar EXIF value into a finite float.
//
// Accepted shapes are numbers, "n/d" fraction strings, numeric strings,
// Rational values and objects carrying numerator/num plus denominator/den
// or a nested value. Sequences are never scalars and yield false.
func ToNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		return parseNumeric(string(t))
	case string:
		return stringToNumber(t)
	case Rational:
		return t.Float()
	case *Rational:
		if t == nil {
			return 0, false
		}
		return t.Float()
	case map[string]any:
		return objectToNumber(t)
	}
	return 0, false
}

func stringToNumber(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if m := fractionPattern.FindStringSubmatch(trimmed); m != nil {
		num, numOK := parseNumeric(m[1])
		den, denOK := parseNumeric(m[2])
		if numOK && denOK && den != 0 {
			return finite(num / den)
		}
	}
	return parseNumeric(trimmed)
}

func objectToNumber(obj map[string]any) (float64, bool) {
	num := firstPresent(obj, "numerator", "num")
	den := firstPresent(obj, "denominator", "den")
	if num != nil && den != nil {
		n, nOK := ToNumber(num)
		d, dOK := ToNumber(den)
		if nOK && dOK && d != 0 {
			return finite(n / d)
		}
	}
	if value, ok := obj["value"]; ok && value != nil {
		return ToNumber(value)
	}
	return 0, false
}

// ToDecimalDegrees converts a raw GPS value into decimal degrees. A sequence
// is read as [degrees, minutes, seconds]; free text is scanned for up to
// three numeric tokens as a last resort. A "n/0" fraction yields false.
func ToDecimalDegrees(v any) (float64, bool) {
	if parts, ok := sequence(v); ok && len(parts) > 0 {
		deg, ok := ToNumber(parts[0])
		if !ok {
			return 0, false
		}
		return finite(deg + component(parts, 1)/60 + component(parts, 2)/3600)
	}

	if n, ok := ToNumber(v); ok {
		return n, true
	}

	s, isString := v.(string)
	if !isString {
		return 0, false
	}
	if fractionPattern.MatchString(strings.TrimSpace(s)) {
		// a fraction that failed to divide is not free text
		return 0, false
	}
	tokens := numberToken.FindAllString(s, 3)
	if len(tokens) == 0 {
		return 0, false
	}
	values := [3]float64{}
	for i, tok := range tokens {
		f, ok := parseNumeric(tok)
		if !ok {
			return 0, false
		}
		values[i] = f
	}
	return finite(values[0] + values[1]/60 + values[2]/3600)
}

// ParseCoordinate resolves value to decimal degrees and applies the
// hemisphere from ref. Only the first character of ref is inspected: S and W
// force a negative result, N and E a positive one. Without a ref, a
// hemisphere letter embedded in a string value is used instead.
func ParseCoordinate(value, ref any) (float64, bool) {
	decimal, ok := ToDecimalDegrees(value)
	if !ok {
		return 0, false
	}

	direction := ""
	if s, isString := ref.(string); isString {
		direction = strings.TrimSpace(s)
	}
	if direction == "" {
		if s, isString := value.(string); isString {
			direction = Hemisphere(s)
		}
	}

	result := decimal
	if direction != "" {
		switch strings.ToUpper(direction[:1]) {
		case "S", "W":
			result = -math.Abs(decimal)
		case "N", "E":
			result = math.Abs(decimal)
		}
	}
	return finite(result)
}

// Hemisphere returns the first standalone hemisphere letter or word found in
// s, upper-cased to a single letter, or "" when there is none.
func Hemisphere(s string) string {
	m := hemisphereToken.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1][:1])
}

func component(parts []any, i int) float64 {
	if i >= len(parts) {
		return 0
	}
	if f, ok := ToNumber(parts[i]); ok {
		return f
	}
	return 0
}

// sequence flattens any slice or array into []any.
func sequence(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if parts, ok := v.([]any); ok {
		return parts, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		// raw byte payloads are not coordinates
		return nil, false
	}
	parts := make([]any, rv.Len())
	for i := range parts {
		parts[i] = rv.Index(i).Interface()
	}
	return parts, true
}

func firstPresent(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// parseNumeric rejects the empty string, which is not a number here.
func parseNumeric(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if !isFinite(f) {
		return 0, false
	}
	return f, true
}
