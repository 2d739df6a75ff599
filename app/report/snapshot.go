package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMissingField = errors.New("malformed upstream data: missing field")
	ErrNotAnObject  = errors.New("malformed upstream data: record is not an object")
)

// Snapshot is one fetched weather record. It is never modified after
// construction.
type Snapshot struct {
	record map[string]any
}

func NewSnapshot(record map[string]any) *Snapshot {
	return &Snapshot{record: record}
}

// ParseSnapshot decodes a JSON object keeping numbers verbatim, so a
// temperature of "12.0" is rendered as "12.0" and not "12".
func ParseSnapshot(data []byte) (*Snapshot, error) {
	record, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(record), nil
}

func decodeRecord(data []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode weather record: %w", err)
	}

	record, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrNotAnObject
	}

	return record, nil
}

// Record exposes the underlying record. Callers must not modify it.
func (s *Snapshot) Record() map[string]any {
	return s.record
}

// Lookup walks the record along a dotted path such as "location.country".
func (s *Snapshot) Lookup(path string) (any, error) {
	var current any = s.record

	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, path)
		}

		current, ok = obj[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, path)
		}
	}

	return current, nil
}

func (s *Snapshot) text(path string) (string, error) {
	value, err := s.Lookup(path)
	if err != nil {
		return "", err
	}
	return stringify(value), nil
}

// Format renders a single section through the catalog's formatter.
func (s *Snapshot) Format(catalog *Catalog, name Section, escape Escaper) (string, error) {
	formatter, ok := catalog.formatter(name)
	if !ok {
		return "", fmt.Errorf("no formatter for section %q", name)
	}
	if escape == nil {
		escape = PlainText
	}
	return formatter(s, escape)
}

// fields looks up every path and returns the escaped values in order.
func (s *Snapshot) fields(escape Escaper, paths ...string) ([]any, error) {
	result := make([]any, len(paths))
	for i, path := range paths {
		value, err := s.text(path)
		if err != nil {
			return nil, err
		}
		result[i] = escape(value)
	}
	return result, nil
}

func formatLocation(s *Snapshot, escape Escaper) (string, error) {
	values, err := s.fields(escape, "location.country", "location.region")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s, %s", values...), nil
}

func formatLocalTime(s *Snapshot, escape Escaper) (string, error) {
	localTime, err := s.text("location.localtime")
	if err != nil {
		return "", err
	}

	isDay, err := s.Lookup("current.is_day")
	if err != nil {
		return "", err
	}

	glyph := "🌑"
	if truthy(isDay) {
		glyph = "☀️"
	}

	return fmt.Sprintf("Local time:  %s %s", escape(localTime), glyph), nil
}

func formatLatLong(s *Snapshot, escape Escaper) (string, error) {
	values, err := s.fields(escape, "location.lat", "location.lon")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Latitude %s, Longitude %s", values...), nil
}

func formatCondition(s *Snapshot, escape Escaper) (string, error) {
	values, err := s.fields(escape, "current.condition.text")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Condition is %s", values...), nil
}

func formatTemperature(s *Snapshot, escape Escaper) (string, error) {
	values, err := s.fields(escape, "current.temp_c", "current.temp_f")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Temperature %s°C (%s°F)", values...), nil
}

func formatWind(s *Snapshot, escape Escaper) (string, error) {
	values, err := s.fields(escape, "current.wind_mph", "current.wind_kph")
	if err != nil {
		return "", err
	}

	degree, err := s.Lookup("current.wind_degree")
	if err != nil {
		return "", err
	}

	degrees, err := toFloat(degree)
	if err != nil {
		return "", fmt.Errorf("%w: current.wind_degree: %v", ErrMissingField, err)
	}

	values = append(values, escape(compassPoint(degrees)))

	return fmt.Sprintf("Wind speed is %s miles/hour (%s km/h) in the %s direction", values...), nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return "null"
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case json.Number:
		return v.Float64()
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case nil:
		return false
	case string:
		return v != ""
	default:
		f, err := toFloat(v)
		return err == nil && f != 0
	}
}
