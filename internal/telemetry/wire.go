package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// naiveLayouts are ISO timestamps without a zone, as emitted by Python's
// datetime.isoformat(). They are read in local time, the way a browser
// Date would read them.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// epochSecondsLimit separates epoch seconds from epoch milliseconds.
// 1e11 seconds is year 5138; 1e11 milliseconds is 1973.
const epochSecondsLimit = 1e11

// ParseTimestamp parses the timestamp forms accepted on the wire.
func ParseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		return parseTimeString(s)
	}

	n, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %s", raw)
	}
	return epochToTime(n), nil
}

func parseTimeString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return epochToTime(n), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func epochToTime(n float64) time.Time {
	if math.Abs(n) < epochSecondsLimit {
		sec, frac := math.Modf(n)
		return time.Unix(int64(sec), int64(frac*1e9))
	}
	return time.UnixMilli(int64(n))
}

// MarshalJSON encodes a point as [timestamp, value].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.Time.Format(time.RFC3339Nano), p.Value})
}

// UnmarshalJSON decodes a [timestamp, value] pair.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("point must be a [timestamp, value] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("point must have 2 elements, got %d", len(pair))
	}

	ts, err := ParseTimestamp(pair[0])
	if err != nil {
		return err
	}

	var value float64
	if err := json.Unmarshal(pair[1], &value); err != nil {
		return fmt.Errorf("invalid point value %s: %w", pair[1], err)
	}

	p.Time = ts
	p.Value = value
	return nil
}

// UnmarshalJSON decodes a series and puts it in time order.
func (s *Series) UnmarshalJSON(data []byte) error {
	var points []Point
	if err := json.Unmarshal(data, &points); err != nil {
		return err
	}
	*s = Series(points).Normalize()
	return nil
}

type entityJSON struct {
	ID        json.RawMessage `json:"id"`
	Name      string          `json:"name"`
	Address   string          `json:"address,omitempty"`
	IPAddress string          `json:"ip_address,omitempty"`
}

// MarshalJSON encodes an entity with the address under both keys so older
// consumers keep working.
func (e Entity) MarshalJSON() ([]byte, error) {
	id, err := json.Marshal(e.ID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entityJSON{ID: id, Name: e.Name, Address: e.Address, IPAddress: e.Address})
}

// UnmarshalJSON accepts a string or numeric id and either address key.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw entityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := decodeID(raw.ID)
	if err != nil {
		return err
	}

	e.ID = id
	e.Name = raw.Name
	e.Address = raw.Address
	if e.Address == "" {
		e.Address = raw.IPAddress
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("entity is missing an id")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("entity id must be a string or number: %s", raw)
	}
	return n.String(), nil
}
