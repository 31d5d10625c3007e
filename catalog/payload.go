package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Wire keys of the nested collections a package save may carry.
const (
	keyDestinations = "package_destinations"
	keyDays         = "itinerary_days"
	keyInclusions   = "inclusions"
	keyExclusions   = "exclusions"
	keyHighlights   = "highlights"

	dayImagePrefix = "itinerary_image_"
)

var nestedKeys = []string{keyDestinations, keyDays, keyInclusions, keyExclusions, keyHighlights}

// looseInt accepts a JSON number, a numeric string, null or "". Anything it
// cannot read is left unset rather than failing the payload.
type looseInt struct {
	N     int
	Valid bool
}

func (l *looseInt) UnmarshalJSON(b []byte) error {
	*l = looseInt{}
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	if n, err := strconv.Atoi(s); err == nil {
		*l = looseInt{N: n, Valid: true}
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*l = looseInt{N: int(f), Valid: true}
	}
	return nil
}

type destinationInput struct {
	Destination string   `json:"destination"`
	Name        string   `json:"name"`
	Nights      looseInt `json:"nights"`
}

func (d destinationInput) name() string {
	if d.Destination != "" {
		return strings.TrimSpace(d.Destination)
	}
	return strings.TrimSpace(d.Name)
}

type dayInput struct {
	Day            looseInt `json:"day"`
	DayNumber      looseInt `json:"day_number"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	MasterTemplate looseInt `json:"master_template"`
}

// number is the payload's day number, falling back to the 1-based position.
func (d dayInput) number(index int) int {
	switch {
	case d.DayNumber.Valid && d.DayNumber.N > 0:
		return d.DayNumber.N
	case d.Day.Valid && d.Day.N > 0:
		return d.Day.N
	}
	return index + 1
}

// textItem reads either "text" or {"text": "..."}.
type textItem string

func (t *textItem) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = textItem(s)
		return nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("list item must be a string or {\"text\": ...}")
	}
	*t = textItem(obj.Text)
	return nil
}

// nested holds the child collections of a save. A nil slice pointer means the
// key was absent and the stored children are kept.
type nested struct {
	Destinations *[]destinationInput
	Days         *[]dayInput
	Inclusions   *[]string
	Exclusions   *[]string
	Highlights   *[]string
}

// parseNested decodes the raw value of every nested key that is present.
// Values may be a JSON document or, from multipart forms, a string holding one.
func parseNested(raw map[string][]byte) (nested, error) {
	var n nested
	for _, key := range nestedKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		v = unwrapString(v)
		if len(bytes.TrimSpace(v)) == 0 || string(bytes.TrimSpace(v)) == "null" {
			v = []byte("[]")
		}

		var err error
		switch key {
		case keyDestinations:
			var items []destinationInput
			err = json.Unmarshal(v, &items)
			n.Destinations = &items
		case keyDays:
			var items []dayInput
			err = json.Unmarshal(v, &items)
			n.Days = &items
		default:
			var items []textItem
			err = json.Unmarshal(v, &items)
			texts := cleanTexts(items)
			switch key {
			case keyInclusions:
				n.Inclusions = &texts
			case keyExclusions:
				n.Exclusions = &texts
			case keyHighlights:
				n.Highlights = &texts
			}
		}
		if err != nil {
			return nested{}, fmt.Errorf("%s: invalid JSON: %v", key, err)
		}
	}
	return n, nil
}

// unwrapString returns the content of a JSON string literal, so a JSON body
// may send nested lists either inline or as encoded strings.
func unwrapString(v []byte) []byte {
	v = bytes.TrimSpace(v)
	if len(v) > 0 && v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return []byte(s)
		}
	}
	return v
}

func cleanTexts(items []textItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(string(it)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
