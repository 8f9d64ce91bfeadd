// Package results orders detection tables for the dashboard.
package results

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"aivision/internal/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Column identifies a sortable column of the results table.
type Column int

const (
	ColumnNone Column = iota
	ColumnObject
	ColumnConfidence
	ColumnBoundingBoxArea
)

var columnNames = map[Column]string{
	ColumnNone:            "",
	ColumnObject:          "object",
	ColumnConfidence:      "confidence",
	ColumnBoundingBoxArea: "boundingBox",
}

func (c Column) String() string {
	if name, ok := columnNames[c]; ok {
		return name
	}
	return fmt.Sprintf("column(%d)", int(c))
}

// ParseColumn accepts column names ("object", "confidence", "boundingBox",
// "area") in any case and the dashboard's header indices "0", "1" and "2".
// An empty string selects ColumnNone.
func ParseColumn(s string) (Column, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ColumnNone, nil
	case "object", "0":
		return ColumnObject, nil
	case "confidence", "1":
		return ColumnConfidence, nil
	case "boundingbox", "bounding_box", "area", "boundingboxarea", "2":
		return ColumnBoundingBoxArea, nil
	}
	return ColumnNone, fmt.Errorf("unknown sort column %q", s)
}

func (c Column) MarshalJSON() ([]byte, error) {
	if c == ColumnNone {
		return []byte("null"), nil
	}
	return json.Marshal(c.String())
}

func (c *Column) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ColumnNone
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Header index sent as a bare number.
		var idx int
		if errIdx := json.Unmarshal(data, &idx); errIdx != nil {
			return fmt.Errorf("invalid sort column: %s", data)
		}
		raw = strconv.Itoa(idx)
	}

	parsed, err := ParseColumn(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Direction is the ordering applied to the active column.
type Direction int

const (
	Descending Direction = iota
	Ascending
)

func (d Direction) String() string {
	if d == Ascending {
		return "asc"
	}
	return "desc"
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch strings.ToLower(raw) {
	case "asc", "ascending":
		*d = Ascending
	case "desc", "descending", "":
		*d = Descending
	default:
		return fmt.Errorf("invalid sort direction %q", raw)
	}
	return nil
}

// SortState is the active column and direction of the results table.
// The zero value is the initial state: no column, Descending.
type SortState struct {
	Column    Column    `json:"column"`
	Direction Direction `json:"direction"`
}

// Next returns the state produced by selecting column while in s.
// Selecting the active column while Ascending flips it to Descending; any
// other selection lands on Ascending. ColumnNone resets to the initial state.
func (s SortState) Next(column Column) SortState {
	if column == ColumnNone {
		return SortState{}
	}
	if s.Column == column && s.Direction == Ascending {
		return SortState{Column: column, Direction: Descending}
	}
	return SortState{Column: column, Direction: Ascending}
}

// Sort returns a sorted copy of detections and the new sort state.
// The input slice is never modified. Rows with equal keys have no defined
// relative order.
func Sort(detections []models.Detection, column Column, current SortState) ([]models.Detection, SortState) {
	next := current.Next(column)
	sorted := slices.Clone(detections)
	if sorted == nil {
		sorted = []models.Detection{}
	}

	compare := comparator(next.Column)
	if compare == nil {
		return sorted, next
	}

	if next.Direction == Descending {
		asc := compare
		compare = func(a, b models.Detection) int { return asc(b, a) }
	}
	slices.SortFunc(sorted, compare)

	return sorted, next
}

// comparator returns the ascending comparison for column, or nil for
// ColumnNone.
func comparator(column Column) func(a, b models.Detection) int {
	switch column {
	case ColumnObject:
		// Collators keep internal buffers, so each sort gets its own.
		collator := collate.New(language.Und)
		return func(a, b models.Detection) int {
			return collator.CompareString(a.Object, b.Object)
		}
	case ColumnConfidence:
		return func(a, b models.Detection) int {
			return cmp.Compare(a.Confidence, b.Confidence)
		}
	case ColumnBoundingBoxArea:
		return func(a, b models.Detection) int {
			return cmp.Compare(models.Area(a.BoundingBox), models.Area(b.BoundingBox))
		}
	}
	return nil
}
