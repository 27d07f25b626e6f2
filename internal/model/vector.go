package model

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Vector is a dense embedding stored in a pgvector column.
type Vector []float32

// Value serializes the vector to the pgvector text format "[x,y,z]".
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String(), nil
}

// Scan parses the pgvector text format.
func (v *Vector) Scan(src any) error {
	var s string
	switch t := src.(type) {
	case nil:
		*v = nil
		return nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return fmt.Errorf("cannot scan %T into Vector", src)
	}

	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return fmt.Errorf("malformed vector literal")
	}
	s = s[1 : len(s)-1]
	if s == "" {
		*v = Vector{}
		return nil
	}

	parts := strings.Split(s, ",")
	out := make(Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return fmt.Errorf("malformed vector element %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	*v = out
	return nil
}

// GormDataType tells gorm the column type for migrations.
func (Vector) GormDataType() string {
	return "vector(1536)"
}
