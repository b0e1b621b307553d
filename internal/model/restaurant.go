package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Restaurant: one record of the list. ID is assigned by the backend and never changes.
type Restaurant struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	City        string `json:"city" yaml:"city"`
}

// CreateRestaurantInput: the only fields forwarded on create. The draft's id is never sent.
type CreateRestaurantInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	City        string `json:"city"`
}

// Input: returns the create payload for r, dropping the identifier.
func (r Restaurant) Input() CreateRestaurantInput {
	return CreateRestaurantInput{
		Name:        r.Name,
		Description: r.Description,
		City:        r.City,
	}
}

// Field: names one column of a Restaurant.
type Field string

const (
	FieldID          Field = "id"
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldCity        Field = "city"
)

// Fields: lists every known field in column order.
var Fields = []Field{FieldID, FieldName, FieldDescription, FieldCity}

// EditableFields: the fields a form may set.
var EditableFields = []Field{FieldName, FieldDescription, FieldCity}

var (
	ErrUnknownField     = errors.New("unknown field")
	ErrFieldNotEditable = errors.New("field is not editable")
)

// ParseField: maps a form field name onto a Field.
func ParseField(name string) (Field, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, f := range Fields {
		if string(f) == normalized {
			return f, nil
		}
	}
	if suggestion := closestField(normalized); suggestion != "" {
		return "", fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownField, name, suggestion)
	}
	return "", fmt.Errorf("%w %q", ErrUnknownField, name)
}

// closestField: returns the known field within two edits of name, if any.
func closestField(name string) Field {
	if name == "" {
		return ""
	}
	best := Field("")
	bestDistance := 3
	for _, f := range Fields {
		d := levenshtein.ComputeDistance(name, string(f))
		if d < bestDistance {
			best = f
			bestDistance = d
		}
	}
	return best
}

func (f Field) Editable() bool {
	return f == FieldName || f == FieldDescription || f == FieldCity
}

// Label: the column heading used by the views.
func (f Field) Label() string {
	switch f {
	case FieldID:
		return "ID"
	case FieldName:
		return "Name"
	case FieldDescription:
		return "Description"
	case FieldCity:
		return "City"
	default:
		return string(f)
	}
}

// Get: returns the value of field f.
func (r Restaurant) Get(f Field) string {
	switch f {
	case FieldID:
		return r.ID
	case FieldName:
		return r.Name
	case FieldDescription:
		return r.Description
	case FieldCity:
		return r.City
	default:
		return ""
	}
}

// With: returns a copy of r with field f set to value. Unknown fields leave r unchanged.
func (r Restaurant) With(f Field, value string) Restaurant {
	switch f {
	case FieldID:
		r.ID = value
	case FieldName:
		r.Name = value
	case FieldDescription:
		r.Description = value
	case FieldCity:
		r.City = value
	}
	return r
}

// EmptyDraft: the mapping that resets every field of a draft.
func EmptyDraft() map[Field]string {
	fields := make(map[Field]string, len(Fields))
	for _, f := range Fields {
		fields[f] = ""
	}
	return fields
}
