package model_test

import (
	"errors"
	"strings"
	"testing"

	"restaurant_live/internal/model"
)

func TestParseField(t *testing.T) {
	cases := map[string]model.Field{
		"name":          model.FieldName,
		" Description ": model.FieldDescription,
		"CITY":          model.FieldCity,
		"id":            model.FieldID,
	}
	for in, want := range cases {
		got, err := model.ParseField(in)
		if err != nil {
			t.Fatalf("ParseField(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseField(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestParseFieldUnknownSuggests(t *testing.T) {
	_, err := model.ParseField("nmae")
	if !errors.Is(err, model.ErrUnknownField) {
		t.Fatalf("Expected ErrUnknownField, got %v", err)
	}
	if !strings.Contains(err.Error(), `did you mean "name"`) {
		t.Errorf("Expected a suggestion for name, got %q", err.Error())
	}

	_, err = model.ParseField("rating")
	if !errors.Is(err, model.ErrUnknownField) {
		t.Fatalf("Expected ErrUnknownField, got %v", err)
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("Expected no suggestion for a distant name, got %q", err.Error())
	}
}

func TestInputDropsID(t *testing.T) {
	r := model.Restaurant{ID: "42", Name: "Le Central", Description: "Bistro", City: "Lyon"}
	in := r.Input()
	want := model.CreateRestaurantInput{Name: "Le Central", Description: "Bistro", City: "Lyon"}
	if in != want {
		t.Errorf("Expected %+v, got %+v", want, in)
	}
}

func TestWithLeavesOtherFields(t *testing.T) {
	before := model.Restaurant{Name: "a", Description: "b", City: "c"}
	after := before.With(model.FieldCity, "Lyon")
	if after.City != "Lyon" || after.Name != "a" || after.Description != "b" || after.ID != "" {
		t.Errorf("Unexpected result %+v", after)
	}
	if before.City != "c" {
		t.Errorf("Expected original to stay unchanged, got %+v", before)
	}
}
