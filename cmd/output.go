package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"restaurant_live/internal/model"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func parseFormat(raw string) (string, error) {
	switch raw {
	case formatTable, formatJSON, formatYAML:
		return raw, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", raw)
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func printRestaurants(w io.Writer, format string, restaurants []model.Restaurant) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(restaurants)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(restaurants); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case formatTable:
		if len(restaurants) == 0 {
			_, err := fmt.Fprintln(w, "No restaurants.")
			return err
		}
		rows := make([][]string, 0, len(restaurants))
		for i, r := range restaurants {
			rows = append(rows, []string{strconv.Itoa(i + 1), r.ID, r.Name, r.Description, r.City})
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("#", model.FieldID.Label(), model.FieldName.Label(), model.FieldDescription.Label(), model.FieldCity.Label()).
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		_, err := fmt.Fprintln(w, t.Render())
		return err
	default:
		_, err := parseFormat(format)
		return err
	}
}

// printRestaurant: writes one streamed record: a single line for table output, one document
// otherwise.
func printRestaurant(w io.Writer, format string, r model.Restaurant) error {
	switch format {
	case formatJSON:
		return json.NewEncoder(w).Encode(r)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case formatTable:
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Description, r.City)
		return err
	default:
		_, err := parseFormat(format)
		return err
	}
}
