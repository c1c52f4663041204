// ABOUTME: Writes extracted trajectories in the formats nodal-analysis tools read
// ABOUTME: JSON and YAML carry the full result; CSV carries the point table only
package nodal

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harper/wellrag/internal/models"
)

// Format is an export encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts json, yaml/yml and csv
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown export format %q (use json, yaml or csv)", s)
}

// FormatFromPath picks the format from a file extension, defaulting to JSON
func FormatFromPath(path string) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return FormatJSON
	}
	return f
}

// Export writes the trajectory to w
func Export(w io.Writer, result models.TrajectoryResult, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, result)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteFile exports to path, creating parent directories
func WriteFile(path string, result models.TrajectoryResult, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Export(f, result, format); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeCSV(w io.Writer, result models.TrajectoryResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"md", "tvd", "id", "unit", "source_page"}); err != nil {
		return err
	}
	for _, p := range result.Points {
		unit := p.Unit
		if unit == "" {
			unit = models.UnitMetres
		}
		if err := cw.Write([]string{
			formatFloat(p.MeasuredDepth),
			formatFloat(p.TrueVerticalDepth),
			formatFloat(p.InnerDiameter),
			unit,
			strconv.Itoa(p.SourcePage),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
