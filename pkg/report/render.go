package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
	"gopkg.in/yaml.v3"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Write renders the report in the given format
func (r *Report) Write(w io.Writer, format Format) error {
	switch format {
	case FormatTable:
		return r.WriteTable(w)
	case FormatJSON:
		return r.WriteJSON(w)
	case FormatYAML:
		return r.WriteYAML(w)
	default:
		return errors.Errorf("unknown output format '%s'", format)
	}
}

// WriteJSON writes the report as indented JSON
func (r *Report) WriteJSON(w io.Writer) error {
	data, err := r.JSON()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return errors.Wrap(err, "failed to write JSON report")
}

// JSON renders the report as indented JSON with a trailing newline
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal report")
	}
	return append(data, '\n'), nil
}

// WriteYAML writes the report as YAML
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "failed to write YAML report")
	}
	return errors.Wrap(enc.Close(), "failed to flush YAML report")
}

// WriteTable writes a summary table of document counts followed by a table
// of every load error and issue
func (r *Report) WriteTable(w io.Writer) error {
	var buf bytes.Buffer

	counts := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(styleCells).
		Headers("KIND", "DOCUMENTS").
		Row("skill", strconv.Itoa(r.Counts.Skill)).
		Row("agent", strconv.Itoa(r.Counts.Agent)).
		Row("reference", strconv.Itoa(r.Counts.Reference)).
		Row("total", strconv.Itoa(r.TotalDocuments))

	fmt.Fprintf(&buf, "Corpus: %s\n%s\n", r.Root, counts.Render())

	if !r.HasProblems() {
		buf.WriteString("\nNo problems found\n")
	} else {
		problems := table.New().
			Border(lipgloss.NormalBorder()).
			StyleFunc(styleCells).
			Headers("PATH", "PROBLEM", "DETAIL")
		for _, e := range r.LoadErrors {
			problems.Row(e.Path, string(e.Kind), e.Message)
		}
		for _, i := range r.Issues {
			problems.Row(i.Path, string(i.Kind), i.Message)
		}
		fmt.Fprintf(&buf, "\n%s\n", problems.Render())
	}

	_, err := w.Write(buf.Bytes())
	return errors.Wrap(err, "failed to write table report")
}

func styleCells(row, _ int) lipgloss.Style {
	if row == table.HeaderRow {
		return headerStyle
	}
	return cellStyle
}

// SaveJSON writes the JSON report to path under a file lock, so readers
// polling the file never observe a partial write
func (r *Report) SaveJSON(path string) error {
	data, err := r.JSON()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create report directory '%s'", dir)
		}
	}

	if err := lockedfile.Write(path, bytes.NewReader(data), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write report to '%s'", path)
	}
	return nil
}
