package leads

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{"id", "name", "email", "phone", "company", "source", "status", "score", "notes", "created_at", "updated_at"}

var salesforceHeader = []string{"FirstName", "LastName", "Email", "Phone", "Company", "LeadSource", "Status", "Description", "CreatedDate"}

// Export writes leads in one of csv, json or salesforce.
func Export(w io.Writer, leads []Lead, format string) error {
	switch format {
	case "csv":
		return exportCSV(w, leads)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if leads == nil {
			leads = []Lead{}
		}
		return enc.Encode(leads)
	case "salesforce":
		return exportSalesforce(w, leads)
	default:
		return fmt.Errorf("unknown export format %q (want csv, json or salesforce)", format)
	}
}

func exportCSV(w io.Writer, leads []Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, l := range leads {
		row := []string{
			strconv.Itoa(l.ID), l.Name, l.Email, l.Phone, l.Company, l.Source, l.Status,
			strconv.Itoa(l.Score), l.Notes, formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportSalesforce(w io.Writer, leads []Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(salesforceHeader); err != nil {
		return err
	}
	for _, l := range leads {
		first, last := splitName(l.Name)
		row := []string{
			first, last, l.Email, l.Phone, l.Company, l.Source,
			capitalize(l.Status), l.Notes, formatTime(l.CreatedAt),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Import reads csv or json. JSON may be a single object or an array.
// Ids, scores and timestamps in the input are ignored.
func Import(r io.Reader, format string) ([]NewLead, error) {
	switch format {
	case "csv":
		return importCSV(r)
	case "json":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		data = bytes.TrimSpace(data)
		if len(data) > 0 && data[0] == '{' {
			var one NewLead
			if err := json.Unmarshal(data, &one); err != nil {
				return nil, fmt.Errorf("parse json lead: %w", err)
			}
			return []NewLead{one}, nil
		}
		var many []NewLead
		if err := json.Unmarshal(data, &many); err != nil {
			return nil, fmt.Errorf("parse json leads: %w", err)
		}
		return many, nil
	default:
		return nil, fmt.Errorf("unknown import format %q (want csv or json)", format)
	}
}

func importCSV(r io.Reader) ([]NewLead, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	col := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	out := make([]NewLead, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, NewLead{
			Name:    get(row, "name"),
			Email:   get(row, "email"),
			Phone:   get(row, "phone"),
			Company: get(row, "company"),
			Source:  get(row, "source"),
			Status:  get(row, "status"),
			Notes:   get(row, "notes"),
		})
	}
	return out, nil
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
