package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

var columns = []string{
	"name", "technology", "carrier", "area", "kind", "sign",
	"bus0", "bus1", "bus2", "capacity", "marginal_cost", "qualifier", "build_year",
}

// Read decodes catalog rows from CSV. The header row is required and must
// match the reference schema exactly; the schema is owned by the upstream
// capacity-data pipeline and treated as read-only ground truth.
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("catalog header: %w", err)
	}
	if len(header) != len(columns) {
		return nil, fmt.Errorf("catalog header: expected %d columns, got %d", len(columns), len(header))
	}
	for i, name := range columns {
		if header[i] != name {
			return nil, fmt.Errorf("catalog header: column %d is %q, expected %q", i, header[i], name)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog line %d: %w", line, err)
		}
		row, err := decodeRecord(record)
		if err != nil {
			return nil, fmt.Errorf("catalog line %d: %w", line, err)
		}
		if err := row.Validate(); err != nil {
			return nil, fmt.Errorf("catalog line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadFile loads and validates a catalog CSV from disk.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Write encodes rows as CSV in the reference schema.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Name,
			r.Technology,
			r.Carrier,
			r.Area,
			string(r.Kind),
			strconv.Itoa(r.Sign),
			r.Bus0,
			r.Bus1,
			r.Bus2,
			strconv.FormatFloat(r.Capacity, 'f', -1, 64),
			strconv.FormatFloat(r.MarginalCost, 'f', -1, 64),
			r.Qualifier,
			strconv.Itoa(r.BuildYear),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile stores rows as a catalog CSV on disk.
func WriteFile(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func decodeRecord(record []string) (Row, error) {
	if len(record) != len(columns) {
		return Row{}, fmt.Errorf("expected %d fields, got %d", len(columns), len(record))
	}

	sign, err := atoiEmpty(record[5])
	if err != nil {
		return Row{}, fmt.Errorf("sign: %w", err)
	}
	capacity, err := strconv.ParseFloat(record[9], 64)
	if err != nil {
		return Row{}, fmt.Errorf("capacity: %w", err)
	}
	cost := 0.0
	if record[10] != "" {
		cost, err = strconv.ParseFloat(record[10], 64)
		if err != nil {
			return Row{}, fmt.Errorf("marginal_cost: %w", err)
		}
	}
	buildYear, err := atoiEmpty(record[12])
	if err != nil {
		return Row{}, fmt.Errorf("build_year: %w", err)
	}

	return Row{
		Name:         record[0],
		Technology:   record[1],
		Carrier:      record[2],
		Area:         record[3],
		Kind:         Kind(record[4]),
		Sign:         sign,
		Bus0:         record[6],
		Bus1:         record[7],
		Bus2:         record[8],
		Capacity:     capacity,
		MarginalCost: cost,
		Qualifier:    record[11],
		BuildYear:    buildYear,
	}, nil
}

func atoiEmpty(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// FileSource loads a catalog from a CSV file on demand. It satisfies the
// session's backend contract for catalog loading.
type FileSource struct {
	Path string
}

// LoadCatalog reads and validates the reference table.
func (f FileSource) LoadCatalog() (Catalog, error) {
	rows, err := ReadFile(f.Path)
	if err != nil {
		return Catalog{}, err
	}
	return New(rows)
}
