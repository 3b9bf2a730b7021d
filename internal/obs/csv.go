package obs

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// CSVSource reads an observation table from a CSV export. It is the reference
// Source used by the CLI; production deployments plug in their own collaborator.
//
// Expected header: date,asset,factor_value,price,return,volatility,volume,market_cap
// Empty numeric cells are treated as missing (NaN).
type CSVSource struct {
	Path string
}

// NewCSVSource creates a CSV-backed observation source.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

// Observations loads and parses the whole file into a Table.
func (s *CSVSource) Observations(ctx context.Context) (*Table, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open observations: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 8

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("observations file %s has no data rows", s.Path)
	}

	table := NewTable()
	for i, rec := range records[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if err := table.Append(o); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	log.Info().
		Str("path", s.Path).
		Int("rows", table.Len()).
		Int("dates", len(table.Dates())).
		Msg("Observations loaded")
	return table, nil
}

func parseRow(rec []string) (Observation, error) {
	date, err := time.Parse("2006-01-02", rec[0])
	if err != nil {
		return Observation{}, fmt.Errorf("bad date %q: %w", rec[0], err)
	}
	if rec[1] == "" {
		return Observation{}, fmt.Errorf("empty asset id")
	}

	fields := make([]float64, 6)
	for i, cell := range rec[2:] {
		fields[i], err = parseCell(cell)
		if err != nil {
			return Observation{}, err
		}
	}

	return Observation{
		Date:        date,
		Asset:       rec[1],
		FactorValue: fields[0],
		Price:       fields[1],
		Return:      fields[2],
		Volatility:  fields[3],
		Volume:      fields[4],
		MarketCap:   fields[5],
	}, nil
}

func parseCell(cell string) (float64, error) {
	if cell == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("bad numeric cell %q: %w", cell, err)
	}
	return v, nil
}
