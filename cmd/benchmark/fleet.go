package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
)

// Sample is one labelled vehicle reading.
type Sample struct {
	CurrentLoad  float64
	MaxLoad      float64
	Suspension   float64
	TirePressure float64
	Weight       float64
	Speed        float64
	Registration string
	Overloaded   bool
}

// generateFleet builds n labelled vehicles. Normal vehicles carry at most 95%
// of capacity; overloaded ones carry 105-160%.
func generateFleet(n int, overloadShare float64, seed uint64) []Sample {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	between := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	fleet := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		s := Sample{
			MaxLoad:      between(10, 15),
			Registration: registration(rng),
		}

		if rng.Float64() < overloadShare {
			s.Overloaded = true
			s.CurrentLoad = s.MaxLoad * between(1.05, 1.60)
			s.Suspension = between(20, 60)
			s.TirePressure = between(20, 45)
			s.Weight = between(5000, 10000)
			s.Speed = between(50, 120)
		} else {
			s.CurrentLoad = min(between(2, 8), s.MaxLoad*0.95)
			s.Suspension = between(70, 100)
			s.TirePressure = between(28, 35)
			s.Weight = between(3000, 8000)
			s.Speed = between(30, 80)
		}

		fleet = append(fleet, s)
	}
	return fleet
}

// registration returns a plate in the AA00AA0000 format.
func registration(rng *rand.Rand) string {
	letter := func() byte { return byte('A' + rng.IntN(26)) }
	digit := func() byte { return byte('0' + rng.IntN(10)) }

	b := []byte{
		letter(), letter(),
		digit(), digit(),
		letter(), letter(),
		digit(), digit(), digit(), digit(),
	}
	return string(b)
}

var fleetColumns = []string{"current_load", "max_load", "suspension", "tire_pressure", "weight", "speed", "overloaded"}

// readFleetCSV reads a labelled fleet. The header must name every column in
// fleetColumns; a registration column is optional. Malformed rows are skipped.
func readFleetCSV(path string, limit int) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseFleet(file, limit)
}

func parseFleet(r io.Reader, limit int) ([]Sample, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range fleetColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var fleet []Sample
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		s, ok := parseSample(record, colIndex, row)
		if !ok {
			continue
		}
		fleet = append(fleet, s)

		if limit > 0 && len(fleet) >= limit {
			break
		}
	}

	return fleet, nil
}

func parseSample(record []string, colIndex map[string]int, row int) (Sample, bool) {
	field := func(col string) string {
		i, ok := colIndex[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var values [6]float64
	for i, col := range fleetColumns[:6] {
		v, err := strconv.ParseFloat(field(col), 64)
		if err != nil {
			return Sample{}, false
		}
		values[i] = v
	}

	overloaded, err := strconv.ParseBool(field("overloaded"))
	if err != nil {
		return Sample{}, false
	}

	reg := field("registration")
	if reg == "" {
		reg = fmt.Sprintf("BM00XX%04d", row%10000)
	}

	return Sample{
		CurrentLoad:  values[0],
		MaxLoad:      values[1],
		Suspension:   values[2],
		TirePressure: values[3],
		Weight:       values[4],
		Speed:        values[5],
		Registration: reg,
		Overloaded:   overloaded,
	}, true
}
