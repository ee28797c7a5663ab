package vitals

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/models"
)

// Profile bounds one simulated risk band. All ranges are inclusive.
type Profile struct {
	Name                       string
	FetalHRMin, FetalHRMax     int
	MaternalMin, MaternalMax   int
	SystolicMin, SystolicMax   int
	DiastolicMin, DiastolicMax int
	MovementMin, MovementMax   int
}

// Profiles are applied to rows 0, 1 and 2 on every Randomize.
var Profiles = [3]Profile{
	{Name: "normal", FetalHRMin: 120, FetalHRMax: 160, MaternalMin: 70, MaternalMax: 90, SystolicMin: 110, SystolicMax: 120, DiastolicMin: 70, DiastolicMax: 80, MovementMin: 30, MovementMax: 50},
	{Name: "medium", FetalHRMin: 150, FetalHRMax: 170, MaternalMin: 85, MaternalMax: 100, SystolicMin: 125, SystolicMax: 135, DiastolicMin: 80, DiastolicMax: 90, MovementMin: 20, MovementMax: 40},
	{Name: "high", FetalHRMin: 170, FetalHRMax: 190, MaternalMin: 100, MaternalMax: 120, SystolicMin: 140, SystolicMax: 160, DiastolicMin: 90, DiastolicMax: 100, MovementMin: 5, MovementMax: 20},
}

// Simulator serves a mutable set of vitals rows in place of real devices.
type Simulator struct {
	mu     sync.RWMutex
	rows   []models.VitalsRow
	rng    *rand.Rand
	logger *zap.Logger
}

// NewSimulator creates a simulator holding rows. rng may be nil.
func NewSimulator(rows []models.VitalsRow, rng *rand.Rand, logger *zap.Logger) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Simulator{rows: rows, rng: rng, logger: logger}
}

// Rows returns a copy of the current rows.
func (s *Simulator) Rows() []models.VitalsRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.VitalsRow(nil), s.rows...)
}

// Randomize rewrites the first three rows with the fixed risk profiles.
// It does nothing when fewer than three rows are loaded.
func (s *Simulator) Randomize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rows) < len(Profiles) {
		return
	}

	for i, p := range Profiles {
		r := &s.rows[i]
		r.FetalHeartRate = float64(s.between(p.FetalHRMin, p.FetalHRMax))
		r.MaternalHeartRate = float64(s.between(p.MaternalMin, p.MaternalMax))
		r.BloodPressure = models.BloodPressure(fmt.Sprintf("%d/%d",
			s.between(p.SystolicMin, p.SystolicMax),
			s.between(p.DiastolicMin, p.DiastolicMax)))
		r.FetalMovement = float64(s.between(p.MovementMin, p.MovementMax))
	}

	s.logger.Info("Updated simulated patient data", zap.Int("row_count", len(s.rows)))
}

func (s *Simulator) between(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo+1)
}

// ServeData writes the rows as a JSON array, or 404 when none are loaded.
func (s *Simulator) ServeData(w http.ResponseWriter, r *http.Request) {
	rows := s.Rows()

	w.Header().Set("Content-Type", "application/json")
	if len(rows) == 0 {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "No data available"})
		return
	}

	if err := json.NewEncoder(w).Encode(rows); err != nil {
		s.logger.Error("Failed to encode vitals rows", zap.Error(err))
	}
}

// LoadCSVFile reads rows from a CSV file whose header uses the JSON field
// names. A missing file yields no rows and no error.
func LoadCSVFile(path string) ([]models.VitalsRow, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV parses rows from r. Unknown columns are ignored.
func ReadCSV(r io.Reader) ([]models.VitalsRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}

	var rows []models.VitalsRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		row, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func parseRecord(record []string, cols map[string]int) (models.VitalsRow, error) {
	field := func(name string) string {
		if i, ok := cols[name]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	number := func(name string) (float64, error) {
		v := field(name)
		if v == "" {
			return 0, nil
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, v)
		}
		return n, nil
	}

	var row models.VitalsRow
	var err error
	row.PatientID = field("patientId")
	row.BloodPressure = models.BloodPressure(field("bloodPressure"))
	if row.PregnancyWeeks, err = number("pregnancyWeeks"); err != nil {
		return row, err
	}
	if row.FetalHeartRate, err = number("fetalHeartRate"); err != nil {
		return row, err
	}
	if row.MaternalHeartRate, err = number("maternalHeartRate"); err != nil {
		return row, err
	}
	if row.FetalMovement, err = number("fetalMovement"); err != nil {
		return row, err
	}
	return row, nil
}
