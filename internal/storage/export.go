package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/sirsim/internal/dynamo"
	"github.com/san-kum/sirsim/internal/epidemic"
)

type ExportData struct {
	ID         string             `json:"id"`
	Integrator string             `json:"integrator"`
	Problem    epidemic.Problem   `json:"problem"`
	Partial    bool               `json:"partial"`
	Steps      int                `json:"steps"`
	Stats      dynamo.Stats       `json:"stats"`
	Metrics    map[string]float64 `json:"metrics"`
	Records    []epidemic.Record  `json:"records"`
}

// ExportJSON writes a stored run and its records as indented JSON.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	tr, err := s.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	res := &epidemic.Result{Trajectory: tr}
	data := ExportData{
		ID:         meta.ID,
		Integrator: meta.Integrator,
		Problem:    meta.Problem,
		Partial:    meta.Partial,
		Steps:      tr.Len(),
		Stats:      meta.Stats,
		Metrics:    meta.Metrics,
		Records:    res.Records(),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ExportCSV copies a stored trajectory as CSV.
func (s *Store) ExportCSV(w io.Writer, runID string) error {
	tr, err := s.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	return WriteCSV(w, tr)
}
