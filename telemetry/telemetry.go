// Package telemetry exports ReactionInfo records and diagnosis
// summaries as CSV, following the teacher's OutputManager pattern
// (telemetry/output.go): a file per record kind, headers written once,
// gocsv.MarshalWithoutHeaders thereafter.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/sgfrd/reaction"
)

// ReactionRecord is one fired reaction flattened into CSV columns.
type ReactionRecord struct {
	Time      float64 `csv:"time"`
	RuleID    string  `csv:"rule"`
	Reactants string  `csv:"reactants"`
	Products  string  `csv:"products"`
}

// DiagnosisRecord is one diagnosis() run flattened into CSV columns.
type DiagnosisRecord struct {
	Time           float64 `csv:"time"`
	Clean          bool    `csv:"clean"`
	ShellOverlap   string  `csv:"shell_overlap"`
	ParticlesAdrift int    `csv:"particles_adrift"`
}

// OutputManager writes reactions.csv and diagnosis.csv into dir.
type OutputManager struct {
	dir string

	reactionFile  *os.File
	diagnosisFile *os.File

	reactionHeaderWritten  bool
	diagnosisHeaderWritten bool
}

// NewOutputManager creates the output directory and opens its CSV
// files. Returns nil if dir is empty (output disabled), matching the
// teacher's NewOutputManager.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	reactionPath := filepath.Join(dir, "reactions.csv")
	f, err := os.Create(reactionPath)
	if err != nil {
		return nil, fmt.Errorf("creating reactions.csv: %w", err)
	}
	om.reactionFile = f

	diagnosisPath := filepath.Join(dir, "diagnosis.csv")
	f, err = os.Create(diagnosisPath)
	if err != nil {
		om.reactionFile.Close()
		return nil, fmt.Errorf("creating diagnosis.csv: %w", err)
	}
	om.diagnosisFile = f

	return om, nil
}

// Close closes the underlying files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	if err := om.reactionFile.Close(); err != nil {
		return err
	}
	return om.diagnosisFile.Close()
}

// WriteReaction appends a reaction.Info to reactions.csv.
func (om *OutputManager) WriteReaction(info reaction.Info) error {
	if om == nil {
		return nil
	}
	record := ReactionRecord{
		Time:      info.Time,
		RuleID:    info.RuleID,
		Reactants: joinIDs(info.Reactants),
		Products:  joinIDs(info.Products),
	}
	records := []ReactionRecord{record}

	if !om.reactionHeaderWritten {
		if err := gocsv.Marshal(records, om.reactionFile); err != nil {
			return fmt.Errorf("writing reaction: %w", err)
		}
		om.reactionHeaderWritten = true
	} else if err := gocsv.MarshalWithoutHeaders(records, om.reactionFile); err != nil {
		return fmt.Errorf("writing reaction: %w", err)
	}
	return nil
}

// WriteDiagnosis appends a DiagnosisRecord to diagnosis.csv.
func (om *OutputManager) WriteDiagnosis(rec DiagnosisRecord) error {
	if om == nil {
		return nil
	}
	records := []DiagnosisRecord{rec}

	if !om.diagnosisHeaderWritten {
		if err := gocsv.Marshal(records, om.diagnosisFile); err != nil {
			return fmt.Errorf("writing diagnosis: %w", err)
		}
		om.diagnosisHeaderWritten = true
	} else if err := gocsv.MarshalWithoutHeaders(records, om.diagnosisFile); err != nil {
		return fmt.Errorf("writing diagnosis: %w", err)
	}
	return nil
}

func joinIDs[T fmt.Stringer](ids []T) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += ";"
		}
		s += id.String()
	}
	return s
}
