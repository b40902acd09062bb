package s3_model

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

// ExperimentRecord is one line of the experiment log
type ExperimentRecord struct {
	RunID      string                 `json:"run_id"`
	Kind       string                 `json:"kind"` // train, tune, walkforward
	Timestamp  time.Time              `json:"timestamp"`
	Version    string                 `json:"version,omitempty"`
	ConfigHash string                 `json:"config_hash,omitempty"`
	Horizon    int                    `json:"horizon"`
	LabelMode  contracts.LabelMode    `json:"label_mode"`
	Params     Params                 `json:"params"`
	Metrics    contracts.ModelMetrics `json:"metrics"`
	Extra      map[string]float64     `json:"extra,omitempty"`
}

// ExperimentLog is an append-only JSON lines file
type ExperimentLog struct {
	path string
}

// NewExperimentLog creates a log at path
func NewExperimentLog(path string) *ExperimentLog {
	return &ExperimentLog{path: path}
}

// Append adds one record; existing lines are never rewritten
func (l *ExperimentLog) Append(rec ExperimentRecord) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create experiment dir: %w", err)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode experiment: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open experiment log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append experiment: %w", err)
	}
	return nil
}

// Records reads every record in file order
func (l *ExperimentLog) Records() ([]ExperimentRecord, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open experiment log: %w", err)
	}
	defer f.Close()

	var out []ExperimentRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec ExperimentRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("decode experiment line %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}
