package weights

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func fixtureModel() *Model {
	m := &Model{
		Conv1Kernels: make([][]float64, Channels),
		Conv1Bias:    make([]float64, Channels),
		FC1Weight:    make([][]float64, FC1In),
		FC1Bias:      make([]float64, FC1Out),
		FC2Weight:    make([][]float64, FC2In),
		FC2Bias:      make([]float64, FC2Out),
	}
	for c := range m.Conv1Kernels {
		m.Conv1Kernels[c] = make([]float64, KernelTaps)
	}
	for i := range m.FC1Weight {
		m.FC1Weight[i] = make([]float64, FC1Out)
	}
	for i := range m.FC2Weight {
		m.FC2Weight[i] = make([]float64, FC2Out)
	}
	return m
}

func TestValidateAcceptsFixtureShapes(t *testing.T) {
	m := fixtureModel()
	if err := m.Validate(); err != nil {
		t.Fatalf("expected valid fixture, got %v", err)
	}
}

func TestValidateRejectsBadShape(t *testing.T) {
	m := fixtureModel()
	m.Conv1Kernels[3] = m.Conv1Kernels[3][:80]
	if err := m.Validate(); err == nil {
		t.Fatal("expected an error for a short kernel, got nil")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	m := fixtureModel()
	m.Conv1Bias[0] = 0.125

	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Conv1Bias[0] != 0.125 {
		t.Errorf("expected conv1_bias[0]=0.125, got %v", loaded.Conv1Bias[0])
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/model.json"); err == nil {
		t.Fatal("expected an error for a missing file, got nil")
	}
}
