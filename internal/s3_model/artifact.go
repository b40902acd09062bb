package s3_model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

const (
	modelPrefix   = "model_cls_"
	metricsPrefix = "metrics_"
	manifestFile  = "manifest.json"
	versionLayout = "20060102_150405"
)

// Artifact is a persisted model with the exact feature order it expects
type Artifact struct {
	Meta  contracts.ArtifactMeta `json:"meta"`
	Model *GBM                   `json:"model"`
}

// Manifest points at the active model version
type Manifest struct {
	ActiveVersion string    `json:"active_version"`
	ActivatedAt   time.Time `json:"activated_at"`
}

// ArtifactStore persists model artifacts on disk
// ⭐ SSOT: model selection goes through the manifest, not file timestamps
type ArtifactStore struct {
	dir    string
	now    func() time.Time
	logger *logger.Logger
}

// NewArtifactStore creates a store rooted at dir
func NewArtifactStore(dir string, log *logger.Logger) *ArtifactStore {
	return &ArtifactStore{
		dir:    dir,
		now:    time.Now,
		logger: log.Module("artifacts"),
	}
}

// Dir returns the artifact directory
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// NewVersion returns a version id for the current time.
// A version already on disk gets a _NN suffix so runs within the same second never collide.
func (s *ArtifactStore) NewVersion() string {
	base := s.now().UTC().Format(versionLayout)
	version := base
	for n := 2; s.exists(version); n++ {
		version = fmt.Sprintf("%s_%02d", base, n)
	}
	return version
}

func (s *ArtifactStore) exists(version string) bool {
	_, err := os.Stat(s.modelPath(version))
	return err == nil
}

// Save writes model_cls_<version>.json and metrics_<version>.json.
// Artifacts are immutable: an existing version is never overwritten.
func (s *ArtifactStore) Save(artifact *Artifact) error {
	version := artifact.Meta.Version
	if version == "" {
		return fmt.Errorf("artifact has no version")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	modelPath := s.modelPath(version)
	if s.exists(version) {
		return fmt.Errorf("artifact %s already exists", version)
	}

	if err := writeJSONAtomic(modelPath, artifact); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(s.dir, metricsPrefix+version+".json"), artifact.Meta.Metrics); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"version":  version,
		"features": len(artifact.Meta.FeatureNames),
	}).Info("Model artifact saved")
	return nil
}

// Activate points the manifest at version
func (s *ArtifactStore) Activate(version string) error {
	if _, err := os.Stat(s.modelPath(version)); err != nil {
		return fmt.Errorf("activate %s: %w", version, err)
	}

	manifest := Manifest{ActiveVersion: version, ActivatedAt: s.now().UTC()}
	if err := writeJSONAtomic(filepath.Join(s.dir, manifestFile), manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	s.logger.WithField("version", version).Info("Model activated")
	return nil
}

// ActiveVersion returns the manifest version, or the newest version when no manifest exists
func (s *ArtifactStore) ActiveVersion() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, manifestFile))
	switch {
	case err == nil:
		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			return "", fmt.Errorf("decode manifest: %w", err)
		}
		if manifest.ActiveVersion != "" {
			return manifest.ActiveVersion, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("read manifest: %w", err)
	}

	versions, err := s.Versions()
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", fmt.Errorf("no artifacts in %s: %w", s.dir, contracts.ErrModelUnavailable)
	}
	return versions[len(versions)-1], nil
}

// LoadActive loads the active model artifact
func (s *ArtifactStore) LoadActive() (*Artifact, error) {
	version, err := s.ActiveVersion()
	if err != nil {
		return nil, err
	}
	return s.Load(version)
}

// Load reads one artifact by version
func (s *ArtifactStore) Load(version string) (*Artifact, error) {
	data, err := os.ReadFile(s.modelPath(version))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w: %w", version, contracts.ErrModelUnavailable, err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w: %w", version, contracts.ErrModelUnavailable, err)
	}
	if artifact.Model == nil || len(artifact.Meta.FeatureNames) != artifact.Model.NumFeatures {
		return nil, fmt.Errorf("artifact %s is inconsistent: %w", version, contracts.ErrModelUnavailable)
	}
	return &artifact, nil
}

// Versions lists saved versions in ascending order
func (s *ArtifactStore) Versions() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	var versions []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, modelPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		versions = append(versions, strings.TrimSuffix(strings.TrimPrefix(name, modelPrefix), ".json"))
	}
	sort.Strings(versions)
	return versions, nil
}

func (s *ArtifactStore) modelPath(version string) string {
	return filepath.Join(s.dir, modelPrefix+version+".json")
}

// writeJSONAtomic writes to a temp file in the same directory then renames it
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
