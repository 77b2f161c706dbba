package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"tcgsync/pkg/logger"
	"tcgsync/pkg/models"
)

const currentVersion = 1

// Key identifies one extraction: the same range, filter and storage target
// resume the same checkpoint.
type Key struct {
	From   time.Time
	To     time.Time
	Filter models.OrderTypeFilter
	Target string
}

func (k Key) fileName() string {
	sum := sha256.Sum256([]byte(k.Target))
	return fmt.Sprintf("%s_%s_%s_%s.checkpoint.json",
		k.From.Format("20060102"),
		k.To.Format("20060102"),
		strings.ToLower(string(k.Filter)),
		hex.EncodeToString(sum[:])[:12])
}

// Counters are the per-result totals accumulated by a run
type Counters struct {
	Written          int `json:"written"`
	Overwritten      int `json:"overwritten"`
	SkippedExisting  int `json:"skipped_existing"`
	SkippedIdentical int `json:"skipped_identical"`
	Failed           int `json:"failed"`
}

// Add returns the element-wise sum of c and o
func (c Counters) Add(o Counters) Counters {
	return Counters{
		Written:          c.Written + o.Written,
		Overwritten:      c.Overwritten + o.Overwritten,
		SkippedExisting:  c.SkippedExisting + o.SkippedExisting,
		SkippedIdentical: c.SkippedIdentical + o.SkippedIdentical,
		Failed:           c.Failed + o.Failed,
	}
}

// Checkpoint is the saved state of an interrupted extraction
type Checkpoint struct {
	From              string    `json:"from"`
	To                string    `json:"to"`
	Filter            string    `json:"filter"`
	Target            string    `json:"target"`
	LastCompletedPage int       `json:"last_completed_page"`
	OrdersSeen        int       `json:"orders_seen"`
	Counters          Counters  `json:"counters"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Version           int       `json:"version"`
}

// NextPage is the listing page a resumed crawl starts at
func (c *Checkpoint) NextPage() int {
	return c.LastCompletedPage + 1
}

func (c *Checkpoint) matches(k Key) bool {
	return c.From == k.From.Format(models.ISODateLayout) &&
		c.To == k.To.Format(models.ISODateLayout) &&
		strings.EqualFold(c.Filter, string(k.Filter)) &&
		c.Target == k.Target
}

// Manager handles checkpoint operations for one Key
type Manager struct {
	key            Key
	checkpointPath string
	logger         logger.Logger
}

// NewManager stores checkpoints under dir, or under the platform data
// directory when dir is empty.
func NewManager(dir string, key Key) (*Manager, error) {
	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "checkpoints")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		key:            key,
		checkpointPath: filepath.Join(dir, key.fileName()),
		logger:         logger.GetLogger().WithField("component", "checkpoint"),
	}, nil
}

func (m *Manager) Path() string { return m.checkpointPath }

// Create saves a fresh checkpoint at page 0
func (m *Manager) Create() (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		From:      m.key.From.Format(models.ISODateLayout),
		To:        m.key.To.Format(models.ISODateLayout),
		Filter:    string(m.key.Filter),
		Target:    m.key.Target,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   currentVersion,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"path": m.checkpointPath,
	})
	return cp, nil
}

// Load returns nil without error when no usable checkpoint exists
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	if cp.Version != currentVersion || !cp.matches(m.key) {
		m.logger.WarnWithFields("Ignoring checkpoint for a different extraction", map[string]interface{}{
			"path":    m.checkpointPath,
			"version": cp.Version,
		})
		return nil, nil
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"last_completed_page": cp.LastCompletedPage,
		"orders_seen":         cp.OrdersSeen,
		"updated_at":          cp.UpdatedAt,
	})
	return &cp, nil
}

// Save writes the checkpoint to disk atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	file, err := os.CreateTemp(filepath.Dir(m.checkpointPath), ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	tempPath := file.Name()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"last_completed_page": cp.LastCompletedPage,
		"orders_seen":         cp.OrdersSeen,
	})
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Debug("Checkpoint deleted")
	return nil
}

func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// UpdateProgress records a completed listing page and the run's counters.
// base holds the counters carried over from the checkpoint a run resumed.
func (m *Manager) UpdateProgress(cp *Checkpoint, page, seen int, base, run Counters) error {
	cp.LastCompletedPage = page
	cp.OrdersSeen = seen
	cp.Counters = base.Add(run)
	return m.Save(cp)
}

// BackupCheckpoint copies the current checkpoint next to itself with a
// .backup suffix before it is discarded.
func (m *Manager) BackupCheckpoint() error {
	if !m.Exists() {
		return nil
	}

	backupPath := m.checkpointPath + ".backup"

	src, err := os.Open(m.checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}

	m.logger.Debug("Checkpoint backed up")
	return nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "tcgsync")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "tcgsync")
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "tcgsync")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "tcgsync")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
