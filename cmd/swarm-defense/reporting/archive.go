package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	"github.com/picogrid/swarm-defense/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrRunNotArchived is returned for run ids missing from the archive
var ErrRunNotArchived = errors.New("run not archived")

// RunRecord is one finished run
type RunRecord struct {
	ID             string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt      time.Time      `json:"created_at"`
	Name           string         `json:"name" gorm:"size:127"`
	Strategy       string         `json:"strategy" gorm:"size:32;index"`
	Formation      string         `json:"formation" gorm:"size:32"`
	Seed           int64          `json:"seed"`
	FriendlyCount  int            `json:"friendly_count"`
	EnemyCount     int            `json:"enemy_count"`
	Outcome        string         `json:"outcome" gorm:"size:32;index"`
	MissionSuccess bool           `json:"mission_success"`
	KillRatio      float64        `json:"kill_ratio"`
	SurvivalRate   float64        `json:"survival_rate"`
	Duration       float64        `json:"duration"`
	Ticks          int            `json:"ticks"`
	Config         datatypes.JSON `json:"config"`
	Statistics     datatypes.JSON `json:"statistics"`
}

// FrameBatch is a contiguous group of recorded frames
type FrameBatch struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	RunID     string         `json:"run_id" gorm:"size:36;index:idx_run_tick"`
	FirstTick int            `json:"first_tick" gorm:"index:idx_run_tick"`
	LastTick  int            `json:"last_tick"`
	Count     int            `json:"count"`
	Frames    datatypes.JSON `json:"frames"`
}

var archiveModels = []interface{}{
	&RunRecord{},
	&FrameBatch{},
}

// Archive persists run summaries and frames in a local SQLite database
type Archive struct {
	db   *gorm.DB
	path string
	log  logger.Logger
}

// OpenArchive opens or creates the archive at path and migrates its schema
func OpenArchive(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	// Concurrent runs share one writer
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	if err := db.AutoMigrate(archiveModels...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate archive schema: %w", err)
	}

	a := &Archive{db: db, path: path, log: logger.WithPrefix("archive")}
	a.log.Debugf("Using run archive at %s", path)
	return a, nil
}

// Path returns the database file
func (a *Archive) Path() string { return a.path }

// Close releases the database
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun stores or replaces the summary of a finished run
func (a *Archive) SaveRun(ctx context.Context, runID string, cfg *config.ScenarioConfig, stats simulation.StatisticsReport) error {
	if !stats.Complete {
		return fmt.Errorf("cannot archive run %s: statistics are %s", runID, stats.Status)
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}

	rec := RunRecord{
		ID:             runID,
		Strategy:       stats.Strategy,
		Seed:           stats.Seed,
		FriendlyCount:  stats.FriendlyTotal,
		EnemyCount:     stats.EnemyTotal,
		Outcome:        stats.Outcome,
		MissionSuccess: stats.MissionSuccess,
		KillRatio:      stats.KillRatio,
		SurvivalRate:   stats.SurvivalRate,
		Duration:       stats.Duration,
		Ticks:          stats.Ticks,
		Config:         datatypes.JSON(cfgJSON),
		Statistics:     datatypes.JSON(statsJSON),
	}
	if cfg != nil {
		rec.Name = cfg.Simulation.Name
		rec.Formation = cfg.Scenario.Formation
	}

	if err := a.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to save run %s: %w", runID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns all.
func (a *Archive) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	var runs []RunRecord
	q := a.db.WithContext(ctx).Order("created_at DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one archived run
func (a *Archive) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var rec RunRecord
	err := a.db.WithContext(ctx).First(&rec, "id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotArchived, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return &rec, nil
}

// DecodeStatistics unpacks the stored statistics report
func (r *RunRecord) DecodeStatistics() (simulation.StatisticsReport, error) {
	var stats simulation.StatisticsReport
	if err := json.Unmarshal(r.Statistics, &stats); err != nil {
		return stats, fmt.Errorf("failed to decode statistics for %s: %w", r.ID, err)
	}
	return stats, nil
}

// WriteFrameBatch stores frames for a run as a single row
func (a *Archive) WriteFrameBatch(ctx context.Context, runID string, frames []core.Frame) error {
	if len(frames) == 0 {
		return nil
	}
	data, err := json.Marshal(frames)
	if err != nil {
		return fmt.Errorf("failed to encode frames: %w", err)
	}
	batch := FrameBatch{
		RunID:     runID,
		FirstTick: frames[0].Tick,
		LastTick:  frames[len(frames)-1].Tick,
		Count:     len(frames),
		Frames:    datatypes.JSON(data),
	}
	if err := a.db.WithContext(ctx).Create(&batch).Error; err != nil {
		return fmt.Errorf("failed to store frames %d-%d for %s: %w", batch.FirstTick, batch.LastTick, runID, err)
	}
	return nil
}

// Frames returns every archived frame of a run in tick order
func (a *Archive) Frames(ctx context.Context, runID string) ([]core.Frame, error) {
	var batches []FrameBatch
	err := a.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("first_tick").
		Find(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load frames for %s: %w", runID, err)
	}

	frames := make([]core.Frame, 0)
	for _, b := range batches {
		var chunk []core.Frame
		if err := json.Unmarshal(b.Frames, &chunk); err != nil {
			return nil, fmt.Errorf("failed to decode frame batch %d: %w", b.ID, err)
		}
		frames = append(frames, chunk...)
	}
	return frames, nil
}

// DeleteRun removes a run and its frames
func (a *Archive) DeleteRun(ctx context.Context, runID string) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&FrameBatch{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&RunRecord{}, "id = ?", runID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotArchived, runID)
		}
		return nil
	})
}

// FrameSink returns a sink that stores a run's frames in the archive
func (a *Archive) FrameSink(runID string) core.FrameSink {
	return &archiveSink{archive: a, runID: runID}
}

type archiveSink struct {
	archive *Archive
	runID   string
}

func (s *archiveSink) WriteFrames(ctx context.Context, frames []core.Frame) error {
	return s.archive.WriteFrameBatch(ctx, s.runID, frames)
}
