// Package history records compare runs in a sqlite database.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spigell/segcompare/internal/compare"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("run not found")

// Run is one stored comparison.
type Run struct {
	ID               string `gorm:"primaryKey;size:36"`
	Template         string `gorm:"index"`
	FilledPath       string
	CreatedAt        time.Time `gorm:"index"`
	Sections         int
	MeanMatchPercent float64
	Missing          int
	Sufficient       int
	Lacking          int
	OtherIssue       int
	ReportJSON       string `gorm:"type:text"`
}

// Report decodes the stored report.
func (r *Run) Report() (*compare.Report, error) {
	report := compare.NewReport()
	if err := json.Unmarshal([]byte(r.ReportJSON), report); err != nil {
		return nil, fmt.Errorf("decoding report of run %s: %w", r.ID, err)
	}
	return report, nil
}

type DB struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens or creates the database at path and migrates the schema.
func Open(path string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history dir %s: %w", dir, err)
		}
	}

	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening history database %s: %w", path, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := conn.AutoMigrate(&Run{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}

	logger.Debug("history database opened", zap.String("path", path))

	return &DB{db: conn, logger: logger, now: time.Now}, nil
}

func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Record stores a finished run and returns it.
func (d *DB) Record(template, filledPath string, report *compare.Report) (*Run, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}

	run := &Run{
		ID:         uuid.NewString(),
		Template:   template,
		FilledPath: filledPath,
		CreatedAt:  d.now().UTC(),
		ReportJSON: string(raw),
	}

	total := 0
	for _, entry := range report.Entries() {
		run.Sections++
		total += entry.Record.MatchPercent

		switch entry.Record.Status {
		case compare.StatusMissing:
			run.Missing++
		case compare.StatusSufficient:
			run.Sufficient++
		case compare.StatusLackingInformation:
			run.Lacking++
		default:
			run.OtherIssue++
		}
	}
	if run.Sections > 0 {
		run.MeanMatchPercent = float64(total) / float64(run.Sections)
	}

	if err := d.db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("storing run: %w", err)
	}

	d.logger.Info("run recorded",
		zap.String("id", run.ID),
		zap.String("template", template),
		zap.Int("sections", run.Sections),
	)

	return run, nil
}

// List returns up to limit runs, newest first. A non-positive limit returns all runs.
func (d *DB) List(limit int) ([]Run, error) {
	var runs []Run

	query := d.db.Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

func (d *DB) Get(id string) (*Run, error) {
	var run Run

	err := d.db.Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}

	return &run, nil
}
