// Package framestore is a local sqlite archive of raw sensor payloads, so that exports
// can be repeated without access to the time-series database.
package framestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/thermal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Payload is a row of the payload table
type Payload struct {
	ID     int64  `gorm:"primaryKey"`
	Sensor string `gorm:"column:sensor"`
	TimeMS int64  `gorm:"column:time_ms"`
	Data   string `gorm:"column:data"`
	Width  int    `gorm:"column:width"`
	Height int    `gorm:"column:height"`
}

func (Payload) TableName() string {
	return "payload"
}

type Store struct {
	Log logs.Log
	DB  *gorm.DB
}

func Open(log logs.Log, dbFilename string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbFilename), 0755); err != nil {
		return nil, fmt.Errorf("Failed to create directory for database %v: %w", dbFilename, err)
	}
	db, err := dbh.OpenDB(log, dbh.MakeSqliteConfig(dbFilename), Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &Store{
		Log: log,
		DB:  db,
	}, nil
}

// Put archives payloads of a sensor. A payload with the same sensor and time replaces the old one.
func (s *Store) Put(sensor string, payloads []thermal.Payload) error {
	if len(payloads) == 0 {
		return nil
	}
	rows := make([]Payload, 0, len(payloads))
	for _, p := range payloads {
		rows = append(rows, Payload{
			Sensor: sensor,
			TimeMS: p.TimeMS,
			Data:   p.Data,
			Width:  p.Width,
			Height: p.Height,
		})
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sensor"}, {Name: "time_ms"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "width", "height"}),
	}).CreateInBatches(rows, 500).Error
}

// QueryRange returns the archived payloads of sensor in [startMS, endMS], in ascending time order
func (s *Store) QueryRange(ctx context.Context, sensor string, startMS, endMS int64) ([]thermal.Payload, error) {
	rows := []Payload{}
	if err := s.DB.WithContext(ctx).Where("sensor = ? AND time_ms >= ? AND time_ms <= ?", sensor, startMS, endMS).Order("time_ms").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]thermal.Payload, 0, len(rows))
	for _, r := range rows {
		out = append(out, thermal.Payload{
			TimeMS: r.TimeMS,
			Data:   r.Data,
			Width:  r.Width,
			Height: r.Height,
		})
	}
	return out, nil
}

// Count returns the number of archived payloads of sensor
func (s *Store) Count(sensor string) (int64, error) {
	n := int64(0)
	err := s.DB.Model(&Payload{}).Where("sensor = ?", sensor).Count(&n).Error
	return n, err
}

// Sensors lists every sensor that has archived payloads
func (s *Store) Sensors() ([]string, error) {
	sensors := []string{}
	err := s.DB.Model(&Payload{}).Distinct("sensor").Order("sensor").Pluck("sensor", &sensors).Error
	return sensors, err
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
