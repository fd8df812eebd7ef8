package store

import (
	"context"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tradeguru/engine/internal/alerts"
	"github.com/tradeguru/engine/internal/positions"
	"github.com/tradeguru/engine/internal/retry"
)

// pickLatestRow holds the current top-N, replaced wholesale each cycle.
type pickLatestRow struct {
	Symbol      string    `gorm:"primaryKey;size:32"`
	LastPrice   float64   `gorm:"not null"`
	Score       float64   `gorm:"not null"`
	IntradayPct float64   `gorm:"not null"`
	Timestamp   time.Time `gorm:"not null;index"`
}

func (pickLatestRow) TableName() string { return "top_picks_latest" }

// pickHistoryRow is the append-only trail of every published pick.
type pickHistoryRow struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Symbol      string    `gorm:"size:32;not null;index"`
	LastPrice   float64   `gorm:"not null"`
	Score       float64   `gorm:"not null"`
	IntradayPct float64   `gorm:"not null"`
	Timestamp   time.Time `gorm:"not null;index"`
}

func (pickHistoryRow) TableName() string { return "top_picks_history" }

type positionRow struct {
	ID           string     `gorm:"primaryKey;size:64"`
	Symbol       string     `gorm:"size:32;not null;index"`
	Status       string     `gorm:"size:16;not null"`
	EntryPrice   float64    `gorm:"not null"`
	Size         float64    `gorm:"not null"`
	PredictedMax float64    `gorm:"not null"`
	SoftStopPct  float64    `gorm:"not null"`
	HardStopPct  float64    `gorm:"not null"`
	EntryAt      time.Time  `gorm:"not null"`
	ExitPrice    float64    ``
	ExitAt       *time.Time ``
	ProfitAlerts string     `gorm:"type:text"`
	StopAlerts   string     `gorm:"type:text"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

func (positionRow) TableName() string { return "positions" }

type notificationRow struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Type      string    `gorm:"size:32;not null;index"`
	Symbol    string    `gorm:"size:32;index"`
	Title     string    `gorm:"size:256"`
	Body      string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"not null;index"`
}

func (notificationRow) TableName() string { return "notifications" }

// PostgresStore implements TopPicksStore, PositionStore and NotificationLog
// on a single gorm connection pool. Writes that hit lock contention are
// retried with a jittered backoff; everything else surfaces as unavailable
// and the caller degrades.
type PostgresStore struct {
	db     *gorm.DB
	policy retry.Policy
}

// NewPostgresStore opens the pool and optionally migrates the schema.
func NewPostgresStore(dsn string, autoMigrate bool) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, Classify("open", err)
	}
	if autoMigrate {
		if err := db.AutoMigrate(&pickLatestRow{}, &pickHistoryRow{}, &positionRow{}, &notificationRow{}); err != nil {
			return nil, Classify("migrate", err)
		}
	}
	return &PostgresStore{
		db: db,
		policy: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.Jittered(50 * time.Millisecond),
			Retryable:   Retryable,
		},
	}, nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) SaveLatest(ctx context.Context, batch PickBatch) error {
	return s.policy.Do(ctx, func() error {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("1 = 1").Delete(&pickLatestRow{}).Error; err != nil {
				return err
			}
			rows := make([]pickLatestRow, 0, len(batch.Items))
			for _, it := range batch.Items {
				rows = append(rows, pickLatestRow{
					Symbol:      it.Symbol,
					LastPrice:   it.LastPrice,
					Score:       it.Score,
					IntradayPct: it.IntradayPct,
					Timestamp:   batch.Timestamp,
				})
			}
			if len(rows) == 0 {
				return nil
			}
			return tx.Create(&rows).Error
		})
		if err != nil {
			return Classify("save_latest", err)
		}
		return nil
	})
}

func (s *PostgresStore) AppendHistory(ctx context.Context, batch PickBatch) error {
	rows := make([]pickHistoryRow, 0, len(batch.Items))
	for _, it := range batch.Items {
		rows = append(rows, pickHistoryRow{
			Symbol:      it.Symbol,
			LastPrice:   it.LastPrice,
			Score:       it.Score,
			IntradayPct: it.IntradayPct,
			Timestamp:   batch.Timestamp,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return s.policy.Do(ctx, func() error {
		if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
			return Classify("append_history", err)
		}
		return nil
	})
}

func (s *PostgresStore) RecentHistory(ctx context.Context, limit int) ([]HistoryRow, error) {
	var rows []pickHistoryRow
	q := s.db.WithContext(ctx).Order("timestamp desc, score desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, Classify("recent_history", err)
	}
	out := make([]HistoryRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, HistoryRow{
			Timestamp: r.Timestamp,
			PickItem: PickItem{
				Symbol:      r.Symbol,
				LastPrice:   r.LastPrice,
				Score:       r.Score,
				IntradayPct: r.IntradayPct,
			},
		})
	}
	return out, nil
}

func (s *PostgresStore) Insert(ctx context.Context, p *positions.Position) error {
	row := positionToRow(p)
	return s.policy.Do(ctx, func() error {
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return Classify("position_insert", err)
		}
		return nil
	})
}

func (s *PostgresStore) Update(ctx context.Context, p *positions.Position) error {
	row := positionToRow(p)
	return s.policy.Do(ctx, func() error {
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			return Classify("position_update", err)
		}
		return nil
	})
}

func (s *PostgresStore) Append(ctx context.Context, a alerts.Alert) error {
	row := notificationRow{
		Type:      string(a.Type),
		Symbol:    a.Symbol,
		Title:     a.Title,
		Body:      a.Body,
		Timestamp: a.Timestamp,
	}
	return s.policy.Do(ctx, func() error {
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return Classify("notification_append", err)
		}
		return nil
	})
}

func positionToRow(p *positions.Position) positionRow {
	return positionRow{
		ID:           p.ID,
		Symbol:       p.Symbol,
		Status:       string(p.Status),
		EntryPrice:   p.EntryPrice,
		Size:         p.Size,
		PredictedMax: p.PredictedMax,
		SoftStopPct:  p.SoftStopPct,
		HardStopPct:  p.HardStopPct,
		EntryAt:      p.EntryAt,
		ExitPrice:    p.ExitPrice,
		ExitAt:       p.ExitAt,
		ProfitAlerts: joinKeys(p.ProfitAlertsSent),
		StopAlerts:   joinKeys(p.StopAlertsSent),
	}
}

func joinKeys(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return strings.Join(keys, ",")
}
