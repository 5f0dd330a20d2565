package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/district"
	"github.com/kozaktomas/face-attendance/internal/oracle"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/sms"
)

// app bundles the wired services shared by the CLI commands.
type app struct {
	cfg      *config.Config
	pool     *postgres.Pool
	students *postgres.StudentRepository
	records  *postgres.AttendanceRepository
	queue    *postgres.QueueRepository
	index    *database.StudentIndex
	recorder *attendance.Recorder
	service  *recognition.Service
	// syncer is nil when DISTRICT_MYSQL_DSN is not set.
	syncer *district.Syncer
	// districtPool is closed together with the app.
	districtPool *district.Pool
}

// initApp connects to the database, runs migrations and wires the
// recognition pipeline.
func initApp(ctx context.Context) (*app, error) {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	if err := pool.Migrate(ctx, cfg.Oracle.Dim); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &app{
		cfg:      cfg,
		pool:     pool,
		students: postgres.NewStudentRepository(pool),
		records:  postgres.NewAttendanceRepository(pool),
		queue:    postgres.NewQueueRepository(pool),
		index:    database.NewStudentIndex(),
	}

	loc := time.Local
	if cfg.Server.TimeZone != "" {
		loc, err = time.LoadLocation(cfg.Server.TimeZone)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("invalid SERVER_TIMEZONE: %w", err)
		}
	}
	a.recorder = attendance.NewRecorder(a.records, loc)

	roster, err := a.students.ListActive(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to load student roster: %w", err)
	}
	if err := a.index.Build(roster); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to build student index: %w", err)
	}

	var notifier recognition.Notifier
	if cfg.SMS.URL != "" {
		notifier = sms.NewClient(cfg.SMS.URL, cfg.SMS.Token, cfg.SMS.From)
	}

	detector := oracle.NewClient(cfg.Oracle.URL, time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second)
	a.service = recognition.NewService(
		detector, a.students, a.recorder, a.queue, a.index, notifier, cfg.Policy)

	if cfg.District.DSN != "" {
		districtPool, err := district.NewPool(cfg.District.DSN, cfg.District.SchoolID)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to connect to district database: %w", err)
		}
		if err := districtPool.Migrate(ctx); err != nil {
			districtPool.Close()
			pool.Close()
			return nil, fmt.Errorf("failed to prepare district schema: %w", err)
		}
		a.districtPool = districtPool
		a.syncer = district.NewSyncer(a.records, districtPool)
	}

	return a, nil
}

func (a *app) close() {
	if a.districtPool != nil {
		_ = a.districtPool.Close()
	}
	if a.pool != nil {
		_ = a.pool.Close()
	}
}
