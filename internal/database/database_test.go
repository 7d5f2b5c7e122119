package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"questline/internal/config"
	"questline/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestDialector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.Config
		want    string
		wantErr bool
	}{
		{"default", config.Config{}, "sqlite", false},
		{"sqlite", config.Config{DBDriver: "sqlite", SQLitePath: ":memory:"}, "sqlite", false},
		{"postgres", config.Config{DBDriver: "postgres", DBHost: "db", DBPort: "5432"}, "postgres", false},
		{"unknown", config.Config{DBDriver: "mysql"}, "", true},
	}
	for _, tc := range tests {
		d, err := Dialector(&tc.cfg)
		if tc.wantErr {
			assert.Error(t, err, tc.name)
			continue
		}
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, d.Name(), tc.name)
	}
}

func TestConnect_MigratesOutsideProduction(t *testing.T) {
	cfg := &config.Config{Env: "test", DBDriver: "sqlite", SQLitePath: ":memory:"}
	db, err := Connect(cfg, &widget{})
	require.NoError(t, err)

	require.NoError(t, db.Create(&widget{Name: "w"}).Error)
	var count int64
	require.NoError(t, db.Model(&widget{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := newGormLogger(observability.NewLoggerTo(&buf, "production", slog.LevelDebug).Logger)
	silent := l.LogMode(logger.Silent).(*gormLogger)
	assert.Equal(t, logger.Silent, silent.level)
	assert.Equal(t, logger.Warn, l.level, "original untouched")

	query := func() (string, int64) { return "SELECT 1", 1 }
	silent.Trace(context.Background(), time.Now(), query, errors.New("hidden"))
	l.Trace(context.Background(), time.Now(), query, nil)
	l.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "fast, successful and not-found queries stay quiet at warn")

	l.Trace(context.Background(), time.Now(), query, errors.New("boom"))
	assert.Contains(t, buf.String(), `"msg":"query failed"`)
	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.Contains(t, buf.String(), `"component":"gorm"`)

	buf.Reset()
	l.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
	assert.Contains(t, buf.String(), `"msg":"slow query"`)
}
