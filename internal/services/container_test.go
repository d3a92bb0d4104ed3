package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firesmoke-api/internal/config"
)

func TestNewServiceContainer_WithoutNATS(t *testing.T) {
	cfg := &config.Config{
		InstanceID:             "test",
		DatabasePath:           filepath.Join(t.TempDir(), "container.db"),
		MaxWorkers:             2,
		VideoTargetFPS:         1,
		VideoMaxFrames:         30,
		SingleInferenceTimeout: time.Second,
		LiveInferenceTimeout:   time.Second,
		BatchInferenceTimeout:  time.Second,
		AlertThreshold:         0.3,
	}

	sc, err := NewServiceContainer(cfg)
	require.NoError(t, err)

	assert.Nil(t, sc.Messaging)
	assert.NotNil(t, sc.DetectionSvc)
	assert.NotNil(t, sc.BatchSvc)
	assert.NotNil(t, sc.VideoSvc)
	assert.NoError(t, sc.Store.DB.Ping())

	require.NoError(t, sc.Shutdown(context.Background()))
}

func TestNewServiceContainer_BadDatabasePath(t *testing.T) {
	cfg := &config.Config{DatabasePath: filepath.Join(t.TempDir(), "missing", "dir", "x.db")}

	_, err := NewServiceContainer(cfg)
	assert.Error(t, err)
}
