package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("api")
	require.NoError(t, err)
	assert.Equal(t, "api", cfg.RunMode)
	assert.Equal(t, "delete", cfg.UnsaveActivityAction)
	assert.Zero(t, cfg.ActivityHistoryLimit)
	assert.Equal(t, 800, cfg.ImageMaxDimension)
	assert.Equal(t, 32, cfg.ImageThumbSize)
	assert.Equal(t, int64(5*1024*1024), cfg.UploadMaxBytes())
	assert.Equal(t, 72*time.Hour, cfg.OfferTTL)
	assert.Equal(t, 200*time.Millisecond, cfg.MongoSlowQuery)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load("api")
	assert.ErrorContains(t, err, "MONGO_URI")
}

func TestLoad_UnsaveAction(t *testing.T) {
	setRequired(t)

	t.Setenv("UNSAVE_ACTIVITY_ACTION", "unsave")
	cfg, err := Load("all")
	require.NoError(t, err)
	assert.Equal(t, "unsave", cfg.UnsaveActivityAction)

	t.Setenv("UNSAVE_ACTIVITY_ACTION", "remove")
	_, err = Load("all")
	assert.Error(t, err)
}

func TestLoad_InvalidNumber(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_TTL_SECONDS", "soon")

	_, err := Load("api")
	assert.ErrorContains(t, err, "JWT_TTL_SECONDS")
}
