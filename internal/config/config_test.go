package config_test

import (
	"testing"
	"time"

	"github.com/ledax/geoetl/internal/config"
	"github.com/stretchr/testify/assert"
)

func Test_MustLoadFromEnv(t *testing.T) {
	t.Setenv("GEOETL_ENV", "local")
	t.Setenv("GEOETL_EXCEL_PATH", "fixtures/test.xlsx")
	t.Setenv("GEOETL_CACHE_PATH", "fixtures/cache.json")
	t.Setenv("GEOETL_FLUSH_EVERY", "10")
	t.Setenv("GEOETL_PROVIDER_TYPE", "google")
	t.Setenv("GEOETL_PROVIDER_KEY", "testAPIKey")
	t.Setenv("GEOETL_MIN_REQUEST_DELAY", "2s")
	t.Setenv("GEOETL_NEGATIVE_TTL", "168h")
	t.Setenv("GEOETL_FENCE_POLICY", "reject")
	t.Setenv("DB_HOST", "testHost")
	t.Setenv("DB_PORT", "12345")
	t.Setenv("DB_USERNAME", "admin")
	t.Setenv("DB_PASSWORD", "adminpass")
	t.Setenv("DB_NAME", "testName")

	cfg := config.MustLoad()

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "fixtures/test.xlsx", cfg.ExcelPath)
	assert.Equal(t, "fixtures/cache.json", cfg.CachePath)
	assert.Equal(t, 10, cfg.FlushEvery)
	assert.Equal(t, "google", cfg.ProviderType)
	assert.Equal(t, "testAPIKey", cfg.APIKey)
	assert.Equal(t, 2*time.Second, cfg.MinRequestDelay)
	assert.Equal(t, 168*time.Hour, cfg.NegativeTTL)
	assert.Equal(t, "reject", cfg.FencePolicy)
	assert.Equal(t, "testHost", cfg.Database.Host)
	assert.Equal(t, "12345", cfg.Database.Port)
	assert.Equal(t, "admin", cfg.Database.User)
	assert.Equal(t, "adminpass", cfg.Database.Password)
	assert.Equal(t, "testName", cfg.Database.Name)
}

func Test_MustLoadDefaults(t *testing.T) {
	cfg := config.MustLoad()

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "data/locations.xlsx", cfg.ExcelPath)
	assert.Equal(t, "data/geocache.json", cfg.CachePath)
	assert.Equal(t, 50, cfg.FlushEvery)
	assert.Equal(t, "nominatim", cfg.ProviderType)
	assert.Equal(t, 1200*time.Millisecond, cfg.MinRequestDelay)
	assert.InEpsilon(t, -12.9714, cfg.AnchorLat, 0.0001)
	assert.InEpsilon(t, -38.5014, cfg.AnchorLon, 0.0001)
	assert.InEpsilon(t, 150.0, cfg.AnchorToleranceKm, 0.0001)
	assert.InEpsilon(t, 60.0, cfg.CityToleranceKm, 0.0001)
	assert.Equal(t, "Salvador", cfg.AnchorLabel)
	assert.Equal(t, "accept", cfg.FencePolicy)
	assert.Equal(t, time.Duration(0), cfg.NegativeTTL)
	assert.Equal(t, "5432", cfg.Database.Port)
}

func TestMustLoad_MinDelayError(t *testing.T) {
	t.Setenv("GEOETL_MIN_REQUEST_DELAY", "error_value")

	assert.PanicsWithValue(t, "failed to parse minimum request delay from configuration", func() {
		config.MustLoad()
	})
}

func TestMustLoad_NegativeTTLError(t *testing.T) {
	t.Setenv("GEOETL_NEGATIVE_TTL", "error_value")

	assert.PanicsWithValue(t, "failed to parse negative cache TTL from configuration", func() {
		config.MustLoad()
	})
}

func TestMustLoad_FlushEveryError(t *testing.T) {
	t.Setenv("GEOETL_FLUSH_EVERY", "0")

	assert.PanicsWithValue(t, "flush interval must be a positive record count", func() {
		config.MustLoad()
	})
}
