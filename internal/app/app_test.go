package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/arnavshah/rota-engine/internal/config"
	"github.com/arnavshah/rota-engine/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		GinMode:                "test",
		DataPath:               filepath.Join(t.TempDir(), "rota.db"),
		JWTSecret:              "jwt-secret",
		JWTExpiry:              time.Hour,
		APIMasterSecret:        "key-secret",
		AdminUsername:          "admin",
		AdminPassword:          "s3cret",
		EventsStream:           "rota:events",
		HeuristicBudget:        100 * time.Millisecond,
		GenerationLockTTL:      time.Minute,
		MonthlyGenerationQuota: 5,
		RateLimit:              "100-M",
	}
}

func TestNew(t *testing.T) {
	auth.PasswordCost = bcrypt.MinCost
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()
	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"username":"admin","password":"s3cret"}`))
	req.Header.Set("Content-Type", "application/json")
	a.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "access_token")
}

func TestNew_RequiresSecrets(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIMasterSecret = ""
	_, err := New(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_InvalidRateLimit(t *testing.T) {
	auth.PasswordCost = bcrypt.MinCost
	cfg := testConfig(t)
	cfg.RateLimit = "often"
	_, err := New(cfg, zap.NewNop())
	assert.Error(t, err)
}
