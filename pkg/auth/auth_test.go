package auth

import (
	"testing"
	"time"

	"github.com/arnavshah/rota-engine/internal/testutil"
	"github.com/arnavshah/rota-engine/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	PasswordCost = bcrypt.MinCost
}

func TestToken_RoundTrip(t *testing.T) {
	a := New("jwt-secret", "key-secret", time.Hour)

	token, err := a.CreateToken("org-1", "maria")
	require.NoError(t, err)

	claims, err := a.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.Equal(t, "maria", claims.Username)

	_, err = New("other-secret", "key-secret", time.Hour).VerifyToken(token)
	assert.Error(t, err)
}

func TestToken_Expired(t *testing.T) {
	a := New("jwt-secret", "key-secret", time.Hour)
	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := a.CreateToken("org-1", "maria")
	require.NoError(t, err)

	_, err = a.VerifyToken(token)
	assert.Error(t, err)
}

func TestAPIKey(t *testing.T) {
	a := New("jwt-secret", "key-secret", time.Hour)
	key := a.GenerateKey("org-1")

	org, err := a.VerifyKey(key)
	require.NoError(t, err)
	assert.Equal(t, "org-1", org)

	for _, bad := range []string{"", "org-1", "org-1.deadbeef", "org-2." + key[len("org-1."):], key + ".x"} {
		_, err := a.VerifyKey(bad)
		assert.ErrorIs(t, err, ErrInvalidKey, bad)
	}

	_, err = New("jwt-secret", "rotated", time.Hour).VerifyKey(key)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestEnsureManagerAndLogin(t *testing.T) {
	db := testutil.NewDB(t)

	require.NoError(t, EnsureManager(db, "", "s3cret", zap.NewNop()))
	require.NoError(t, EnsureManager(db, "other", "ignored", zap.NewNop()))

	var managers []database.Manager
	require.NoError(t, db.Find(&managers).Error)
	require.Len(t, managers, 1)
	assert.Equal(t, "admin", managers[0].Username)
	assert.NotEmpty(t, managers[0].OrganizationID)

	m, err := Login(db, "admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, managers[0].OrganizationID, m.OrganizationID)

	_, err = Login(db, "admin", "wrong")
	assert.Error(t, err)
}

func TestTouchAPIKey(t *testing.T) {
	db := testutil.NewDB(t)

	first, err := TouchAPIKey(db, "org-1.sig", "org-1")
	require.NoError(t, err)
	require.NotNil(t, first.LastUsed)

	second, err := TouchAPIKey(db, "org-1.sig", "org-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&database.APIKey{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTouchAPIKey_Revoked(t *testing.T) {
	db := testutil.NewDB(t)

	key, err := TouchAPIKey(db, "org-1.sig", "org-1")
	require.NoError(t, err)
	require.NoError(t, db.Model(key).Update("revoked", true).Error)

	_, err = TouchAPIKey(db, "org-1.sig", "org-1")
	assert.ErrorIs(t, err, ErrRevokedKey)
}
