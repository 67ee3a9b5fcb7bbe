package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gaht-identity/internal/core/token"
	"gaht-identity/internal/identity"
	"gaht-identity/internal/transport/http/handler"
	"gaht-identity/internal/transport/http/router"
	"gaht-identity/pkg/utils"
)

func newTestAPI(t *testing.T) (*gin.Engine, *token.Issuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := identity.NewStore(db)
	require.NoError(t, store.AutoMigrate())
	for _, name := range []string{"Admin", "User"} {
		require.NoError(t, db.Create(&identity.Role{ID: utils.NewID(), Name: name, Active: true}).Error)
	}

	iss, err := token.New([]byte("handler-test-key"), "identity-test", token.DefaultTTL)
	require.NoError(t, err)

	engine := identity.NewEngine(store, iss, zap.NewNop())
	authH := handler.NewAuthHandler(engine, zap.NewNop())
	return router.NewAPIEngine(zap.NewNop(), authH, iss), iss
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validRegister(username string) map[string]string {
	return map[string]string{
		"username":          username,
		"password":          "Secret123!",
		"role":              "User",
		"name":              "Ada",
		"lastName":          "Lovelace",
		"mothersMaidenName": "Byron",
		"email":             username + "@example.com",
		"cellPhone":         "+52 55 1234 5678",
	}
}

func TestRegisterLoginMe(t *testing.T) {
	r, iss := newTestAPI(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", validRegister("alice"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "alice", "password": "Secret123!"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out.Data.Token)

	claims, err := iss.Parse(out.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "User", claims.Role)

	w = doJSON(t, r, http.MethodGet, "/api/v1/me", nil,
		map[string]string{"Authorization": "Bearer " + out.Data.Token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
	assert.Contains(t, w.Body.String(), `"role":"User"`)
}

func TestLogin_EnumerationResistant(t *testing.T) {
	r, _ := newTestAPI(t)
	doJSON(t, r, http.MethodPost, "/api/v1/auth/register", validRegister("alice"), nil)

	unknown := doJSON(t, r, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "nobody", "password": "x"}, nil)
	wrongPw := doJSON(t, r, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "alice", "password": "x"}, nil)

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	// byte-identical bodies: no account enumeration through the response
	assert.Equal(t, wrongPw.Body.String(), unknown.Body.String())
}

func TestLogin_BlankInput(t *testing.T) {
	r, _ := newTestAPI(t)
	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "  ", "password": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_DuplicateConflict(t *testing.T) {
	r, _ := newTestAPI(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", validRegister("bob"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/register", validRegister("bob"), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegister_MissingFieldNamed(t *testing.T) {
	r, _ := newTestAPI(t)

	in := validRegister("carol")
	delete(in, "lastName")
	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", in, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "LastName")
}

func TestRegister_UnknownRole(t *testing.T) {
	r, _ := newTestAPI(t)

	in := validRegister("dave")
	in["role"] = "Ghost"
	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", in, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid role")

	// the failed registration must not have created the account
	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "dave", "password": "Secret123!"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_RequiresToken(t *testing.T) {
	r, _ := newTestAPI(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/me", nil,
		map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_BadBody(t *testing.T) {
	r, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
