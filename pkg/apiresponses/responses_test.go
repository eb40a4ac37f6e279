package apiresponses

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSimpleResponders(t *testing.T) {
	tests := []struct {
		name     string
		respond  func(c *gin.Context)
		wantCode int
		wantErr  string
		wantTag  string
	}{
		{"not found", func(c *gin.Context) { RespondNotFoundSimple(c, "no cat facts stored") }, http.StatusNotFound, "no cat facts stored", "NOT_FOUND"},
		{"conflict", func(c *gin.Context) { RespondConflict(c, "email is already subscribed") }, http.StatusConflict, "email is already subscribed", "CONFLICT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.respond(c)
			assert.Equal(t, tt.wantCode, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.wantErr, body.Error)
			assert.Equal(t, tt.wantTag, body.Code)
		})
	}
}

func TestRespondStoreErrorCarriesErrorText(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondStoreError(c, "read cat fact", errors.New("database is locked"), zaptest.NewLogger(t).Sugar())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "database is locked", body.Error)
	assert.Equal(t, "STORE_ERROR", body.Code)
}

func TestRespondBindError(t *testing.T) {
	type request struct {
		Email string `json:"email" binding:"required,email"`
		Fact  string `json:"fact" binding:"max=5"`
	}

	bind := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
		var req request
		err := c.ShouldBindJSON(&req)
		require.Error(t, err)
		RespondBindError(c, err)
		return w
	}

	t.Run("validation errors list fields", func(t *testing.T) {
		w := bind(`{"email":"not-an-address","fact":"too long"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decode(t, w)
		assert.Equal(t, "invalid request", body.Error)
		assert.Contains(t, body.Details, "email must be a valid email address")
		assert.Contains(t, body.Details, "fact must be at most 5 characters")
	})

	t.Run("missing field", func(t *testing.T) {
		body := decode(t, bind(`{}`))
		assert.Contains(t, body.Details, "email is required")
	})

	t.Run("malformed json", func(t *testing.T) {
		body := decode(t, bind(`{"email":`))
		assert.Equal(t, "malformed request body", body.Error)
	})
}
