package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"jamu-quote-bot/backend/pkg/cache"
	"jamu-quote-bot/backend/pkg/logger"
	"jamu-quote-bot/backend/quotes/models"
	"jamu-quote-bot/backend/quotes/repository"
	"jamu-quote-bot/backend/quotes/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "quotes.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Quote{}))

	svc := service.NewQuoteService(repository.NewGormQuoteStore(db), cache.New(time.Minute, 0, 100))
	handler := NewQuoteHandler(svc, logger.GetGlobal())

	r := gin.New()
	RegisterQuoteRoutes(r, handler)
	return r
}

func postQuote(t *testing.T, r *gin.Engine, content, author string, guildID int64) models.Quote {
	t.Helper()

	body, _ := json.Marshal(models.CreateQuoteRequest{
		Content: content,
		Author:  author,
		AddedBy: 42,
		GuildID: guildID,
	})
	req, _ := http.NewRequest(http.MethodPost, "/quotes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var quote models.Quote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
	return quote
}

func TestCreateAndGetQuote(t *testing.T) {
	r := newTestRouter(t)

	created := postQuote(t, r, "hello", "Ada", 1)
	assert.NotZero(t, created.ID)

	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("/quotes/%d?guild_id=1", created.ID), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hello")

	// Other guilds cannot see the quote.
	req, _ = http.NewRequest(http.MethodGet, fmt.Sprintf("/quotes/%d?guild_id=2", created.ID), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateQuoteRejectsMissingFields(t *testing.T) {
	r := newTestRouter(t)

	req, _ := http.NewRequest(http.MethodPost, "/quotes", bytes.NewReader([]byte(`{"content":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGuildIDIsRequired(t *testing.T) {
	r := newTestRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/quotes/random", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchAndRandom(t *testing.T) {
	r := newTestRouter(t)

	postQuote(t, r, "To be or not to be", "Shakespeare", 1)
	postQuote(t, r, "unrelated", "Someone", 1)

	req, _ := http.NewRequest(http.MethodGet, "/quotes/search?guild_id=1&q=NOT+TO+BE", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var results []models.Quote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	assert.Len(t, results, 1)

	req, _ = http.NewRequest(http.MethodGet, "/quotes/random?guild_id=1&author=shakespeare", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Shakespeare")
}

func TestDeleteQuote(t *testing.T) {
	r := newTestRouter(t)

	created := postQuote(t, r, "deletable", "Ada", 1)

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("/quotes/%d?guild_id=1", created.ID), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req, _ = http.NewRequest(http.MethodDelete, fmt.Sprintf("/quotes/%d?guild_id=1", created.ID), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportQuotes(t *testing.T) {
	r := newTestRouter(t)

	postQuote(t, r, "keep", "Ada", 1)
	postQuote(t, r, "other guild", "Bob", 2)

	req, _ := http.NewRequest(http.MethodGet, "/quotes/export?guild_id=1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var rows []models.InterchangeRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "keep", rows[0].Content)
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
