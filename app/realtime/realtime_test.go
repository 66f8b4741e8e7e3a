package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bitwise74/verify-api/internal"
	"bitwise74/verify-api/internal/model"
	"bitwise74/verify-api/internal/registry"
	"bitwise74/verify-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	gin.SetMode(gin.TestMode)

	name := strings.ReplaceAll(t.Name(), "/", "_")

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.VerificationSession{}))

	d := &internal.Deps{DB: db}
	d.Registry = registry.New(&service.SessionStore{DB: db}, registry.Options{
		IdleTimeout: time.Minute,
		GracePeriod: 50 * time.Millisecond,
	})
	d.Notifier = service.NewNotifier(d.Registry, service.NotifierOpts{
		Retries: 2,
		Delay:   10 * time.Millisecond,
	})

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("requestID", "test") })
	r.GET("/verification", func(c *gin.Context) { Connect(c, d) })
	r.POST("/notify-verified", func(c *gin.Context) { NotifyVerified(c, d) })
	r.GET("/status", func(c *gin.Context) { Status(c, d) })

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv, db
}

func addSession(t *testing.T, db *gorm.DB, vid string) {
	require.NoError(t, db.Create(&model.VerificationSession{
		VID:       vid,
		UserID:    "u1",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Minute),
	}).Error)
}

func dial(t *testing.T, srv *httptest.Server, vid string) *websocket.Conn {
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/verification"
	if vid != "" {
		wsURL += "?vid=" + vid
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) registry.Event {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ev registry.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func postNotify(t *testing.T, srv *httptest.Server, vid, email string) (*http.Response, map[string]any) {
	body, err := json.Marshal(gin.H{"vid": vid, "email": email})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/notify-verified", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return resp, out
}

func TestConnectWithoutVID(t *testing.T) {
	srv, _ := newTestServer(t)

	conn := dial(t, srv, "")

	ev := readEvent(t, conn)
	assert.Equal(t, registry.CodeError, ev.Code)
	assert.Equal(t, registry.ReasonMissingVID, ev.Message)
}

func TestConnectWithUnknownVID(t *testing.T) {
	srv, _ := newTestServer(t)

	conn := dial(t, srv, "doesnotexist")

	ev := readEvent(t, conn)
	assert.Equal(t, registry.CodeError, ev.Code)
	assert.Equal(t, registry.ReasonInvalidVID, ev.Message)
}

func TestVerificationHandshake(t *testing.T) {
	srv, db := newTestServer(t)
	addSession(t, db, "v1")

	conn := dial(t, srv, "v1")

	ev := readEvent(t, conn)
	require.Equal(t, registry.CodeConnected, ev.Code)

	resp, out := postNotify(t, srv, "v1", "a@example.com")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "NOTIFIED", out["code"])
	assert.Equal(t, float64(1), out["deliveredCount"])

	ev = readEvent(t, conn)
	assert.Equal(t, registry.CodeVerified, ev.Code)
	assert.Equal(t, "a@example.com", ev.Email)

	// Delivery is terminal: the session row is gone
	var count int64
	require.NoError(t, db.Model(&model.VerificationSession{}).Where("vid = ?", "v1").Count(&count).Error)
	assert.Zero(t, count)
}

func TestNotifyWithoutConnection(t *testing.T) {
	srv, db := newTestServer(t)
	addSession(t, db, "v1")

	resp, out := postNotify(t, srv, "v1", "a@example.com")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NO_CONNECTION", out["code"])

	// A failed delivery must not burn the session
	var count int64
	require.NoError(t, db.Model(&model.VerificationSession{}).Where("vid = ?", "v1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDisconnectThenReconnectWithinGrace(t *testing.T) {
	srv, db := newTestServer(t)
	addSession(t, db, "v1")

	first := dial(t, srv, "v1")
	require.Equal(t, registry.CodeConnected, readEvent(t, first).Code)
	first.Close()

	// Reconnect before the grace period fires
	time.Sleep(10 * time.Millisecond)
	second := dial(t, srv, "v1")
	require.Equal(t, registry.CodeConnected, readEvent(t, second).Code)

	resp, _ := postNotify(t, srv, "v1", "a@example.com")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ev := readEvent(t, second)
	assert.Equal(t, registry.CodeVerified, ev.Code)
}

func TestDisconnectPastGraceDeletesSession(t *testing.T) {
	srv, db := newTestServer(t)
	addSession(t, db, "v1")

	conn := dial(t, srv, "v1")
	require.Equal(t, registry.CodeConnected, readEvent(t, conn).Code)
	conn.Close()

	assert.Eventually(t, func() bool {
		var count int64
		if err := db.Model(&model.VerificationSession{}).Where("vid = ?", "v1").Count(&count).Error; err != nil {
			return false
		}
		return count == 0
	}, 2*time.Second, 10*time.Millisecond)
}
