package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"epistolary-lite/internal/model"
	"epistolary-lite/internal/version"
)

func TestMaintenance(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Maintenance(true, time.Now().Add(-time.Minute)))
	r.GET("/v1/status", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	var reply model.StatusReply
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Status != "maintenance" || reply.Version != version.Version() {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if reply.Uptime == "" {
		t.Fatal("expected uptime in reply")
	}
}
