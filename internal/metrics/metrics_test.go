package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordDecisionOutcome(t *testing.T) {
	before := testutil.ToFloat64(ModerationDecisionsTotal.WithLabelValues("test", "blocked"))
	RecordDecision("test", true, true, 120, []string{"threat"})
	require.Equal(t, before+1, testutil.ToFloat64(ModerationDecisionsTotal.WithLabelValues("test", "blocked")))

	before = testutil.ToFloat64(ModerationDecisionsTotal.WithLabelValues("test", "review"))
	RecordDecision("test", false, true, 45, nil)
	require.Equal(t, before+1, testutil.ToFloat64(ModerationDecisionsTotal.WithLabelValues("test", "review")))
}

func TestRecordReviewCountsReports(t *testing.T) {
	before := testutil.ToFloat64(ReportsResolvedTotal)
	RecordReview("hide", 3)
	RecordReview("approve", 0)
	require.Equal(t, before+3, testutil.ToFloat64(ReportsResolvedTotal))
}

func TestPrometheusMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(PrometheusMiddleware())
	r.GET("/api/posts/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/posts/:id", "204"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/posts/abc", nil))

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, before+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/posts/:id", "204")))
}
