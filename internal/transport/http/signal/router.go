package signalhttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"signalbot/internal/lifecycle"
	"signalbot/internal/logger"
	"signalbot/internal/pkg/text"
	"signalbot/internal/signal"
	"signalbot/internal/store/events"
	"signalbot/internal/trend"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

const maxAlertBody = 4 << 10

// Submitter accepts a parsed alert and returns its trace ID.
type Submitter interface {
	Submit(ctx context.Context, sig signal.Signal) string
}

type TrendReader interface {
	Snapshot() []trend.Entry
}

type PhaseReader interface {
	Phases() map[string]lifecycle.Phase
}

type EventLister interface {
	List(ctx context.Context, q events.Query) ([]events.TradeEventModel, error)
}

// Router serves the alert webhook and the read-only status API.
type Router struct {
	Submitter   Submitter
	Trend       TrendReader
	Phases      []PhaseReader
	Events      EventLister
	OnMalformed func()
}

// Register mounts the webhook and the status API behind access.
func (r *Router) Register(engine *gin.Engine, access *AccessList) {
	engine.POST("/signal", access.guard(r.handleSignal)...)
	api := engine.Group("/api", access.guard()...)
	api.GET("/trend", r.handleTrend)
	api.GET("/lifecycle", r.handleLifecycle)
	api.GET("/events", r.handleEvents)
}

func (r *Router) handleSignal(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAlertBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
		return
	}
	line := alertLine(body)
	sig, err := signal.Parse(line)
	if err != nil {
		if r.OnMalformed != nil {
			r.OnMalformed()
		}
		var malformed *signal.MalformedAlertError
		if errors.As(err, &malformed) {
			logger.Warnf("http: malformed alert %q: %s", text.Truncate(malformed.Input, 200), malformed.Reason)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	traceID := r.Submitter.Submit(c.Request.Context(), sig)
	c.JSON(http.StatusOK, gin.H{"status": "accepted", "trace_id": traceID})
}

// alertLine accepts either the raw alert text or a JSON object carrying it
// under "data" (or "message").
func alertLine(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") && gjson.Valid(trimmed) {
		for _, path := range []string{"data", "message"} {
			if v := gjson.Get(trimmed, path); v.Exists() {
				return strings.TrimSpace(v.String())
			}
		}
		return ""
	}
	if strings.HasPrefix(trimmed, `"`) && gjson.Valid(trimmed) {
		return strings.TrimSpace(gjson.Parse(trimmed).String())
	}
	return trimmed
}

func (r *Router) handleTrend(c *gin.Context) {
	if r.Trend == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []trend.Entry{}})
		return
	}
	entries := r.Trend.Snapshot()
	if prefix := strings.TrimSpace(c.Query("prefix")); prefix != "" {
		filtered := entries[:0:0]
		for _, e := range entries {
			if strings.HasPrefix(e.Key, strings.ToUpper(prefix)) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

type laneView struct {
	Lane  string          `json:"lane"`
	Phase lifecycle.Phase `json:"phase"`
}

func (r *Router) handleLifecycle(c *gin.Context) {
	lanes := make([]laneView, 0)
	for _, p := range r.Phases {
		for lane, phase := range p.Phases() {
			lanes = append(lanes, laneView{Lane: lane, Phase: phase})
		}
	}
	sort.Slice(lanes, func(i, j int) bool { return lanes[i].Lane < lanes[j].Lane })
	c.JSON(http.StatusOK, gin.H{"lanes": lanes})
}

func (r *Router) handleEvents(c *gin.Context) {
	if r.Events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event store disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	q := events.Query{
		Pair:    strings.ToUpper(strings.TrimSpace(c.Query("pair"))),
		TraceID: strings.TrimSpace(c.Query("trace_id")),
		Kind:    strings.TrimSpace(c.Query("kind")),
		Limit:   limit,
	}
	list, err := r.Events.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": list})
}
