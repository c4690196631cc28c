package handler

import (
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Stats tracks server-wide metrics
type Stats struct {
	startTime        time.Time
	requestCount     atomic.Int64
	wsConnections    atomic.Int64
	wsMessagesOut    atomic.Int64
	cacheHits        atomic.Int64
	cacheMisses      atomic.Int64
	rateLimitBlocked atomic.Int64
	plans            atomic.Int64
	plansFailed      atomic.Int64
	plansSuperseded  atomic.Int64

	resolvedMu sync.Mutex
	resolvedBy map[string]int64
}

// Global stats instance
var ServerStats = &Stats{
	startTime:  time.Now(),
	resolvedBy: make(map[string]int64),
}

func (s *Stats) IncRequests()         { s.requestCount.Add(1) }
func (s *Stats) IncWSConnections()    { s.wsConnections.Add(1) }
func (s *Stats) DecWSConnections()    { s.wsConnections.Add(-1) }
func (s *Stats) IncWSMessagesOut()    { s.wsMessagesOut.Add(1) }
func (s *Stats) IncRateLimitBlocked() { s.rateLimitBlocked.Add(1) }
func (s *Stats) IncPlans()            { s.plans.Add(1) }
func (s *Stats) IncPlansFailed()      { s.plansFailed.Add(1) }
func (s *Stats) IncPlansSuperseded()  { s.plansSuperseded.Add(1) }

// RecordCacheLookup counts geocode cache hits and misses.
func (s *Stats) RecordCacheLookup(hit bool) {
	if hit {
		s.cacheHits.Add(1)
		return
	}
	s.cacheMisses.Add(1)
}

// RecordResolved counts which resolver strategy produced a location.
func (s *Stats) RecordResolved(strategy string) {
	s.resolvedMu.Lock()
	defer s.resolvedMu.Unlock()
	s.resolvedBy[strategy]++
}

func (s *Stats) resolvedSnapshot() map[string]int64 {
	s.resolvedMu.Lock()
	defer s.resolvedMu.Unlock()
	out := make(map[string]int64, len(s.resolvedBy))
	for k, v := range s.resolvedBy {
		out[k] = v
	}
	return out
}

// CountRequests increments the request counter for every request.
func CountRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServerStats.IncRequests()
		next.ServeHTTP(w, r)
	})
}

// SessionCounter reports the number of live sessions. Without one the
// stats report -1.
type SessionCounter interface {
	Count() int
}

type StatsHandler struct {
	sessions SessionCounter
	clients  func() int
}

func NewStatsHandler(sessions SessionCounter, clients func() int) *StatsHandler {
	return &StatsHandler{sessions: sessions, clients: clients}
}

type StatsResponse struct {
	Server    ServerStatsResponse    `json:"server"`
	Planner   PlannerStatsResponse   `json:"planner"`
	WebSocket WebSocketStatsResponse `json:"websocket"`
	Cache     CacheStatsResponse     `json:"cache"`
	Go        GoStatsResponse        `json:"go"`
}

type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	RequestCount  int64     `json:"request_count"`
	RateLimited   int64     `json:"rate_limited"`
	Version       string    `json:"version"`
}

type PlannerStatsResponse struct {
	Sessions   int              `json:"sessions"`
	Plans      int64            `json:"plans"`
	Failed     int64            `json:"failed"`
	Superseded int64            `json:"superseded"`
	ResolvedBy map[string]int64 `json:"resolved_by"`
}

type WebSocketStatsResponse struct {
	Connections int64 `json:"connections"`
	Clients     int   `json:"clients"`
	MessagesOut int64 `json:"messages_out"`
}

type CacheStatsResponse struct {
	Hits   int64   `json:"hits"`
	Misses int64   `json:"misses"`
	Ratio  float64 `json:"hit_ratio"`
}

type GoStatsResponse struct {
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(ServerStats.startTime)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	hits := ServerStats.cacheHits.Load()
	misses := ServerStats.cacheMisses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	sessions := -1
	if h.sessions != nil {
		sessions = h.sessions.Count()
	}
	clients := 0
	if h.clients != nil {
		clients = h.clients()
	}

	response := StatsResponse{
		Server: ServerStatsResponse{
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			StartTime:     ServerStats.startTime,
			RequestCount:  ServerStats.requestCount.Load(),
			RateLimited:   ServerStats.rateLimitBlocked.Load(),
			Version:       "1.0.0",
		},
		Planner: PlannerStatsResponse{
			Sessions:   sessions,
			Plans:      ServerStats.plans.Load(),
			Failed:     ServerStats.plansFailed.Load(),
			Superseded: ServerStats.plansSuperseded.Load(),
			ResolvedBy: ServerStats.resolvedSnapshot(),
		},
		WebSocket: WebSocketStatsResponse{
			Connections: ServerStats.wsConnections.Load(),
			Clients:     clients,
			MessagesOut: ServerStats.wsMessagesOut.Load(),
		},
		Cache: CacheStatsResponse{
			Hits:   hits,
			Misses: misses,
			Ratio:  ratio,
		},
		Go: GoStatsResponse{
			Goroutines:  runtime.NumGoroutine(),
			HeapAlloc:   mem.HeapAlloc,
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	}

	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, response)
}
