package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"triagegate/internal/analysis"
	"triagegate/pkg/logging/logging"

	"go.uber.org/zap"
)

// AnalyzeHandler holds dependencies for the /v1/analyze endpoint.
type AnalyzeHandler struct {
	Analyzer *analysis.CachedAnalyzer
}

func NewAnalyzeHandler(analyzer *analysis.CachedAnalyzer) *AnalyzeHandler {
	return &AnalyzeHandler{Analyzer: analyzer}
}

type analyzeResponse struct {
	Result   *analysis.Result `json:"result"`
	CacheHit bool             `json:"cache_hit"`
	Tier     string           `json:"tier,omitempty"`
}

// Analyze handles POST /v1/analyze: cache lookup first, upstream
// analysis on a miss, result written back through every tier.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req analysis.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request", zap.Error(err))
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		logger.Warn("invalid request", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, tier, err := h.Analyzer.Analyze(ctx, &req)
	if err != nil {
		logger.Error("analysis_failed", zap.Error(err))
		http.Error(w, "analysis failed", http.StatusBadGateway)
		return
	}

	hit := tier != ""
	logger.Info("analyze_decision",
		zap.Bool("cache_hit", hit),
		zap.String("cache_tier", string(tier)),
		zap.Duration("total_latency_ms", time.Since(start)),
	)

	writeJSON(w, analyzeResponse{
		Result:   result,
		CacheHit: hit,
		Tier:     string(tier),
	})
}

// writeJSON is a small helper to send JSON responses consistently.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
