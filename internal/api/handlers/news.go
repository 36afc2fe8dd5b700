package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/coordinator"
	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

type monitorNewsResponse struct {
	Txid          string `json:"txid"`
	Status        string `json:"status"`
	Confirmations int64  `json:"confirmations"`
	Context       string `json:"context"`
	AckKey        string `json:"ackKey"`
}

type newsEntryResponse struct {
	Kind        string   `json:"kind"`
	AckKey      string   `json:"ackKey"`
	Txid        string   `json:"txid,omitempty"`
	Context     string   `json:"context,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	ChildTxids  []string `json:"childTxids,omitempty"`
	Contexts    []string `json:"contexts,omitempty"`
	FundingTxid string   `json:"fundingTxid,omitempty"`

	RequiredSats  int64 `json:"requiredSats,omitempty"`
	AvailableSats int64 `json:"availableSats,omitempty"`

	ChildTxid    string `json:"childTxid,omitempty"`
	SpeedupCount int    `json:"speedupCount,omitempty"`

	EstimatedSatVB int64 `json:"estimatedSatVb,omitempty"`
	CapSatVB       int64 `json:"capSatVb,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func hashString(h chainhash.Hash) string {
	if h == (chainhash.Hash{}) {
		return ""
	}
	return h.String()
}

func toNewsEntryResponse(n models.NewsEntry) newsEntryResponse {
	childTxids := make([]string, len(n.ChildTxids))
	for i, h := range n.ChildTxids {
		childTxids[i] = h.String()
	}
	return newsEntryResponse{
		Kind:           string(n.Kind),
		AckKey:         n.AckKey,
		Txid:           hashString(n.Txid),
		Context:        n.Context,
		Reason:         n.Reason,
		ChildTxids:     childTxids,
		Contexts:       n.Contexts,
		FundingTxid:    hashString(n.FundingTxid),
		RequiredSats:   n.RequiredSats,
		AvailableSats:  n.AvailableSats,
		ChildTxid:      hashString(n.ChildTxid),
		SpeedupCount:   n.SpeedupCount,
		EstimatedSatVB: n.EstimatedSatVB,
		CapSatVB:       n.CapSatVB,
		CreatedAt:      n.CreatedAt,
	}
}

type newsFeedResponse struct {
	MonitorNews     []monitorNewsResponse `json:"monitorNews"`
	CoordinatorNews []newsEntryResponse   `json:"coordinatorNews"`
}

// GetNews handles GET /api/news: returns the combined monitor-news and
// coordinator-news feeds.
func GetNews(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed, err := coord.GetNews()
		if err != nil {
			slog.Error("get news failed", "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, err.Error())
			return
		}

		resp := newsFeedResponse{
			MonitorNews:     make([]monitorNewsResponse, len(feed.MonitorNews)),
			CoordinatorNews: make([]newsEntryResponse, len(feed.CoordinatorNews)),
		}
		for i, m := range feed.MonitorNews {
			resp.MonitorNews[i] = monitorNewsResponse{
				Txid:          m.Txid.String(),
				Status:        string(m.Status),
				Confirmations: m.Confirmations,
				Context:       m.Context,
				AckKey:        m.AckKey,
			}
		}
		for i, n := range feed.CoordinatorNews {
			resp.CoordinatorNews[i] = toNewsEntryResponse(n)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

type ackNewsRequest struct {
	MonitorKey     string `json:"monitorKey,omitempty"`
	CoordinatorKey string `json:"coordinatorKey,omitempty"`
}

// AckNews handles POST /api/news/ack: acknowledges one or both halves
// of a news feed entry.
func AckNews(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ackNewsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "malformed request body: "+err.Error())
			return
		}

		ack := models.AckNews{MonitorKey: req.MonitorKey, CoordinatorKey: req.CoordinatorKey}
		if err := coord.AckNews(ack); err != nil {
			slog.Error("ack news failed", "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
