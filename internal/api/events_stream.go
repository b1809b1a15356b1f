package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ssePingInterval keeps idle SSE connections alive through proxies.
const ssePingInterval = 15 * time.Second

// StreamEvents pushes bus events to the client as server-sent events.
// ?campaign_id= narrows the stream to one campaign. The connection stays
// open until the client disconnects.
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	if h.events == nil {
		respondError(w, http.StatusServiceUnavailable, "event stream not configured")
		return
	}

	campaignFilter := r.URL.Query().Get("campaign_id")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	subID := fmt.Sprintf("sse-%d", time.Now().UnixNano())
	ch := h.events.Subscribe(subID)
	defer h.events.Unsubscribe(subID)

	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if campaignFilter != "" && e.CampaignID != campaignFilter {
				continue
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprintf(w, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}
