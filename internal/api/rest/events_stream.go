package rest

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clustermgr/engine/internal/pkg/metrics"
	"github.com/clustermgr/engine/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Cross-origin policy is enforced by the CORS middleware in front of the
	// router; the upgrader itself accepts what got through.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const eventStreamPollInterval = time.Second

// eventStream is the live tail of event_list: the client connects once and
// receives each new event row as a JSON frame instead of re-polling the list
// endpoint. Filters from the query string apply the same way they do on the
// list call.
func (h *Handler) eventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already wrote the error response
	}
	defer conn.Close()
	metrics.EventStreamClientsActive.Inc()
	defer metrics.EventStreamClientsActive.Dec()

	req := listRequest(r)
	var lastSeen time.Time

	ticker := time.NewTicker(eventStreamPollInterval)
	defer ticker.Stop()

	// Reads are discarded, but the pump notices the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
		events, err := h.svc.EventList(r.Context(), service.ListRequest{
			Filters:  req.Filters,
			SortKeys: []string{"created_at"},
			SortDir:  "asc",
		})
		if err != nil {
			continue
		}
		for _, ev := range events {
			if !ev.CreatedAt.After(lastSeen) {
				continue
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			lastSeen = ev.CreatedAt
		}
	}
}
