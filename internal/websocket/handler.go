package websocket

import (
	"net/http"
	"slices"
	"strings"

	ws "github.com/coder/websocket"
)

var knownTypes = []string{TypeItems, TypeUIState, TypeActivity, TypeBackup}

// HandleWebSocket upgrades the request and streams snapshots until the
// client goes away. The optional feeds query parameter is a comma separated
// list of message types; unknown types are rejected before upgrading.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feeds, ok := parseFeeds(r.URL.Query().Get("feeds"))
		if !ok {
			http.Error(w, "unknown feed", http.StatusBadRequest)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // single-user server on the local network
		})
		if err != nil {
			hub.logger.Warn("websocket accept", "remote", r.RemoteAddr, "error", err)
			return
		}

		NewClient(hub, conn, r.RemoteAddr, feeds).Run(r.Context())
	}
}

func parseFeeds(raw string) ([]string, bool) {
	var feeds []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if !slices.Contains(knownTypes, f) {
			return nil, false
		}
		feeds = append(feeds, f)
	}
	return feeds, true
}
