package broker

import "net/http"

// NewRouter builds the broker's top-level http.Handler: path-prefix
// dispatch over Handlers, mirroring the teacher's plain net/http routing
// (no router library in its go.mod; see DESIGN.md).
func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/submit/request", h.HandleSubmitRequest)
	mux.HandleFunc("/submit/offer", h.HandleSubmitOffer)
	mux.HandleFunc("/query/", h.HandleQuery)
	mux.HandleFunc("/subscribe", h.HandleSubscribe)
	return mux
}
