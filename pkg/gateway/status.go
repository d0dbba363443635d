package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/silvermoon-h/matching-engine-2/pkg/engine"
)

// NewStatusServer builds a read-only HTTP status endpoint over eng,
// mirroring the welcome/status HTTP server cmd/server/main.go runs
// alongside the teacher's gRPC server — generalized here from a static
// welcome page to a JSON snapshot of global and per-book phase, and
// routed with gorilla/mux rather than a single http.HandlerFunc since this
// endpoint now has more than one route.
func NewStatusServer(addr string, eng *engine.MatchingEngine) *http.Server {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	router.HandleFunc("/status", statusHandler(eng)).Methods(http.MethodGet)

	return &http.Server{
		Addr:    addr,
		Handler: router,
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statusResponse struct {
	GlobalPhase string              `json:"global_phase"`
	Books       []bookStatusPayload `json:"books"`
}

type bookStatusPayload struct {
	ProductID      uint32 `json:"product_id"`
	Name           string `json:"name"`
	Phase          string `json:"phase"`
	ReferencePrice string `json:"reference_price"`
}

func statusHandler(eng *engine.MatchingEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := eng.BookStatuses()
		payload := statusResponse{
			GlobalPhase: eng.GlobalPhase().String(),
			Books:       make([]bookStatusPayload, 0, len(statuses)),
		}
		for _, s := range statuses {
			payload.Books = append(payload.Books, bookStatusPayload{
				ProductID:      s.ProductID,
				Name:           s.Name,
				Phase:          s.Phase.String(),
				ReferencePrice: s.ReferencePrice,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}
}
