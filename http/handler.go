package http

import (
	"fmt"
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hexsphere/chunks"
	"github.com/aukilabs/hexsphere/octree"
	"github.com/rs/cors"
	"github.com/segmentio/encoding/json"
)

func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func HandleReadyCheck(readinessCheck func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !readinessCheck() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func HandleVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(version))
	}
}

// HandleWithCORS allows browser viewers served from any origin to reach h.
func HandleWithCORS(h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
	}).Handler(h)
}

// HandleChunks writes the chunk snapshot of every manager.
func HandleChunks(managers ...*chunks.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshots := make([]chunks.Snapshot, 0, len(managers))
		for _, m := range managers {
			snapshots = append(snapshots, m.Snapshot())
		}
		writeJSON(w, snapshots)
	}
}

// HandleOctree writes the octree debug info of every body, by body name.
func HandleOctree(bodies ...*chunks.Body) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos := make(map[string]octree.DebugInfo, len(bodies))
		for _, b := range bodies {
			infos[b.Name] = b.Octree.GetDebugInfo()
		}
		writeJSON(w, infos)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.WithTag("type", fmt.Sprintf("%T", v)).
			Error(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
