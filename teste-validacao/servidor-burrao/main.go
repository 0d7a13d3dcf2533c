package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Upstream falso para validar o gateway localmente:
//
//	UPSTREAM_PLATFORMS_URL=http://localhost:8081 \
//	UPSTREAM_WEB_SEARCH_URL=http://localhost:8081 \
//	UPSTREAM_CHAT_URL=http://localhost:8081 UPSTREAM_CHAT_KEY=x go run ./cmd/gateway
var platforms = []string{"github", "gitlab", "reddit", "twitch", "keybase", "medium", "devto", "codeberg"}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	http.HandleFunc("/api/lookup", func(w http.ResponseWriter, r *http.Request) {
		user := r.URL.Query().Get("username")
		log.Info().Str("username", user).Msg("lookup")
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher, _ := w.(http.Flusher)
		enc := json.NewEncoder(w)

		_ = enc.Encode(map[string]any{"total": len(platforms)})
		for i, p := range platforms {
			if i == 3 {
				// linha quebrada de propósito: o gateway e o CLI devem seguir em frente
				fmt.Fprintln(w, `{"name":"broken",`)
			}
			_ = enc.Encode(map[string]any{
				"name":             p,
				"url":              fmt.Sprintf("https://%s.example/%s", p, user),
				"category":         "social",
				"check":            map[string]bool{"exists": len(user)%2 == i%2},
				"response_time_ms": 40 + i*7,
			})
			if flusher != nil {
				flusher.Flush()
			}
			select {
			case <-r.Context().Done():
				return
			case <-time.After(120 * time.Millisecond):
			}
		}
		_ = enc.Encode(map[string]any{"completed": true})
	})

	http.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		log.Info().Str("q", q).Msg("web search")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"answer": "Results for " + q,
			"results": []map[string]string{
				{"title": q + " on the web", "url": "https://web.example/" + q, "content": "A page mentioning " + q},
			},
		})
	})

	http.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		log.Info().Msg("chat")
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, word := range []string{"Tela ", "do ", "Sistema: ", "ok."} {
			data, _ := json.Marshal(map[string]any{"choices": []any{map[string]any{"delta": map[string]string{"content": word}}}})
			fmt.Fprintf(w, "data: %s\n\n", data)
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(50 * time.Millisecond)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	log.Info().Str("addr", ":8081").Msg("fake upstream running")
	if err := http.ListenAndServe(":8081", nil); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
