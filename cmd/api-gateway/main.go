package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/radieske/lottery-3d-platform-poc/internal/shared/config"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/logger"
)

func rp(to string) *httputil.ReverseProxy {
	u, _ := url.Parse(to)
	return httputil.NewSingleHostReverseProxy(u)
}

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// targets
	ticketURL := os.Getenv("TICKET_URL")
	if ticketURL == "" {
		ticketURL = "http://localhost:8080"
	}
	statsURL := os.Getenv("STATS_URL")
	if statsURL == "" {
		statsURL = "http://localhost:8084"
	}
	tickets := rp(ticketURL)
	stats := rp(statsURL)

	mux := http.NewServeMux()

	// estatísticas vão pro stats-service; todo o resto de /api/lottery é do
	// ticket-service (bilhetes, números, sorteio, carrinho)
	mux.Handle("/api/lottery/stats/", http.StripPrefix("/api", stats))
	mux.Handle("/api/lottery/", http.StripPrefix("/api", tickets))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, withCORS(mux)); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
