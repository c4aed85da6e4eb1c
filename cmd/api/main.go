// cmd/api/main.go
package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"posnexus/internal/obs"
)

// Gateway in front of the terminals and the upstream services.
func main() {
	logger, err := obs.NewLogger(getEnv("LOG_LEVEL", "info"), false)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	routes := map[string]string{
		"/api/v1/pos":     getEnv("POS_SERVICE_URL", "http://localhost:8080"),
		"/api/v1/catalog": getEnv("CATALOG_SERVICE_URL", "http://localhost:8081"),
		"/api/v1/sales":   getEnv("SALES_SERVICE_URL", "http://localhost:8082"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	for prefix, target := range routes {
		u, err := url.Parse(target)
		if err != nil {
			logger.Fatal("invalid upstream url", zap.String("prefix", prefix), zap.String("url", target), zap.Error(err))
		}
		proxy := httputil.NewSingleHostReverseProxy(u)
		r.Mount(prefix, http.StripPrefix(prefix, proxy))
		logger.Info("route registered", zap.String("prefix", prefix), zap.String("upstream", strings.TrimRight(target, "/")))
	}

	port := getEnv("PORT", "8000")
	logger.Info("api gateway listening", zap.String("port", port))
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("api gateway stopped", zap.Error(err))
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
