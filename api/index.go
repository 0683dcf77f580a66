package handler

import (
	"log"
	"net/http"

	"github.com/arnavshah/rota-engine/internal/app"
	"github.com/arnavshah/rota-engine/internal/config"
	"github.com/arnavshah/rota-engine/internal/logger"
	"github.com/gin-gonic/gin"
)

var r *gin.Engine

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zl, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "rota-engine")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	a, err := app.New(cfg, zl)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	r = a.Router
}

// Handler is the entry point for the Vercel Go runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
