package handlers

import (
	"net/http"
	"sync"

	intconfig "marketplace/internal/config"
	"marketplace/internal/http/middleware"
	"marketplace/internal/services"

	"github.com/gin-gonic/gin"
)

var (
	cfgMu      sync.RWMutex
	cfg        intconfig.Env
	aggregator *services.AggregatorClient
)

// Configure hands the loaded env and shared aggregator client to the handler
// package before the router mounts anything.
func Configure(env intconfig.Env, aggr *services.AggregatorClient) {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	cfg = env
	aggregator = aggr
}

func getEnv() intconfig.Env {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg
}

func getAggregator() *services.AggregatorClient {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return aggregator
}

// RespondError sends standard error payload with request_id included.
func RespondError(c *gin.Context, status int, message string, err error) {
	payload := gin.H{
		"message":    message,
		"request_id": middleware.GetRequestID(c),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	c.JSON(status, payload)
}

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil {
		RespondError(c, http.StatusBadRequest, "body kosong", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondError(c, http.StatusBadRequest, "payload tidak valid", err)
		return false
	}
	return true
}
