package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/czcorpus/attrisim/cnf"
	"github.com/czcorpus/attrisim/risk"
	"github.com/czcorpus/attrisim/stats"
	"github.com/gin-gonic/gin"
)

type service interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
}

// employeeDB provides listings which are not part of the engine
type employeeDB interface {
	ListEmployees(ctx context.Context, filter stats.ListFilter) ([]risk.EmployeeRecord, error)
	GetEmployee(ctx context.Context, id int) (risk.EmployeeRecord, error)
	GetRuleSnapshot(id int) (stats.RuleSnapshot, error)
	GetTrainings(limit int) ([]stats.TrainingRecord, error)
}

// VersionInfo provides a detailed information about the actual build
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
}

// ------

// decodeThresholds reads an optional threshold configuration from
// the request body. Missing items (or the whole body) are taken
// from the configured defaults.
func decodeThresholds(ctx *gin.Context, dflt risk.ThresholdConfig) (risk.ThresholdConfig, error) {
	ans := dflt
	if ctx.Request.Body == nil {
		return ans, nil
	}
	err := json.NewDecoder(ctx.Request.Body).Decode(&ans)
	if err == io.EOF {
		return dflt, nil

	} else if err != nil {
		return dflt, fmt.Errorf("invalid threshold configuration: %w", err)
	}
	return ans, nil
}

// errorStatus maps engine errors to HTTP statuses
func errorStatus(err error) int {
	switch {
	case errors.Is(err, stats.ErrEmployeeNotFound):
		return http.StatusNotFound
	case errors.Is(err, risk.ErrPreconditionViolation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// -----

func corsMiddleware(conf *cnf.Conf) gin.HandlerFunc {
	return func(ctx *gin.Context) {

		var allowedOrigin string
		currOrigin := ctx.Request.Header.Get("Origin")
		for _, origin := range conf.CorsAllowedOrigins {
			if currOrigin == origin || origin == "*" {
				allowedOrigin = origin
				break
			}
		}
		if allowedOrigin != "" {
			ctx.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			ctx.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			ctx.Writer.Header().Set(
				"Access-Control-Allow-Headers",
				"Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With",
			)
			ctx.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		}

		if ctx.Request.Method == "OPTIONS" {
			ctx.AbortWithStatus(204)
			return
		}
		ctx.Next()
	}
}
