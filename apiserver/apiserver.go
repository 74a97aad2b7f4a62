// Copyright 2025 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2025 Department of Linguistics,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/czcorpus/attrisim/cnf"
	"github.com/czcorpus/attrisim/metrics"
	"github.com/czcorpus/attrisim/prediction"
	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// -----

type apiServer struct {
	conf    *cnf.Conf
	server  *http.Server
	engine  *prediction.Engine
	db      employeeDB
	metrics *metrics.Manager
	version VersionInfo
}

func (api *apiServer) newRouter() *gin.Engine {
	if !api.conf.Logging.Level.IsDebugMode() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware())
	router.Use(uniresp.AlwaysJSONContentType())
	router.Use(corsMiddleware(api.conf))
	router.NoMethod(uniresp.NoMethodHandler)
	router.NoRoute(uniresp.NotFoundHandler)

	router.GET("/", api.handleHealth)
	router.GET("/api/version", api.handleVersion)
	router.GET("/api/employees", api.handleListEmployees)
	router.GET("/api/employees/:employeeId", api.handleEmployeeDetail)
	router.POST("/api/score", api.handleScore)
	router.POST("/api/simulate", api.handleSimulate)
	router.POST("/api/predict-ml/:employeeId", api.handlePredictML)
	router.POST("/api/predict-ml", api.handlePredictML)
	router.POST("/api/retrain", api.handleRetrain)
	router.GET("/api/model", api.handleModelInfo)
	if api.metrics != nil {
		router.GET("/metrics", gin.WrapH(api.metrics.Handler()))
	}
	return router
}

func (api *apiServer) Start(ctx context.Context) {
	log.Info().Msgf("starting to listen at %s:%d", api.conf.ListenAddress, api.conf.ListenPort)
	api.server = &http.Server{
		Handler:      api.newRouter(),
		Addr:         fmt.Sprintf("%s:%d", api.conf.ListenAddress, api.conf.ListenPort),
		WriteTimeout: time.Duration(api.conf.ServerWriteTimeoutSecs) * time.Second,
		ReadTimeout:  time.Duration(api.conf.ServerReadTimeoutSecs) * time.Second,
	}
	go func() {
		if err := api.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()
}

func (api *apiServer) Stop(ctx context.Context) error {
	log.Warn().Msg("shutting down attrisim HTTP API server")
	return api.server.Shutdown(ctx)
}

// -------------------------

// Run starts the HTTP API and blocks until ctx is cancelled.
// The engine is expected to have its model already installed.
func Run(
	ctx context.Context,
	conf *cnf.Conf,
	engine *prediction.Engine,
	db employeeDB,
	metricsManager *metrics.Manager,
	version VersionInfo,
) {

	server := &apiServer{
		conf:    conf,
		engine:  engine,
		db:      db,
		metrics: metricsManager,
		version: version,
	}

	services := []service{server}
	for _, m := range services {
		m.Start(ctx)
	}
	<-ctx.Done()
	log.Warn().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, s := range services {
		wg.Add(1)
		go func(srv service) {
			defer wg.Done()
			if err := srv.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Type("service", srv).Msg("Error shutting down service")
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Graceful shutdown completed")
	case <-shutdownCtx.Done():
		log.Warn().Msg("Shutdown timed out")
	}
}
