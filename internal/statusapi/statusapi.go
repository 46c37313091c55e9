// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package statusapi exposes the most recent scenario run and run history
// over HTTP, so a CI job or harness can poll run state instead of scraping
// stdout. Like the trace sinks, it is an observability side-channel, never
// required for correctness.
package statusapi

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"usbsim/internal/history"
)

// Server wraps a gin engine reporting scenario run status.
type Server struct {
	engine *gin.Engine
	store  *history.Store

	mu   sync.RWMutex
	last history.Run
}

// New builds a Server backed by store. store may be nil, in which case
// /scenarios/history always reports an empty list.
func New(store *history.Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{engine: gin.New(), store: store}

	s.engine.Use(gin.Recovery())
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/scenarios/history", s.handleHistory)
	return s
}

// RecordRun updates the last-seen run the /status endpoint reports. When no
// run has been recorded in-process (the monitor subcommand serves from a
// separate process than the scenario runs), /status falls back to the most
// recent run in the history store.
func (s *Server) RecordRun(r history.Run) {
	s.mu.Lock()
	s.last = r
	s.mu.Unlock()
}

// ListenAndServe starts the HTTP server on addr. It blocks until the server
// stops or errors.
func (s *Server) ListenAndServe(addr string) error {
	return s.engine.Run(addr)
}

type statusResponse struct {
	LastScenario string `json:"last_scenario,omitempty"`
	Passed       bool   `json:"passed"`
	HasRun       bool   `json:"has_run"`
	Error        string `json:"error,omitempty"`
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last.Scenario == "" && s.store != nil {
		if runs, err := s.store.Recent(1); err == nil && len(runs) > 0 {
			last = runs[0]
		}
	}

	c.JSON(http.StatusOK, statusResponse{
		LastScenario: last.Scenario,
		Passed:       last.Passed,
		HasRun:       last.Scenario != "",
		Error:        last.Error,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusOK, []history.Run{})
		return
	}
	runs, err := s.store.Recent(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}
