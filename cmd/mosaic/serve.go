// Copyright 2018 Fabian Wenzelmann
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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmavko/mos/web"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for creating mosaics",
	Long: `Start an HTTP server that creates mosaics from uploaded images.

A client first requests a connection id (POST /api/init), optionally changes
settings (POST /api/setvar) and then uploads a target and source images
(POST /api/mosaic?connection=<id>, multipart fields "target" and "source").

Examples:
  # Start server on default port 8080
  mosaic serve

  # Start server with custom bind address and session lifetime
  mosaic serve --bind 0.0.0.0 --port 8080 --max-age 30m`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 5*time.Minute, "request timeout")
	serveCmd.Flags().Duration("max-age", time.Hour, "time after which unused connections are removed")

	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("server.max-age", serveCmd.Flags().Lookup("max-age"))
}

func runServe(cmd *cobra.Command, args []string) error {
	bind := viper.GetString("server.bind")
	port := viper.GetInt("server.port")
	timeout := viper.GetDuration("server.timeout")
	maxAge := viper.GetDuration("server.max-age")
	if maxAge <= 0 {
		return fmt.Errorf("max-age must be positive, got %s", maxAge)
	}

	cfg, err := configFromViper()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", bind, port)
	storage := web.NewMemStorage()
	webContext := web.NewContext(storage, cfg)
	webContext.Timeout = timeout

	filterInterval := maxAge / 4
	if filterInterval < time.Second {
		filterInterval = time.Second
	}
	done := web.RunFilter(storage, maxAge, filterInterval)
	defer close(done)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      web.NewRouter(webContext),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.WithError(err).Error("Server shutdown error")
		}
	}()

	log.WithFields(log.Fields{
		"addr":    addr,
		"config":  cfg,
		"max-age": maxAge,
	}).Info("Starting mosaic server")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}

	return nil
}
