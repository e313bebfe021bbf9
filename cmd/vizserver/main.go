// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command vizserver starts the AleutianViz gateway.
//
// The gateway fronts the tabular analysis engine on two transports: a
// legacy single-client TCP protocol and a concurrent HTTP/WebSocket
// API. Both funnel into the same validated dispatch pipeline.
//
// Usage:
//
//	vizserver serve
//	vizserver serve --config /etc/aleutianviz/gateway.yaml
//	VIZ_HTTP_ADDR=:9090 vizserver serve
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "vizserver",
		Short: "The AleutianViz command gateway",
		Long: `vizserver exposes the tabular analysis and plotting engine over
a legacy TCP protocol and a concurrent HTTP/WebSocket API.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway servers and block until shutdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
)

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "",
		"Path to an optional YAML config file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
