package main

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	appI18n "github.com/pavelanni/adaptest/internal/i18n"
	"github.com/pavelanni/adaptest/internal/mockserver"
)

func mockServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve an in-memory fake of the service for local development",
		Args:  cobra.NoArgs,
		RunE:  runMockServer,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", "127.0.0.1:8089", "HTTP listen address")
	f.String("api-key", "", "API key the fake accepts (random when empty)")
	addLogFlags(cmd)
	return cmd
}

func runMockServer(cmd *cobra.Command, _ []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	key := v.GetString("api-key")
	if key == "" {
		key = uuid.NewString()
		slog.Info("generated api key", "api_key", key)
	}

	ln, err := net.Listen("tcp", v.GetString("addr"))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:           mockserver.New(key, mockserver.WithLogger(slog.Default())).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	url := "http://" + ln.Addr().String() + "/api"
	fmt.Fprintln(cmd.OutOrStdout(), appI18n.Td(cmd.Context(), "MockServerListening", map[string]any{"URL": url}))
	slog.Info("starting fake service", "addr", ln.Addr().String(), "base_url", url)
	return srv.Serve(ln)
}
