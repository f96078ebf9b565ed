package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"token_farm/internal/app/service"
	"token_farm/internal/domain/entity"
	"token_farm/internal/infrastructure/restapi"
	"token_farm/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication()
			if err != nil {
				return err
			}
			defer app.close()
			log := app.zapLogger.Named("serve")

			// A failed startup is visible through /api/v1/state and /healthz.
			go func() {
				if err := app.service.Start(ctx); err != nil && !errors.Is(err, service.ErrServiceClosed) {
					log.Error("Startup failed", zap.Error(err))
				}
			}()

			if !app.cfg.Logging.Development {
				gin.SetMode(gin.ReleaseMode)
			}
			handler := restapi.NewTokenFarmHandler(app.service, app.cfg.Contracts.Decimals, app.zapLogger)
			router := restapi.SetupRouter(handler, app.cfg, app.metricsHandler, app.zapLogger)

			srv := &http.Server{
				Addr:         ":" + app.cfg.Server.Port,
				Handler:      router,
				ReadTimeout:  time.Duration(app.cfg.Server.ReadTimeout) * time.Second,
				WriteTimeout: time.Duration(app.cfg.Server.WriteTimeout) * time.Second,
				IdleTimeout:  time.Duration(app.cfg.Server.IdleTimeout) * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("Starting HTTP server", zap.String("address", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			log.Info("Server exiting")
			return nil
		},
	}
}

func newBalancesCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Print the account, network and balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := startApplication(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			out := cmd.OutOrStdout()
			printState(out, app.service.State(), app.cfg.Contracts.Decimals)
			if !watch {
				return nil
			}

			updates, cancel := app.service.Subscribe()
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return nil
				case st, ok := <-updates:
					if !ok {
						return nil
					}
					fmt.Fprintln(out, "---")
					printState(out, st, app.cfg.Contracts.Decimals)
				}
			}
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and print the state after every change")
	return cmd
}

func printState(out io.Writer, st entity.ApplicationState, decimals uint8) {
	fmt.Fprintf(out, "Account: %s\n", st.Account)
	fmt.Fprintf(out, "Network: %s (%d)\n", st.Network.Name, st.NetworkID)
	for _, role := range entity.AllRoles {
		slot := entity.SlotForRole(role)
		name := string(role)
		if h := st.Contract(role); h != nil {
			name = h.Name
		}
		formatted, err := utils.FormatBaseUnits(st.Balances.Get(slot), decimals)
		if err != nil {
			formatted = st.Balances.Get(slot)
		}
		fmt.Fprintf(out, "%-20s %s\n", string(slot), formatted+" "+name)
	}
	for _, n := range st.Notices {
		fmt.Fprintf(out, "[%s] %s\n", n.Level, n.Message)
	}
}

func newStakeCmd() *cobra.Command {
	var units string
	cmd := &cobra.Command{
		Use:   "stake <amount>",
		Short: "Approve the farm and stake amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := startApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			steps, err := app.service.StakeTokens(cmd.Context(), args[0], units)
			if perr := printSteps(cmd, steps); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&units, "units", "", `unit of amount ("wei" or empty for base units, "ether", "gwei", ...)`)
	return cmd
}

func newUnstakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unstake",
		Short: "Withdraw the whole staked balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := startApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			steps, err := app.service.UnstakeTokens(cmd.Context())
			if perr := printSteps(cmd, steps); perr != nil {
				return perr
			}
			return err
		},
	}
}

func printSteps(cmd *cobra.Command, steps []entity.TransactionStep) error {
	type stepOut struct {
		entity.TransactionStep
		Amount string `json:"amount,omitempty"`
	}
	out := make([]stepOut, 0, len(steps))
	for _, s := range steps {
		out = append(out, stepOut{TransactionStep: s, Amount: s.AmountString()})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
