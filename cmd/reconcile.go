package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"example.com/supplierportal/services/deliverynote/config"
	"example.com/supplierportal/services/deliverynote/internal/gateway"
	"example.com/supplierportal/services/deliverynote/internal/ledger"
	"example.com/supplierportal/services/deliverynote/internal/reconcile"
)

var (
	gatewayURL   string
	gatewayToken string
	driverName   string
	platNumber   string
	quantities   []string
	acknowledged bool
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <no_dn>",
	Short: "Submit the first-pass confirmation for a delivery note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		session := loadSession(args[0])

		if err := session.BeginConfirmation(driverName, platNumber); err != nil {
			exitOnError(err)
		}
		applyQuantityFlags(session)
		session.SetAcknowledged(acknowledged)

		if err := session.SubmitConfirmation(context.Background()); err != nil {
			exitOnError(err)
		}
		printSnapshot(session)
	},
}

var openWaveCmd = &cobra.Command{
	Use:   "open-wave <no_dn>",
	Short: "Show the next outstanding wave and its suggested quantities",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		session := loadSession(args[0])

		wave, err := session.OpenOutstandingWave()
		if err != nil {
			exitOnError(err)
		}

		fmt.Printf("wave %d open\n", wave)
		edits := session.Edits()
		detailNos := make([]string, 0, len(edits))
		for detailNo := range edits {
			detailNos = append(detailNos, detailNo)
		}
		sort.Strings(detailNos)
		for _, detailNo := range detailNos {
			fmt.Printf("  %s: %d\n", detailNo, edits[detailNo])
		}
		for _, detailNo := range session.Warnings() {
			fmt.Printf("warning: %s is over-committed across earlier waves\n", detailNo)
		}
	},
}

var submitWaveCmd = &cobra.Command{
	Use:   "submit-wave <no_dn>",
	Short: "Submit quantities for the next outstanding wave",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		session := loadSession(args[0])

		if _, err := session.OpenOutstandingWave(); err != nil {
			exitOnError(err)
		}
		applyQuantityFlags(session)
		session.SetAcknowledged(acknowledged)

		if err := session.SubmitOutstanding(context.Background()); err != nil {
			exitOnError(err)
		}
		printSnapshot(session)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <no_dn>",
	Short: "Discard local edits and resynchronize with the backend",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		session := loadSession(args[0])
		if err := session.Cancel(context.Background()); err != nil {
			exitOnError(err)
		}
		printSnapshot(session)
	},
}

func init() {
	for _, c := range []*cobra.Command{confirmCmd, openWaveCmd, submitWaveCmd, cancelCmd} {
		c.Flags().StringVar(&gatewayURL, "base-url", "", "backend base URL (overrides config)")
		c.Flags().StringVar(&gatewayToken, "token", "", "backend bearer token (overrides config)")
	}
	confirmCmd.Flags().StringVar(&driverName, "driver", "", "driver name")
	confirmCmd.Flags().StringVar(&platNumber, "plate", "", "vehicle license plate")
	for _, c := range []*cobra.Command{confirmCmd, submitWaveCmd} {
		c.Flags().StringArrayVar(&quantities, "qty", nil, "per-line quantity override, formatted detailNo=value")
		c.Flags().BoolVar(&acknowledged, "ack", false, "acknowledge the submitted quantities")
	}
}

// loadSession builds a gateway client from config plus flag overrides and
// loads the note's snapshot.
func loadSession(noDN string) *reconcile.Session {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	baseURL := cfg.Gateway.BaseURL
	if gatewayURL != "" {
		baseURL = gatewayURL
	}
	token := cfg.Gateway.Token
	if gatewayToken != "" {
		token = gatewayToken
	}

	log := logrus.StandardLogger()
	client := gateway.NewHTTPClient(gateway.Session{BaseURL: baseURL, Token: token}, cfg.Gateway.Timeout, log)
	session := reconcile.NewSession(client, noDN, log)
	if err := session.Load(context.Background()); err != nil {
		exitOnError(err)
	}
	return session
}

// applyQuantityFlags overrides the seeded per-line quantities with the
// --qty flags.
func applyQuantityFlags(session *reconcile.Session) {
	for _, raw := range quantities {
		detailNo, value, found := strings.Cut(raw, "=")
		if !found {
			fmt.Fprintf(os.Stderr, "VALIDATION_ERROR:badFormat --qty %q is not detailNo=value\n", raw)
			os.Exit(1)
		}
		qty, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "VALIDATION_ERROR:badFormat --qty %q has a non-numeric value\n", raw)
			os.Exit(1)
		}
		if err := session.SetEdit(detailNo, qty); err != nil {
			exitOnError(err)
		}
	}
}

func printSnapshot(session *reconcile.Session) {
	snap := session.Snapshot()
	fmt.Printf("%s state=%s version=%s\n", snap.NoDN, session.State(), snap.Version)
	for _, line := range snap.Lines {
		confirmed := "-"
		if line.QtyConfirm != nil {
			confirmed = strconv.FormatInt(*line.QtyConfirm, 10)
		}
		fmt.Printf("  %s requested=%d confirmed=%s delivered=%d\n",
			line.DNDetailNo, line.DNQty, confirmed, line.QtyDelivery)
	}
}

// exitOnError prints a stable machine-readable code for scripts and exits.
func exitOnError(err error) {
	code := "ERROR"

	var verr *ledger.ValidationError
	var conflict *gateway.ConflictError
	var network *gateway.NetworkError
	var transition *reconcile.TransitionError
	switch {
	case errors.As(err, &verr):
		code = "VALIDATION_ERROR:" + string(verr.Reason)
	case errors.As(err, &conflict):
		code = "CONFLICT"
	case errors.As(err, &network):
		code = "NETWORK_ERROR"
	case errors.Is(err, reconcile.ErrBusy):
		code = "BUSY"
	case errors.Is(err, reconcile.ErrNotAcknowledged):
		code = "NOT_ACKNOWLEDGED"
	case errors.Is(err, reconcile.ErrWaveUnavailable):
		code = "WAVE_UNAVAILABLE"
	case errors.Is(err, reconcile.ErrNotConfirmed):
		code = "NOT_CONFIRMED"
	case errors.Is(err, reconcile.ErrUnknownLine):
		code = "UNKNOWN_LINE"
	case errors.As(err, &transition):
		code = "INVALID_TRANSITION"
	}

	fmt.Fprintf(os.Stderr, "%s %v\n", code, err)
	os.Exit(1)
}
