package main

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"ezchain/internal/audit"
	"ezchain/internal/idempotency"
	"ezchain/internal/metrics"
	"ezchain/internal/nodemanager"
	"ezchain/internal/nonceguard"
	"ezchain/internal/submission"
	"ezchain/internal/txengine"
	"ezchain/internal/walletstore"
	pkgconfig "ezchain/pkg/config"
	"ezchain/pkg/utils"
)

// ServeCmd boots the local HTTP submission service: the only process that
// owns a live Tx Engine, Wallet Store and Node Manager. Every other
// subcommand is a client of this process.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the local HTTP submission service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := pkgconfig.Load(configPath)
	if err != nil {
		return utils.Wrap(err, "load config")
	}
	if err := pkgconfig.EnsureDirectories(cfg); err != nil {
		return utils.Wrap(err, "ensure directories")
	}

	wallet, err := walletstore.New(cfg.App.DataDir)
	if err != nil {
		return utils.Wrap(err, "open wallet store")
	}
	engine := txengine.New(randomHash, cfg.Security.MaxTxAmount)

	routerBin := utils.EnvOrDefault("EZROUTER_BIN", "ezrouter")
	nodeMgr := nodemanager.New(cfg.App.DataDir, routerBin, []string{"--config", configPath})

	nonceTTL := time.Duration(cfg.Security.NonceTTLSeconds) * time.Second
	if nonceTTL <= 0 {
		nonceTTL = 10 * time.Minute
	}
	nonces := nonceguard.New(filepath.Join(cfg.App.DataDir, "used_nonces.json"), nonceTTL)
	idemStore := idempotency.New(filepath.Join(cfg.App.DataDir, "tx_idempotency.json"))

	auditLog, err := audit.New(filepath.Join(cfg.App.LogDir, "service_audit.log"))
	if err != nil {
		return utils.Wrap(err, "open audit log")
	}
	metricCounters := metrics.New()

	token, err := pkgconfig.LoadAPIToken(cfg)
	if err != nil {
		return utils.Wrap(err, "load api token")
	}

	maxPayload := int64(cfg.Security.MaxPayloadBytes)
	if maxPayload <= 0 {
		maxPayload = 65536
	}

	svc := submission.New(submission.Config{
		Token:           token,
		MaxPayloadBytes: maxPayload,
		NetworkName:     cfg.Network.Name,
		BootstrapNodes:  cfg.Network.BootstrapNodes,
	}, wallet, engine, nodeMgr, nonces, idemStore, auditLog, metricCounters)

	addr := fmt.Sprintf("%s:%d", cfg.App.APIHost, cfg.App.APIPort)
	logger.WithField("addr", addr).Info("ezchain submission service listening")
	return http.ListenAndServe(addr, svc)
}
