// Command ezrouter boots a single P2P router node from a config file. It is
// the Go analogue of the original prototype's single-node launch path; the
// multi-process demo launcher that spawns a whole local testnet is not
// reimplemented here.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	pkgconfig "ezchain/pkg/config"
	"ezchain/internal/router"
	"ezchain/internal/transport"
)

var log = logrus.WithField("component", "ezrouter")

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "ezrouter",
		Short: "run a single ezchain P2P router node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "ezchain.yaml", "path to the node config file")

	if err := root.Execute(); err != nil {
		log.WithError(err).Fatal("ezrouter exited with error")
	}
}

func runNode(configPath string) error {
	cfg, err := pkgconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	routerCfg, err := buildRouterConfig(cfg)
	if err != nil {
		return fmt.Errorf("build router config: %w", err)
	}

	r, err := router.New(routerCfg)
	if err != nil {
		return fmt.Errorf("construct router: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"role":    routerCfg.NodeRole,
		"network": routerCfg.NetworkID,
		"listen":  fmt.Sprintf("%s:%d", routerCfg.Transport.ListenHost, routerCfg.Transport.ListenPort),
	}).Info("starting router node")

	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}
	defer r.Stop()

	<-ctx.Done()
	log.Info("shutdown signal received, stopping router node")
	return nil
}

// buildRouterConfig maps pkg/config.Config.Router onto internal/router.Config,
// loading or minting the node's P-256 identity key as needed.
func buildRouterConfig(cfg *pkgconfig.Config) (router.Config, error) {
	rc := cfg.Router

	priv, pubPEM, err := loadOrCreateIdentity(rc.IdentityKeyFile, rc.IdentityPubKeyFile)
	if err != nil {
		return router.Config{}, err
	}

	signedTypes := make(map[string]bool, len(rc.SignedMessageTypes))
	for _, t := range rc.SignedMessageTypes {
		signedTypes[t] = true
	}

	transportBackend := rc.Transport
	if transportBackend == "" {
		transportBackend = "tcp"
	}

	return router.Config{
		NodeRole: rc.NodeRole,
		Transport: transport.Config{
			Backend:       transportBackend,
			ListenHost:    rc.ListenHost,
			ListenPort:    rc.ListenPort,
			DialTimeout:   5 * time.Second,
			SendTimeout:   5 * time.Second,
			MaxFrameBytes: 1 << 20,
		},
		PeerSeeds:       rc.PeerSeeds,
		NetworkID:       rc.NetworkID,
		ProtocolVersion: rc.ProtocolVersion,
		MaxNeighbors:    rc.MaxNeighbors,

		IdentityPrivateKey:   priv,
		IdentityPublicKeyPEM: pubPEM,

		EnforceIdentityVerification: rc.EnforceIdentityVerification,
		SignedMessageTypes:          signedTypes,

		MaintenanceInterval: secondsOrDefault(rc.MaintenanceIntervalSec, 5*time.Second),
		SeedRetryBase:       secondsOrDefault(rc.SeedRetryBaseSec, time.Second),
		SeedRetryMax:        secondsOrDefault(rc.SeedRetryMaxSec, 30*time.Second),
		DegradedNoPeerSec:   secondsOrDefault(rc.DegradedNoPeerSec, 20*time.Second),
	}, nil
}

func secondsOrDefault(sec int, fallback time.Duration) time.Duration {
	if sec <= 0 {
		return fallback
	}
	return time.Duration(sec) * time.Second
}
