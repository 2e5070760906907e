package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"corechain.dev/node/consensus"
	"corechain.dev/node/crypto"
	"corechain.dev/node/node"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := node.DefaultConfig()
	cfg := defaults

	fs := flag.NewFlagSet("corenode", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "node data directory")
	fs.IntVar(&cfg.Port, "port", defaults.Port, "peer listen port")
	fs.IntVar(&cfg.MinConnections, "min-connections", defaults.MinConnections, "minimum outbound peer connections")
	fs.IntVar(&cfg.MaxConnections, "max-connections", defaults.MaxConnections, "maximum peer connections")
	fs.Int64Var(&cfg.InactiveTimeMs, "inactive-time", defaults.InactiveTimeMs, "peer idle timeout in milliseconds")
	fs.Int64Var(&cfg.HeartbeatMs, "heartbeat", defaults.HeartbeatMs, "peer heartbeat interval in milliseconds")
	fs.StringVar(&cfg.RPCUser, "rpc-user", defaults.RPCUser, "RPC basic-auth username")
	fs.StringVar(&cfg.RPCPassword, "rpc-password", defaults.RPCPassword, "RPC basic-auth password")
	fs.IntVar(&cfg.RPCPort, "rpc-port", defaults.RPCPort, "RPC listen port")
	fs.StringVar(&cfg.WalletPath, "wallet", defaults.WalletPath, "wallet keystore path")
	fs.Float64Var(&cfg.PayTxFee, "pay-tx-fee", defaults.PayTxFee, "flat transaction fee, in coins")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := node.ValidateConfig(cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	if *dryRun {
		_, _ = fmt.Fprintf(stdout, "%+v\n", cfg)
		return 0
	}

	cp := crypto.Secp256k1Provider{}
	localNonce, err := randomNonce()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "nonce generation failed: %v\n", err)
		return 2
	}

	genesis := consensus.MainnetGenesis(cp)
	sup, err := node.NewSupervisor(cfg, cp, consensus.MainnetParams, genesis, localNonce)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "supervisor init failed: %v\n", err)
		return 2
	}
	defer sup.Close()

	height, err := sup.GetBlockchainHeight()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "chain head read failed: %v\n", err)
		return 2
	}
	headHash, err := sup.GetChainHeadHash()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "chain head read failed: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "corenode starting: datadir=%s port=%d height=%d head=%s\n", cfg.DataDir, cfg.Port, height, headHash)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Fprintln(stdout, "corenode running")
	<-ctx.Done()
	_, _ = fmt.Fprintln(stdout, "corenode stopped")
	return 0
}

func randomNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
