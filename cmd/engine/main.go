// Package main runs the trade-execution engine: two independent polling
// loops (trade processor, position monitor) sharing one wallet and one chain
// client, plus a Prometheus metrics endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"solana-trade-engine/internal/backend"
	"solana-trade-engine/internal/engine"
	"solana-trade-engine/internal/executor"
	"solana-trade-engine/internal/jupiter"
	"solana-trade-engine/internal/observability"
	"solana-trade-engine/internal/solana"
	"solana-trade-engine/internal/wallet"
)

func main() {
	// Load .env if present; system env vars win for missing keys.
	_ = godotenv.Load()

	privateKey := flag.String("private-key", os.Getenv("SOLANA_PRIVATE_KEY"), "Signing key (base58 or JSON byte array)")
	backendURL := flag.String("backend-url", os.Getenv("BACKEND_URL"), "Backend API base URL")
	backendToken := flag.String("backend-token", os.Getenv("BACKEND_API_TOKEN"), "Backend API bearer token")
	rpcEndpoints := flag.String("rpc-endpoints", os.Getenv("SOLANA_RPC_ENDPOINTS"), "Comma-separated Solana RPC endpoints in fallback order")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Optional WebSocket endpoint for transaction confirmations")
	processInterval := flag.Duration("process-interval", 3*time.Second, "Trade processor poll interval")
	monitorInterval := flag.Duration("monitor-interval", 5*time.Second, "Position monitor poll interval")
	slippageBps := flag.Int("slippage-bps", 100, "Default slippage tolerance in basis points")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	logger := log.New(os.Stdout, "[engine] ", log.LstdFlags)

	if *privateKey == "" {
		logger.Fatal("--private-key is required (or SOLANA_PRIVATE_KEY)")
	}
	if *backendURL == "" {
		logger.Fatal("--backend-url is required (or BACKEND_URL)")
	}

	keypair, err := wallet.Load(*privateKey)
	if err != nil {
		logger.Fatalf("load keypair: %v", err)
	}
	logger.Printf("wallet loaded: %s", keypair.PublicKey())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var endpoints []string
	if *rpcEndpoints != "" {
		for _, e := range strings.Split(*rpcEndpoints, ",") {
			if e = strings.TrimSpace(e); e != "" {
				endpoints = append(endpoints, e)
			}
		}
	}

	var poolOpts []solana.PoolOption
	if *wsEndpoint != "" {
		poolOpts = append(poolOpts, solana.WithConfirmer(
			solana.NewWSConfirmer(*wsEndpoint, log.New(os.Stdout, "[ws] ", log.LstdFlags))))
	}
	pool := solana.NewPool(endpoints, log.New(os.Stdout, "[solana] ", log.LstdFlags), poolOpts...)
	if err := pool.Connect(ctx); err != nil {
		logger.Fatalf("connect rpc: %v", err)
	}

	jup := jupiter.NewClient(jupiter.WithLogger(log.New(os.Stdout, "[jupiter] ", log.LstdFlags)))
	api := backend.NewClient(*backendURL, *backendToken,
		backend.WithLogger(log.New(os.Stdout, "[backend] ", log.LstdFlags)))

	exec := executor.New(executor.Options{
		Chain:  pool,
		Quotes: jup,
		Signer: keypair,
		Logger: log.New(os.Stdout, "[executor] ", log.LstdFlags),
	})

	processor := engine.NewProcessor(engine.ProcessorOptions{
		API:         api,
		Executor:    exec,
		Logger:      log.New(os.Stdout, "[processor] ", log.LstdFlags),
		Interval:    *processInterval,
		SlippageBps: *slippageBps,
	})

	monitor := engine.NewMonitor(engine.MonitorOptions{
		API:           api,
		Prices:        jup,
		Balances:      pool,
		WalletAddress: keypair.PublicKey(),
		Logger:        log.New(os.Stdout, "[monitor] ", log.LstdFlags),
		Interval:      *monitorInterval,
	})

	// Metrics endpoint.
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	metricsServer := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("metrics server: %v", err)
		}
	}()

	api.Log(ctx, "info", "solana trader started", "wallet: "+keypair.PublicKey())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := processor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("processor stopped: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("monitor stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println("shutting down, letting in-flight work finish...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Println("engine stopped")
}
