package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sschepis/summoned-spaces-sub004/config"
	"github.com/sschepis/summoned-spaces-sub004/dht"
	"github.com/sschepis/summoned-spaces-sub004/discovery"
	"github.com/sschepis/summoned-spaces-sub004/metrics"
	"github.com/sschepis/summoned-spaces-sub004/netx"
)

const version = "0.2.0"

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "spacesd",
		Short: "Peer-discovery and key/value distribution daemon",
		Long: `spacesd runs a single node of the self-organizing peer-discovery layer:
it maintains a bounded routing table of known peers and stores time-limited
records, replicating them toward the peers closest to each key.`,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var (
		nodeID         string
		listenAddr     string
		metricsAddr    string
		anchors        []int64
		bootstrapPeers []string
		useProtobuf    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a node",
		Long:  `Start a node, listen for peer traffic and join the bootstrap peers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			cfg := config.Default()
			cfg.UseProtobuf = useProtobuf

			anchorList := make([]uint64, 0, len(anchors))
			for _, a := range anchors {
				if a <= 0 {
					return fmt.Errorf("anchors must be positive, got %d", a)
				}
				anchorList = append(anchorList, uint64(a))
			}

			registry := prometheus.NewRegistry()
			met := metrics.New(registry)

			transport := netx.NewTCP(cfg.OutboundQueueWorkerCount, logger)
			store, err := dht.NewStore(nodeID, anchorList, listenAddr, transport, cfg, logger, met)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := discovery.NewService(store, logger)

			if len(bootstrapPeers) > 0 {
				if err := store.Join(bootstrapPeers); err != nil {
					return fmt.Errorf("bootstrap join: %w", err)
				}
			}

			// announce our own descriptor so peers can resolve us by id
			state, _ := json.Marshal(map[string]string{"addr": listenAddr})
			if err := svc.RegisterNode(nodeID, string(state)); err != nil {
				return err
			}

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
				mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					_ = json.NewEncoder(w).Encode(store.Stats())
				})
				go func() {
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						logger.Warn("metrics listener stopped", zap.Error(err))
					}
				}()
			}

			logger.Info("node running",
				zap.String("id", nodeID),
				zap.String("addr", listenAddr),
				zap.Int("bootstrapPeers", len(bootstrapPeers)))

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			logger.Info("shutting down, draining entries to peers")
			return store.Leave()
		},
	}

	cmd.Flags().StringVar(&nodeID, "id", "", "node identifier (required)")
	cmd.Flags().StringVar(&listenAddr, "addr", ":9301", "listen address for peer traffic")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address for /metrics and /stats (disabled when empty)")
	cmd.Flags().Int64SliceVar(&anchors, "anchors", []int64{2}, "numeric anchors locating this node in the key space")
	cmd.Flags().StringSliceVar(&bootstrapPeers, "bootstrap", nil, "addresses of bootstrap peers to join")
	cmd.Flags().BoolVar(&useProtobuf, "protobuf", false, "use the protobuf envelope codec instead of JSON")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("spacesd %s\n", version)
		},
	}
}

func setupLogger(verbose bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
