package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aikoservices/aiko/pkg/aikoerr"
	"github.com/aikoservices/aiko/pkg/config"
	"github.com/aikoservices/aiko/pkg/discovery"
	"github.com/aikoservices/aiko/pkg/eventloop"
	"github.com/aikoservices/aiko/pkg/log"
	"github.com/aikoservices/aiko/pkg/metrics"
	"github.com/aikoservices/aiko/pkg/pipeline"
	"github.com/aikoservices/aiko/pkg/sexp"
	"github.com/aikoservices/aiko/pkg/stream"
	"github.com/aikoservices/aiko/pkg/transport"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	_ "github.com/aikoservices/aiko/pkg/elements/simple"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error's aikoerr.Kind to the exit code spec.md §6
// requires: 0 success, non-zero on configuration error or fatal pipeline
// error. Configuration errors get 2 so scripts can tell the two apart;
// everything else (stream, transport, protocol) gets 1.
func exitCodeFor(err error) int {
	if kind, ok := aikoerr.KindOf(err); ok && kind == aikoerr.Configuration {
		return 2
	}
	return 1
}

var rootCmd = &cobra.Command{
	Use:   "aiko",
	Short: "Create and delete Aiko Pipelines",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(deleteCmd)

	createCmd.Flags().StringP("name", "n", "", "Pipeline instance name (defaults to the definition's own name)")
	createCmd.Flags().Int64P("stream-id", "s", 0, "Create a stream with this identifier before processing any frame")
	createCmd.Flags().Int64P("frame-id", "f", 0, "Frame identifier to use when --frame-data is given without --stream-id")
	createCmd.Flags().StringP("frame-data", "d", "", `Process one frame with this data, as an s-expression list of "key value" pairs, e.g. "(x 1 y 2)"`)
	createCmd.Flags().Duration("grace-time", 60*time.Second, "Stream lease duration when --stream-id is given")
	createCmd.Flags().String("metrics-addr", "", "If set, serve /metrics, /health, /ready and /live on this address")
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

var createCmd = &cobra.Command{
	Use:   "create DEFINITION_PATH",
	Short: "Create a Pipeline from a definition file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		definitionPath := args[0]
		if _, err := os.Stat(definitionPath); err != nil {
			return aikoerr.NewConfiguration(fmt.Sprintf("definition not found: %s", definitionPath), err)
		}

		def, err := pipeline.LoadDefinition(definitionPath)
		if err != nil {
			return aikoerr.NewConfiguration("parsing pipeline definition", err)
		}
		if name, _ := cmd.Flags().GetString("name"); name != "" {
			def.Name = name
		}

		cfg, err := config.New()
		if err != nil {
			return aikoerr.NewConfiguration("reading environment configuration", err)
		}

		loop := eventloop.New()
		tr, err := transport.NewMQTTTransport(loop, transport.MQTTConfig{
			BrokerURL: cfg.BrokerAddress(),
			ClientID:  fmt.Sprintf("aiko-cli-%s-%s", def.Name, uuid.NewString()),
			Username:  cfg.Username,
			Password:  cfg.Password,
		})
		if err != nil {
			return aikoerr.NewTransport("connecting to broker", err)
		}
		defer tr.Close()

		disco := discovery.New()

		p, err := pipeline.New(def, loop, tr, disco)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go loop.Run(ctx)
		metrics.RegisterComponent("eventloop", true, "running")
		defer metrics.UpdateComponent("eventloop", false, "stopped")

		collector := metrics.NewCollector(loop)
		collector.Start()
		defer collector.Stop()

		if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.Handle("/health", metrics.HealthHandler())
			mux.Handle("/ready", metrics.ReadyHandler())
			mux.Handle("/live", metrics.LivenessHandler())
			server := &http.Server{Addr: addr, Handler: mux}
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Logger.Warn().Err(err).Msg("metrics server stopped")
				}
			}()
			defer server.Close()
		}

		streamID, _ := cmd.Flags().GetInt64("stream-id")
		streamIDSet := cmd.Flags().Changed("stream-id")
		graceTime, _ := cmd.Flags().GetDuration("grace-time")

		if streamIDSet {
			if _, err := p.CreateStream(ctx, uint64(streamID), nil, graceTime); err != nil {
				return err
			}
			fmt.Printf("Stream created: %d\n", streamID)
		}

		frameData, _ := cmd.Flags().GetString("frame-data")
		if frameData != "" {
			frameID, _ := cmd.Flags().GetInt64("frame-id")
			var frame *stream.Context
			if streamIDSet {
				frame = p.CreateFrame(uint64(streamID))
			} else {
				frame = stream.NewContext(0, uint64(frameID))
			}
			for k, v := range parseFrameData(frameData) {
				frame.Swag[k] = v
			}

			result, err := p.ProcessFrame(ctx, frame)
			if err != nil {
				return err
			}
			fmt.Printf("Frame processed: %+v\n", result.Swag)
		}

		fmt.Printf("Pipeline created: %s\n", def.Name)
		return nil
	},
}

// parseFrameData turns "(x 1 y 2)" into {"x": "1", "y": "2"}, the same
// key/value-pair-list convention original_source/pipeline.py's
// frame_data option uses for process_frame.
func parseFrameData(s string) map[string]string {
	tokens := sexp.Sublist(strings.TrimSpace(s))
	out := make(map[string]string, len(tokens)/2)
	for i := 0; i+1 < len(tokens); i += 2 {
		out[tokens[i]] = tokens[i+1]
	}
	return out
}

var deleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a Pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return aikoerr.NewConfiguration(fmt.Sprintf("delete %s: not supported, Pipelines are process-scoped", args[0]), nil)
	},
}
