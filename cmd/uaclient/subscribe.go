// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/edgeo-scada/uaclient"
	"github.com/edgeo-scada/uaclient/internal/sink"
	"github.com/edgeo-scada/uaclient/ua"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Subscribe to data changes on OPC UA nodes",
	Long: `Subscribe to data changes on OPC UA nodes and print updates.
Updates can also be republished to NATS and the client metrics served
for Prometheus.

Examples:
  uaclient subscribe -e opc.tcp://localhost:4840 -n "ns=2;i=1"
  uaclient subscribe -e opc.tcp://localhost:4840 -n "ns=2;s=Temperature" -i 1000
  uaclient subscribe -e opc.tcp://localhost:4840 -n "i=2258" --nats-url nats://localhost:4222 --metrics-addr :9100`,
	RunE: runSubscribe,
}

var (
	subscribeNodeIDs []string
	publishInterval  float64
	sampleInterval   float64
	natsURL          string
	natsPrefix       string
	metricsAddr      string
)

func init() {
	subscribeCmd.Flags().StringArrayVarP(&subscribeNodeIDs, "node", "n", nil, "Node ID(s) to subscribe to (can specify multiple)")
	subscribeCmd.Flags().Float64VarP(&publishInterval, "interval", "i", 1000, "Publishing interval in milliseconds")
	subscribeCmd.Flags().Float64Var(&sampleInterval, "sample", 250, "Sampling interval in milliseconds")
	subscribeCmd.Flags().StringVar(&natsURL, "nats-url", "", "Republish data changes to this NATS server")
	subscribeCmd.Flags().StringVar(&natsPrefix, "nats-prefix", "opcua", "NATS subject prefix")
	subscribeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")
	_ = subscribeCmd.MarkFlagRequired("node")
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	nodes, err := parseNodeIDs(subscribeNodeIDs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	var reg *prometheus.Registry
	if metricsAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		srv := serveMetrics(metricsAddr, reg, logger)
		defer srv.Close()
	}

	var natsSink *sink.NATS
	if natsURL != "" {
		natsSink, err = sink.Connect(natsURL, natsPrefix, logger)
		if err != nil {
			return err
		}
		defer natsSink.Close()
	}

	connectCtx, cancel := context.WithTimeout(ctx, operationTimeout())
	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}
	client, err := connect(connectCtx, registerer, true)
	cancel()
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()
	for {
		err := monitor(ctx, client, nodes, natsSink, out)
		if ctx.Err() != nil {
			fmt.Fprintln(out, "\nStopping...")
			return nil
		}
		if !errors.Is(err, uaclient.ErrSessionClosed) {
			return err
		}
		fmt.Fprintf(out, "%s session lost, waiting for reconnect\n", color.YellowString("!"))
		if err := waitForSession(ctx, client); err != nil {
			return nil
		}
	}
}

// monitor subscribes to nodes and prints data changes until the
// subscription ends or ctx is cancelled.
func monitor(ctx context.Context, client *uaclient.Client, nodes []ua.NodeID, natsSink *sink.NATS, out io.Writer) error {
	setupCtx, cancel := context.WithTimeout(ctx, operationTimeout())
	defer cancel()

	sub, err := client.CreateSubscription(setupCtx, uaclient.WithPublishingInterval(publishInterval))
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer func() {
		select {
		case <-sub.Done():
			return
		default:
		}
		deleteCtx, cancel := context.WithTimeout(context.Background(), operationTimeout())
		defer cancel()
		_ = sub.Delete(deleteCtx)
	}()

	fmt.Fprintf(out, "Subscription created (ID: %d, Interval: %.0fms)\n", sub.ID, sub.RevisedPublishingInterval)

	itemsToMonitor := make([]ua.ReadValueID, len(nodes))
	for i, n := range nodes {
		itemsToMonitor[i] = ua.ReadValueID{NodeID: n, AttributeID: ua.AttributeValue}
	}
	items, err := sub.CreateMonitoredItems(setupCtx, itemsToMonitor, uaclient.WithSamplingInterval(sampleInterval))
	if err != nil {
		return fmt.Errorf("failed to create monitored items: %w", err)
	}

	fmt.Fprintf(out, "Monitoring %d nodes:\n", len(items))
	for i, item := range items {
		if item.StatusCode.IsBad() {
			fmt.Fprintf(out, "  [%d] %s %s\n", i+1, item.NodeID, formatStatus(item.StatusCode))
			continue
		}
		fmt.Fprintf(out, "  [%d] %s (ID: %d, Interval: %.0fms)\n",
			i+1, item.NodeID, item.MonitoredItemID, item.RevisedSamplingInterval)
	}
	fmt.Fprintln(out, "\nWaiting for data changes (Ctrl+C to stop)...")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done():
			return sub.Err()
		case n, ok := <-sub.Notifications():
			if !ok {
				return sub.Err()
			}
			printNotification(out, n)
			if natsSink != nil {
				if err := natsSink.Publish(n.NodeID.String(), n); err != nil {
					fmt.Fprintf(out, "%s %v\n", color.RedString("nats:"), err)
				}
			}
		}
	}
}

func printNotification(out io.Writer, n uaclient.DataChangeNotification) {
	ts := time.Now().Format("15:04:05.000")
	line := fmt.Sprintf("[%s] %s = %s", ts, n.NodeID, formatValue(n.Value.Value))
	if !n.Value.StatusCode.IsGood() {
		line += " (" + formatStatus(n.Value.StatusCode) + ")"
	}
	fmt.Fprintln(out, line)
}

func waitForSession(ctx context.Context, client *uaclient.Client) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for !client.IsSessionActive() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.String("addr", addr), slog.String("error", err.Error()))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", addr))
	return srv
}
