// Command agroctl is an operator CLI for the yield service chain: it probes
// service health, runs the four scenarios against a live deployment, and
// seeds the ingest topic from CSV fixtures.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	kafkaadapter "github.com/cropsignal/yield-feature-service/internal/adapter/kafka"
	"github.com/cropsignal/yield-feature-service/internal/ingest"
	"github.com/cropsignal/yield-feature-service/internal/observability"
	"github.com/cropsignal/yield-feature-service/internal/registry"
	"github.com/cropsignal/yield-feature-service/internal/store"
)

var (
	webmasterURL string
	storageURL   string
	collectorURL string
	mlURL        string

	region   string
	district string
	year     int
	history  int
	param    string
)

func main() {
	root := &cobra.Command{
		Use:           "agroctl",
		Short:         "Operate and exercise the yield feature service chain",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&webmasterURL, "webmaster", "http://localhost:8003", "webmaster base URL")
	root.PersistentFlags().StringVar(&storageURL, "storage", "http://localhost:8000", "storage base URL")
	root.PersistentFlags().StringVar(&collectorURL, "collector", "http://localhost:8001", "collector base URL")
	root.PersistentFlags().StringVar(&mlURL, "ml", "http://localhost:8002", "ml-service base URL")

	root.AddCommand(healthCmd(), scenarioCmd("timeseries", "/scenario1"), scenarioCmd("correlation", "/scenario2"),
		scenarioCmd("predict", "/scenario3"), scenarioCmd("regression", "/scenario4"), seedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe every service's /health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			services := map[string]string{
				"storage":   storageURL,
				"collector": collectorURL,
				"ml":        mlURL,
				"webmaster": webmasterURL,
			}
			out := map[string]any{}
			for name, base := range services {
				body, err := getJSON(cmd.Context(), base+"/health")
				if err != nil {
					out[name] = map[string]string{"status": "unavailable", "error": err.Error()}
					continue
				}
				out[name] = body
			}
			return printJSON(out)
		},
	}
}

// scenarioCmd builds one webmaster scenario subcommand; they differ only in
// path and which query flags apply.
func scenarioCmd(name, path string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Run the %s scenario through the webmaster", name),
		RunE: func(cmd *cobra.Command, _ []string) error {
			url := fmt.Sprintf("%s%s?region=%s&district=%s", webmasterURL, path, region, district)
			switch name {
			case "timeseries":
				url += fmt.Sprintf("&year=%d&param=%s", year, param)
			case "predict":
				url += fmt.Sprintf("&year=%d", year)
			case "regression":
				url += fmt.Sprintf("&year=%d&history=%d", year, history)
			}
			body, err := getJSON(cmd.Context(), url)
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region name")
	cmd.Flags().StringVar(&district, "district", "", "district name")
	cmd.MarkFlagRequired("region")   //nolint:errcheck
	cmd.MarkFlagRequired("district") //nolint:errcheck

	switch name {
	case "timeseries":
		cmd.Flags().IntVar(&year, "year", 0, "measurement year")
		cmd.Flags().StringVar(&param, "param", "ndvi", "parameter to plot")
		cmd.MarkFlagRequired("year") //nolint:errcheck
	case "predict":
		cmd.Flags().IntVar(&year, "year", 0, "prediction year")
		cmd.MarkFlagRequired("year") //nolint:errcheck
	case "regression":
		cmd.Flags().IntVar(&year, "year", 0, "target year")
		cmd.Flags().IntVar(&history, "history", 5, "preceding years to train on")
		cmd.MarkFlagRequired("year") //nolint:errcheck
	}
	return cmd
}

func seedCmd() *cobra.Command {
	var (
		brokers    []string
		topic      string
		configPath string
		dataDir    string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Publish CSV fixture rows to the ingest topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, degraded, err := registry.Load(configPath)
			if degraded {
				return fmt.Errorf("registry unusable for seeding: %w", err)
			}

			cs, err := store.NewCSVStore(dataDir, reg.Regions)
			if err != nil {
				return err
			}

			logger := observability.NewLogger("info", "text")
			writer := kafkaadapter.NewWriter(brokers, topic, logger)
			defer writer.Close()

			ctx := cmd.Context()
			total := 0
			regions, err := cs.Regions(ctx)
			if err != nil {
				return err
			}
			for _, regionName := range regions {
				districts, err := cs.Districts(ctx, regionName)
				if err != nil {
					return err
				}
				for _, districtName := range districts {
					rows, err := cs.DistrictRows(ctx, regionName, districtName)
					if err != nil {
						return err
					}
					msgs := make([]ingest.Message, len(rows))
					for i, row := range rows {
						msgs[i] = ingest.Message{
							Region:             regionName,
							District:           districtName,
							Year:               row.Year,
							MeteoData:          row.Meteo,
							Productive:         row.Stats.Productive,
							MeanProductive:     row.Stats.MeanProductive,
							Trend:              row.Stats.Trend,
							ProdDispersionNorm: row.Stats.ProdDispersionNorm,
						}
					}
					if err := writer.Publish(ctx, msgs); err != nil {
						return fmt.Errorf("publish %s/%s: %w", regionName, districtName, err)
					}
					total += len(msgs)
				}
			}
			fmt.Printf("published %d measurements to %s\n", total, topic)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&brokers, "brokers", []string{"localhost:9092"}, "kafka brokers")
	cmd.Flags().StringVar(&topic, "topic", "raw-measurements", "ingest topic")
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "registry config file")
	cmd.Flags().StringVar(&dataDir, "data-dir", "source", "CSV fixture directory")
	return cmd
}

func getJSON(ctx context.Context, url string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %v", url, resp.StatusCode, body["message"])
	}
	return body, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
