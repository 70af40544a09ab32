package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creatorscout/creatorscout/internal/scout"
)

// newDiscoverCmd creates the 'discover' subcommand for one-shot crawls
// without running the HTTP server.
func newDiscoverCmd() *cobra.Command {
	var (
		limit          int
		minSubscribers int64
		maxSubscribers int64
		country        string
		excludeMusic   bool
		excludeBrands  bool
	)

	cmd := &cobra.Command{
		Use:   "discover <keyword>",
		Short: "Run a single discovery crawl and print the results as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.Logger()

			sessionID, err := appInstance.IDGenerator().NewID()
			if err != nil {
				return fmt.Errorf("generate session id: %w", err)
			}

			req := scout.DiscoveryRequest{
				Keyword: args[0],
				Limit:   limit,
				Filters: scout.DiscoveryFilters{
					Country:       country,
					ExcludeMusic:  excludeMusic,
					ExcludeBrands: excludeBrands,
				},
			}
			if minSubscribers > 0 {
				req.Filters.MinSubscribers = &minSubscribers
			}
			if maxSubscribers > 0 {
				req.Filters.MaxSubscribers = &maxSubscribers
			}
			if req.Limit <= 0 {
				req.Limit = appInstance.Config().Discovery.DefaultLimit
			}

			appInstance.Registry().Create(sessionID, "", req)
			logger.Info("discovery started",
				zap.String("session_id", sessionID), zap.String("keyword", req.Keyword))

			channels, err := appInstance.Crawler().Run(cmd.Context(), sessionID, req)
			if err != nil {
				return fmt.Errorf("run discovery: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(channels)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum channels to return (0 uses the configured default)")
	cmd.Flags().Int64Var(&minSubscribers, "min-subscribers", 0, "drop channels below this audience size")
	cmd.Flags().Int64Var(&maxSubscribers, "max-subscribers", 0, "drop channels above this audience size")
	cmd.Flags().StringVar(&country, "country", "", "keep only channels declaring this country")
	cmd.Flags().BoolVar(&excludeMusic, "exclude-music", false, "drop music channels")
	cmd.Flags().BoolVar(&excludeBrands, "exclude-brands", false, "drop brand and corporate channels")

	return cmd
}
