package main

import (
	"chatstat/internal/models"
	"chatstat/internal/services"
	"chatstat/internal/statistic"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

type collectOptions struct {
	dataDir   string
	community string
	epoch     string
	compress  bool
	start     uint64
	end       uint64
}

// newCollectCmd answers a range query straight from the shard files. Shards
// are opened read-only, so it is safe next to a running server.
func newCollectCmd() *cobra.Command {
	opts := &collectOptions{}
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Print merged user activity for an epoch day range as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			reference, err := models.ParseReference(opts.epoch)
			if err != nil {
				return fmt.Errorf("collect: invalid --epoch: %w", err)
			}
			clock := models.NewClock(reference)

			compressor, err := statistic.NewShardCompressor(opts.compress)
			if err != nil {
				return fmt.Errorf("collect: %w", err)
			}
			defer compressor.Close()

			end := models.EpochDay(opts.end)
			if !cmd.Flags().Changed("end") {
				end = clock.NowEpochDay()
			}
			users, err := services.CollectData(opts.dataDir, opts.community, clock, compressor, models.EpochDay(opts.start), end)
			if err != nil {
				return fmt.Errorf("collect: %w", err)
			}

			out, err := json.MarshalIndent(users, "", "  ")
			if err != nil {
				return fmt.Errorf("collect: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}
	cmd.Flags().StringVar(&opts.dataDir, "data", "", "Database root directory")
	cmd.Flags().StringVar(&opts.community, "community", "", "Community name")
	cmd.Flags().StringVar(&opts.epoch, "epoch", "", "RFC3339 reference instant of epoch day 0")
	cmd.Flags().BoolVar(&opts.compress, "compress", false, "Read zstd compressed shards")
	cmd.Flags().Uint64Var(&opts.start, "start", 0, "First epoch day, inclusive")
	cmd.Flags().Uint64Var(&opts.end, "end", 0, "Last epoch day, inclusive (default today)")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("community")
	return cmd
}
