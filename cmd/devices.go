package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/gridbench/internal/gpu"
	"github.com/cwbudde/gridbench/internal/host"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List compute platforms and devices",
	Long:  `Lists every OpenCL platform and device plus the host backend, with double precision support.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		platforms, err := gpu.EnumeratePlatforms()
		if err != nil {
			if !errors.Is(err, gpu.ErrNotBuilt) && !errors.Is(err, gpu.ErrNoDevices) {
				return fmt.Errorf("failed to enumerate OpenCL platforms: %w", err)
			}
			slog.Warn("OpenCL platforms unavailable", "error", err)
		}
		platforms = append(platforms, host.Platform())
		return printDevices(cmd.OutOrStdout(), platforms)
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func printDevices(w io.Writer, platforms []gpu.PlatformInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tDEVICE\tTYPE\tUNITS\tFP64\tVERSION")
	for _, p := range platforms {
		for _, d := range p.Devices {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
				p.Name, strings.TrimSpace(d.Name), d.Type, d.MaxComputeUnits, yesNo(d.SupportsDouble()), d.Version)
		}
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
