package main

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/spf13/cobra"

	"drivecheck/device"
	"drivecheck/health"
	"drivecheck/report"
	"drivecheck/settings"
)

func newHealthCmd(verbose *bool) *cobra.Command {
	var (
		configFile, envFile string
		smartTypes          []string
	)
	cmd := &cobra.Command{
		Use:   "health [TARGET]",
		Short: "Probe SMART and OS health data for the drive holding TARGET (read-only)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load(configFile, envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("smart-types") {
				s.SmartTypes = smartTypes
			}
			target := s.Target
			if len(args) == 1 {
				target = args[0]
			}
			log := newLogger(cmd.ErrOrStderr(), *verbose)
			ctx := cmd.Context()

			info, err := device.Resolve(ctx, target)
			if err != nil {
				log.WithError(err).Warn("could not resolve device, probing by path")
			}
			out := cmd.OutOrStdout()
			printInfo(out, target, info)
			fmt.Fprintln(out)
			report.PrintHealth(out, health.ProbeAll(ctx, log, healthProviders(s.SmartTypes), info))
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "YAML settings file")
	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file with DRIVECHECK_* overrides")
	cmd.Flags().StringSliceVar(&smartTypes, "smart-types", health.DeviceTypes, "smartctl -d types to try, in order")
	return cmd
}

func newDeviceCmd() *cobra.Command {
	deviceCmd := &cobra.Command{
		Use:   "device",
		Short: "Device related utilities (safe, read-only)",
	}

	var listAll bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List whole-disk devices and mounted volumes (read-only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := device.Discover()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "OS: %s\n\n", runtime.GOOS)
			fmt.Fprintln(out, "Whole disks:")
			fmt.Fprintf(out, "  %-22s  %-14s  %-20s  %-10s\n", "Path", "Type", "Serial", "Size")
			printed := false
			for _, e := range entries {
				if !e.Whole {
					continue
				}
				d := device.Details(e.Path)
				fmt.Fprintf(out, "  %-22s  %-14s  %-20s  %-10s\n", d.Path, d.Type, d.Serial, d.SizeString)
				printed = true
			}
			if !printed {
				fmt.Fprintln(out, "  <none detected>")
			}
			fmt.Fprintln(out)
			if listAll {
				fmt.Fprintln(out, "Partitions and other nodes:")
				for _, e := range entries {
					if !e.Whole {
						fmt.Fprintf(out, "  %s  (%s)\n", e.Path, e.Reason)
					}
				}
				fmt.Fprintln(out)
			}
			printMounts(cmd, out)
			return nil
		},
	}
	listCmd.Flags().BoolVar(&listAll, "all", false, "include partitions and other non-whole nodes")
	deviceCmd.AddCommand(listCmd)

	var infoPath string
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show the mount, device and whole disk behind a path (read-only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(infoPath) == "" {
				return fmt.Errorf("--path is required")
			}
			info, err := device.Resolve(cmd.Context(), infoPath)
			if err != nil {
				return err
			}
			printInfo(cmd.OutOrStdout(), infoPath, info)
			return nil
		},
	}
	infoCmd.Flags().StringVar(&infoPath, "path", "", "file, directory or mount point (e.g. /Volumes/XYZ, E:\\)")
	_ = infoCmd.MarkFlagRequired("path")
	deviceCmd.AddCommand(infoCmd)
	return deviceCmd
}

func printMounts(cmd *cobra.Command, out io.Writer) {
	parts, err := disk.PartitionsWithContext(cmd.Context(), false)
	if err != nil || len(parts) == 0 {
		return
	}
	fmt.Fprintln(out, "Mounted volumes:")
	fmt.Fprintf(out, "  %-28s  %-10s  %-22s  %-10s\n", "Mount", "FS", "Device", "Size")
	for _, p := range parts {
		size := "-"
		if u, err := disk.UsageWithContext(cmd.Context(), p.Mountpoint); err == nil {
			size = humanize.IBytes(u.Total)
		}
		fmt.Fprintf(out, "  %-28s  %-10s  %-22s  %-10s\n", p.Mountpoint, p.Fstype, p.Device, size)
	}
	fmt.Fprintln(out)
}

func printInfo(out io.Writer, input string, info device.Info) {
	fmt.Fprintln(out, "Path info")
	fmt.Fprintf(out, "  Input:   %s\n", input)
	if info.Mountpoint != "" {
		fmt.Fprintf(out, "  Mounted: %s (%s)\n", info.Mountpoint, info.Fstype)
	}
	if info.Device != "" {
		fmt.Fprintf(out, "  Device:  %s\n", info.Device)
	}
	if info.Whole != "" {
		fmt.Fprintf(out, "  Whole:   %s\n", info.Whole)
		if d := device.Details(info.Whole); d.SizeBytes > 0 {
			fmt.Fprintf(out, "  Size:    %s\n", d.SizeString)
			fmt.Fprintf(out, "  Type:    %s\n", d.Type)
		}
	}
	if info.DriveType != "" {
		fmt.Fprintf(out, "  Volume:  %s (%s)\n", info.DriveLetter, info.DriveType)
	}
	if info.DiskNumber >= 0 {
		fmt.Fprintf(out, "  Disk #:  %d\n", info.DiskNumber)
	}
}
