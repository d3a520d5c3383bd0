package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/cfgregistry/internal/client"
	"github.com/alfredjeanlab/cfgregistry/internal/ui"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the registry service",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc")
		if grpcAddr == grpcFromProfile {
			grpcAddr = activeProfile().GRPCAddr
			if grpcAddr == "" {
				return fmt.Errorf("the active profile has no gRPC address; pass --grpc=<addr>")
			}
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var (
			status string
			err    error
		)
		if grpcAddr != "" {
			status, err = grpcHealth(ctx, grpcAddr)
		} else {
			status, err = registryClient.Health(ctx)
		}
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(stdout, "Health: %s\n", ui.RenderStatus(status))
		}

		if status != "ok" && status != "SERVING" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

func grpcHealth(ctx context.Context, addr string) (string, error) {
	c, err := client.NewGRPCHealthClient(addr, authToken)
	if err != nil {
		return "", err
	}
	defer c.Close()
	return c.Check(ctx, "")
}

// grpcFromProfile is the value of a bare --grpc flag.
const grpcFromProfile = "profile"

func init() {
	healthCmd.Flags().String("grpc", "", "check the gRPC health service at this address instead (bare --grpc uses the active profile)")
	healthCmd.Flags().Lookup("grpc").NoOptDefVal = grpcFromProfile
	healthCmd.Flags().Duration("timeout", 5*time.Second, "request timeout")
}
