package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"attendance-service/internal/pkg/jwt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// jobPaths maps the CLI job names onto the internal endpoints.
var jobPaths = map[string]string{
	"auto-logout":      "/internal/cron/auto-logout",
	"stale-heartbeats": "/internal/cron/stale-heartbeats",
	"daily-aggregate":  "/internal/cron/daily-aggregate",
}

func jobNames() []string {
	names := make([]string, 0, len(jobPaths))
	for name := range jobPaths {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newJobsCmd(v *viper.Viper) *cobra.Command {
	jobs := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger reconciliation jobs",
	}

	run := &cobra.Command{
		Use:       "run JOB",
		Short:     "Run one job now",
		Long:      fmt.Sprintf("Run one job on the server. JOB is one of %v.", jobNames()),
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, ok := jobPaths[args[0]]
			if !ok {
				return fmt.Errorf("unknown job %q, want one of %v", args[0], jobNames())
			}
			body, err := clientFrom(v).post(cmd.Context(), path)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List job names",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range jobNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}

	jobs.AddCommand(run, list)
	return jobs
}

func newMetricsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show per-job run counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := clientFrom(v).post(cmd.Context(), "/internal/metrics")
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
}

func newKeysCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage token signing keys",
	}

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Write a new RSA key pair as PEM",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, _ := cmd.Flags().GetString("private")
			pub, _ := cmd.Flags().GetString("public")
			if err := jwt.WriteKeyPair(priv, pub); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", priv, pub)
			return nil
		},
	}
	generate.Flags().String("private", "jwt_private.pem", "private key path")
	generate.Flags().String("public", "jwt_public.pem", "public key path")

	keys.AddCommand(generate)
	return keys
}

func printJSON(w io.Writer, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		_, err = w.Write(raw)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
