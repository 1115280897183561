package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kenton-research/kenton/pkg/apitool"
)

var errToolCallFailed = errors.New("tool call failed")

func buildToolsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and call API tools",
	}
	cmd.AddCommand(buildToolsListCmd(flags), buildToolsCallCmd(flags))
	return cmd
}

func buildToolsListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured tools and credential status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			reg, err := a.registry()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tAUTH\tCREDENTIAL\tENDPOINT")
			for _, t := range reg.List() {
				d := t.Descriptor()
				cred := "n/a"
				if d.Auth.RequiresKey() {
					cred = "missing (" + d.CredentialEnv + ")"
					if t.HasCredential() {
						cred = "set"
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Auth, cred, d.Endpoint)
			}
			return w.Flush()
		},
	}
}

func buildToolsCallCmd(flags *rootFlags) *cobra.Command {
	var (
		params []string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "call [tool]",
		Short: "Call a tool directly",
		Example: `  kenton tools call WeatherAPI -p q=London
  kenton tools call MarketDataAPI -p symbol=AAPL --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			reg, err := a.registry()
			if err != nil {
				return err
			}
			tool, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			values, err := parseParams(params, tool.Descriptor().Params)
			if err != nil {
				return err
			}

			env := tool.Call(cmd.Context(), values)
			out := cmd.OutOrStdout()
			if asJSON {
				fmt.Fprintln(out, env.JSON())
			} else {
				fmt.Fprintln(out, env.Text())
			}
			if !env.OK() {
				return errToolCallFailed
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result envelope as JSON")
	return cmd
}

// parseParams turns key=value pairs into typed values using the schema.
func parseParams(pairs []string, schema apitool.Schema) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, val, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", p)
		}

		switch schema[key].Type {
		case "integer", "number":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", key, err)
			}
			out[key] = f
		case "boolean":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", key, err)
			}
			out[key] = b
		default:
			out[key] = val
		}
	}
	return out, nil
}
