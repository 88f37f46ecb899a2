package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	ociadapt "github.com/DamienR91/ociadapt"
	"github.com/DamienR91/ociadapt/oci"
)

var (
	execConn   string
	execFetch  string
	execFormat string
	execArgs   []string
	execFold   bool
)

var execCmd = &cobra.Command{
	Use:   "exec <sql>",
	Short: "Run one statement through the adapter and print its rows",
	Long: `Exec rewrites the statement's positional markers, prepares it on the
connection named by --conn, binds the --arg values positionally and prints
the fetched rows in the requested format.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		profile, err := cfg.Connection(execConn)
		if err != nil {
			return err
		}
		mode, err := parseFetchMode(execFetch)
		if err != nil {
			return err
		}

		conn, err := oci.Open(profile.Driver, profile.DSN)
		if err != nil {
			return err
		}
		defer conn.Close()

		opts := []ociadapt.Option{ociadapt.WithFetchMode(mode), ociadapt.WithLobPreload()}
		if execFold {
			opts = append(opts, ociadapt.WithLowercaseKeys())
		}
		st, err := ociadapt.Prepare(conn, args[0], opts...)
		if err != nil {
			return err
		}
		defer st.Close()

		bindArgs := make([]any, len(execArgs))
		for i, a := range execArgs {
			bindArgs[i] = a
		}
		if err := st.ExecArgs(bindArgs); err != nil {
			return err
		}
		rows, err := st.FetchAll()
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) affected\n", st.RowCount())
			return nil
		}
		return printRows(cmd.OutOrStdout(), rows, execFormat)
	},
}

func init() {
	execCmd.Flags().StringVar(&execConn, "conn", "default", "connection profile name")
	execCmd.Flags().StringVar(&execFetch, "fetch", "assoc", "fetch mode: both, assoc, numeric, column, object")
	execCmd.Flags().StringVar(&execFormat, "format", "table", "output format: table, json, msgpack")
	execCmd.Flags().StringArrayVar(&execArgs, "arg", nil, "positional bind value (repeatable)")
	execCmd.Flags().BoolVar(&execFold, "lowercase", false, "fold column keys to lowercase")
}

func parseFetchMode(name string) (ociadapt.FetchMode, error) {
	switch strings.ToLower(name) {
	case "both":
		return ociadapt.FetchBoth, nil
	case "assoc":
		return ociadapt.FetchAssoc, nil
	case "numeric":
		return ociadapt.FetchNumeric, nil
	case "column":
		return ociadapt.FetchColumn, nil
	case "object":
		return ociadapt.FetchObject, nil
	default:
		return 0, fmt.Errorf("unknown fetch mode %q", name)
	}
}

func printRows(w io.Writer, rows []any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "msgpack":
		data, err := msgpack.Marshal(rows)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, r := range rows {
			switch row := r.(type) {
			case ociadapt.Row:
				for i, v := range row.Values {
					if i > 0 {
						fmt.Fprint(tw, "\t")
					}
					fmt.Fprintf(tw, "%v", v)
				}
				fmt.Fprintln(tw)
			case map[string]any:
				fmt.Fprintln(tw, formatMap(row))
			case []any:
				parts := make([]string, len(row))
				for i, v := range row {
					parts[i] = fmt.Sprintf("%v", v)
				}
				fmt.Fprintln(tw, strings.Join(parts, "\t"))
			default:
				fmt.Fprintf(tw, "%v\n", r)
			}
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func formatMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Stable output for scripts diffing the result.
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, m[k])
	}
	return strings.Join(parts, "\t")
}
