package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	ociadapt "github.com/DamienR91/ociadapt"
)

var (
	rewriteBase  int
	rewriteWatch bool
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [file]",
	Short: "Rewrite positional ? markers into named markers",
	Long: `Rewrite reads SQL from a file (or stdin) and prints the text with every
positional marker outside a string literal replaced by a named marker,
followed by the synthesized marker map.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base := ociadapt.Base0
		switch rewriteBase {
		case 0:
		case 1:
			base = ociadapt.Base1
		default:
			return fmt.Errorf("--base must be 0 or 1")
		}
		if len(args) == 0 {
			text, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			return printRewrite(cmd.OutOrStdout(), string(text), base)
		}
		run := func() error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return printRewrite(cmd.OutOrStdout(), string(text), base)
		}
		if !rewriteWatch {
			return run()
		}
		return watchFile(args[0], run)
	},
}

func init() {
	rewriteCmd.Flags().IntVar(&rewriteBase, "base", 0, "marker numbering base (0 or 1)")
	rewriteCmd.Flags().BoolVarP(&rewriteWatch, "watch", "w", false, "re-run on file change")
}

func printRewrite(w io.Writer, text string, base ociadapt.Base) error {
	out, params := ociadapt.Rewrite(text, base)
	fmt.Fprintln(w, out)
	for _, key := range params.Keys() {
		name, _ := params.Name(key)
		fmt.Fprintf(w, "-- %d -> %s\n", key, name)
	}
	return nil
}

// watchFile re-runs fn on every write to path until interrupted. Editors
// replace files rather than write them in place, so the parent directory is
// watched and events are debounced.
func watchFile(path string, fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var (
		debounce = time.NewTimer(0)
		pending  bool
	)
	if !debounce.Stop() {
		<-debounce.C
	}
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			changed, _ := filepath.Abs(event.Name)
			if changed != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !pending {
				pending = true
				debounce.Reset(300 * time.Millisecond)
			}
		case <-debounce.C:
			pending = false
			if err := fn(); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, err)
		}
	}
}
