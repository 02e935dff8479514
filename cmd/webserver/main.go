// Command webserver is the process entry point: a cobra root command with
// pflag-backed flags bound into the same viper keys internal/config reads,
// so flags, a config file, and environment variables all resolve through
// one precedence order.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/badu/webserver/internal/config"
	"github.com/badu/webserver/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "webserver",
		Short: "Non-blocking, multi-reactor HTTP/1.1 file and auth server",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(cmd)
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return server.Run(cfg)
		},
	}

	var flags *pflag.FlagSet = cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to a YAML config file")
	flags.String("host", "", "bind address (overrides config)")
	flags.Int("port", 0, "listen port (overrides config)")
	flags.Int("sub-reactors", 0, "number of SubReactor event loops (overrides config)")
	flags.Bool("sendfile", false, "use sendfile(2) instead of mmap+writev for file responses")
	flags.Bool("thread-pool", false, "offload request processing to a fixed worker pool instead of the reactor goroutine")
	flags.String("doc-root", "", "static file document root (overrides config)")

	return cmd
}

// bindFlags exports only the flags the user actually set as environment
// variables in config.Load's SERVER_*/DB_*/LOG_* scheme, so an unset
// --port doesn't clobber a config-file value with its zero default.
func bindFlags(cmd *cobra.Command) {
	bindings := map[string]string{
		"host":         "server.host",
		"port":         "server.port",
		"sub-reactors": "server.num_sub_reactor",
		"sendfile":     "server.use_sendfile",
		"thread-pool":  "server.use_thread_pool",
		"doc-root":     "doc_root",
	}
	for flagName, key := range bindings {
		f := cmd.Flags().Lookup(flagName)
		if f != nil && f.Changed {
			envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
			os.Setenv(envKey, f.Value.String())
		}
	}
}
