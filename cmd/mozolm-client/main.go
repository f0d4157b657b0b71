// mozolm-client talks to a running mozolm-server. Each subcommand maps
// to one protocol operation; repl keeps a growing context across
// generations for interactive use.
package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/RajanChettri/mozolm/internal/client"
	"github.com/RajanChettri/mozolm/internal/config"
	"github.com/RajanChettri/mozolm/internal/logger"
	"github.com/RajanChettri/mozolm/internal/models"
)

var (
	cfgPath    string
	serverAddr string
	timeoutSec float64
	nameOver   string
	serverCert string
	clientCert string
	clientKey  string
	logLevel   string
	logFormat  string
)

func newClient() (*client.Client, error) {
	cfg := &config.ClientConfig{}
	if cfgPath != "" {
		loaded, err := config.LoadClient(cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if serverAddr != "" {
		cfg.Server.AddressURI = serverAddr
	}
	if timeoutSec > 0 {
		cfg.TimeoutSec = timeoutSec
	}
	if nameOver != "" {
		cfg.Auth.SSL.TargetNameOverride = nameOver
	}
	if serverCert != "" {
		pem, err := os.ReadFile(serverCert)
		if err != nil {
			return nil, err
		}
		cfg.Server.Auth.CredentialType = config.CredentialSSL
		cfg.Server.Auth.SSL.ServerCert = string(pem)
	}
	if clientCert != "" {
		pem, err := os.ReadFile(clientCert)
		if err != nil {
			return nil, err
		}
		cfg.Auth.SSL.ClientCert = string(pem)
	}
	if clientKey != "" {
		pem, err := os.ReadFile(clientKey)
		if err != nil {
			return nil, err
		}
		cfg.Auth.SSL.ClientKey = string(pem)
	}
	return client.New(*cfg)
}

func withClient(fn func(*client.Client) error) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func argContext(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func scoresCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "scores [context]",
		Short: "Print the next-character distribution for a context",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *client.Client) error {
				dist, err := c.GetLMScores(argContext(args))
				if err != nil {
					return err
				}
				symbols := dist.Symbols()
				sort.SliceStable(symbols, func(i, j int) bool {
					return dist[symbols[i]] > dist[symbols[j]]
				})
				if top > 0 && top < len(symbols) {
					symbols = symbols[:top]
				}
				for _, sym := range symbols {
					label := sym
					if sym == models.EndOfSequence {
						label = "<eos>"
					}
					fmt.Printf("%-8q %.6f\n", label, dist[sym])
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "print only the N most probable symbols, 0 for all")
	return cmd
}

func generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [context]",
		Short: "Sample a random continuation of the context",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *client.Client) error {
				text, err := c.RandGen(argContext(args))
				if err != nil {
					return err
				}
				fmt.Println(text)
				return nil
			})
		},
	}
}

func topkCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "topk [context]",
		Short: "Sample one character from the k most probable",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *client.Client) error {
				sym, err := c.OneKbestSample(k, argContext(args))
				if err != nil {
					return err
				}
				if sym == models.EndOfSequence {
					sym = "<eos>"
				}
				fmt.Println(sym)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&k, "k", 5, "number of candidates to sample among")
	return cmd
}

func bpcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bpc <file>",
		Short: "Compute the model's bits per character over a text file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *client.Client) error {
				bpc, scored, err := c.CalcBitsPerCharacter(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%.6f bits/char over %d chars\n", bpc, scored)
				return nil
			})
		},
	}
}

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive session with a growing context",
		Long: "Each input line extends the context and the server generates a\n" +
			"continuation, which also joins the context. /reset clears the\n" +
			"context, /quit exits.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *client.Client) error {
				contextStr := ""
				scanner := bufio.NewScanner(os.Stdin)
				fmt.Print("> ")
				for scanner.Scan() {
					line := scanner.Text()
					switch line {
					case "/quit":
						return nil
					case "/reset":
						contextStr = ""
						fmt.Print("> ")
						continue
					}
					contextStr += line
					text, err := c.RandGen(contextStr)
					if err != nil {
						return err
					}
					contextStr += text
					fmt.Printf("%s\n> ", text)
				}
				return scanner.Err()
			})
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "mozolm-client",
		Short:         "Client for the character-level language model server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Setup(logLevel, logFormat)
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "YAML client config file")
	pf.StringVar(&serverAddr, "server", "",
		"server address, host:port or unix://<path> (overrides config)")
	pf.Float64Var(&timeoutSec, "timeout", 0, "per-call timeout in seconds")
	pf.StringVar(&nameOver, "target-name-override", "",
		"expected server certificate name for ssl channels")
	pf.StringVar(&serverCert, "server-cert", "",
		"server certificate PEM file, enables ssl")
	pf.StringVar(&clientCert, "client-cert", "", "client certificate PEM file")
	pf.StringVar(&clientKey, "client-key", "", "client key PEM file")
	pf.StringVar(&logLevel, "log-level", "warn", "log level")
	pf.StringVar(&logFormat, "log-format", "console", "log format (console or json)")

	rootCmd.AddCommand(scoresCmd(), generateCmd(), topkCmd(), bpcCmd(), replCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
