package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/config"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/daemon"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "First-time setup: config, secrets and provider keys",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Issue a bearer token that names the submitting user",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "Token lifetime (0 for no expiry)")
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "exdoc - First-Time Setup")
	fmt.Fprintln(out, "========================")
	fmt.Fprintln(out)

	fmt.Fprint(out, "Creating config directory... ")
	dir, err := config.EnsureDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Fprintf(out, "✓ %s\n", dir)

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Fprint(out, "Creating default configuration... ")
		if err := config.SaveLocalConfigTo(dir, config.DefaultLocalConfig()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Fprintln(out, "✓")
	} else {
		fmt.Fprintln(out, "Configuration already exists ✓")
	}

	cfg, err := config.LoadLocalConfigFrom(dir)
	if err != nil {
		return err
	}
	secrets := currentSecrets(cfg)

	if secrets.JWTSecret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("generate jwt secret: %w", err)
		}
		secrets.JWTSecret = hex.EncodeToString(buf)
		fmt.Fprintln(out, "Generated token signing secret ✓")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Hint Provider Setup")
	fmt.Fprintln(out, "-------------------")
	fmt.Fprintln(out, "Hints use Claude (Anthropic), OpenAI or a local Ollama.")
	reader := bufio.NewReader(cmd.InOrStdin())
	for _, name := range []string{"claude", "openai"} {
		if secrets.Providers[name].APIKey != "" {
			fmt.Fprintf(out, "%s API key: already configured ✓\n", name)
			continue
		}
		fmt.Fprintf(out, "Enter %s API key (or press Enter to skip): ", name)
		key, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("read input: %w", err)
		}
		if key = strings.TrimSpace(key); key != "" {
			secrets.Providers[name] = config.ProviderSecret{APIKey: key}
		}
	}

	if err := config.SaveSecrets(dir, secrets); err != nil {
		return fmt.Errorf("save secrets: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Setup Complete!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. exdoc start           # Start the daemon")
	fmt.Fprintln(out, "  2. exdoc status          # Verify providers and storage")
	fmt.Fprintln(out, "  3. exdoc token <name>    # Issue a token for the editor")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "For agents: configure MCP with the 'exdoc mcp' command")
	return nil
}

// currentSecrets rebuilds secrets.yaml from a loaded config so saving it
// keeps what is already there.
func currentSecrets(cfg *config.LocalConfig) config.Secrets {
	s := config.Secrets{
		Providers: make(map[string]config.ProviderSecret),
		JWTSecret: cfg.Auth.JWTSecret,
		RedisPass: cfg.Cache.Password,
		Token:     cfg.Client.Token,
	}
	for name, p := range cfg.LLM.Providers {
		if p.APIKey != "" {
			s.Providers[name] = config.ProviderSecret{APIKey: p.APIKey}
		}
	}
	return s
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	out.Write(data)

	fmt.Fprintln(out, "\n# secrets")
	for name, p := range cfg.LLM.Providers {
		if p.Enabled && name != "ollama" {
			fmt.Fprintf(out, "#   %s api key: %s\n", name, mark(p.APIKey != ""))
		}
	}
	fmt.Fprintf(out, "#   jwt secret: %s\n", mark(cfg.Auth.JWTSecret != ""))
	fmt.Fprintf(out, "#   client token: %s\n", mark(cfg.Client.Token != ""))

	dir, _ := config.Dir()
	fmt.Fprintf(out, "\n# config path: %s\n", filepath.Join(dir, "config.yaml"))
	return nil
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	auth := daemon.NewAuthenticator(cfg.Auth.JWTSecret)
	if auth == nil {
		return fmt.Errorf("no jwt secret configured (run 'exdoc init' or set JWT_SECRET)")
	}
	token, err := auth.Issue(args[0], tokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
