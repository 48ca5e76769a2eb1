package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "********"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the resolved configuration with secrets redacted",
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check the configuration file",
			RunE:  runConfigValidate,
		},
	)
	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(redact(*cfg))
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, path, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if path == "" {
		path = "defaults"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d tenants, %d knowledge entries)\n",
		path, len(cfg.Tenants), len(cfg.Knowledge))
	return nil
}

// redact returns a copy of cfg with every secret masked.
func redact(cfg Config) Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redacted
	}

	cfg.Redis.Password = mask(cfg.Redis.Password)
	cfg.Desk.ProcessSecret = mask(cfg.Desk.ProcessSecret)
	cfg.Desk.DrainSecret = mask(cfg.Desk.DrainSecret)
	cfg.Desk.QueueSecret = mask(cfg.Desk.QueueSecret)
	cfg.Desk.Vault.Legacy = mask(cfg.Desk.Vault.Legacy)

	keys := make(map[int]string, len(cfg.Desk.Vault.Keys))
	for v, k := range cfg.Desk.Vault.Keys {
		keys[v] = mask(k)
	}
	cfg.Desk.Vault.Keys = keys

	tenants := make([]TenantConfig, len(cfg.Tenants))
	for i, t := range cfg.Tenants {
		t.ChannelSecret = mask(t.ChannelSecret)
		t.AccessToken = mask(t.AccessToken)
		tenants[i] = t
	}
	cfg.Tenants = tenants
	return cfg
}
