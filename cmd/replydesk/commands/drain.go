package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newDrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Trigger a drain on a running server",
		Long: `Ask a running server to re-enqueue stuck and failed events. The bearer
secret defaults to replydesk.drain_secret from the config file.

Examples:
  replydesk drain --url http://localhost:8080/replydesk
  replydesk drain --url https://desk.example.com/replydesk --secret $DRAIN_SECRET`,
		RunE: runDrain,
	}

	cmd.Flags().String("url", "http://localhost:8080/replydesk", "server base URL including the base path")
	cmd.Flags().String("secret", "", "drain bearer secret (overrides replydesk.drain_secret)")
	cmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	return cmd
}

func runDrain(cmd *cobra.Command, _ []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	base, _ := cmd.Flags().GetString("url")
	secret, _ := cmd.Flags().GetString("secret")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if secret == "" {
		secret = cfg.Desk.DrainSecret
	}
	if secret == "" {
		return fmt.Errorf("no drain secret: pass --secret or set replydesk.drain_secret")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	n, err := triggerDrain(ctx, http.DefaultClient, base, secret)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "drained %d event(s)\n", n)
	return nil
}

// triggerDrain calls POST {base}/internal/drain and returns the number of
// events the server re-enqueued.
func triggerDrain(ctx context.Context, client *http.Client, base, secret string) (int, error) {
	url := strings.TrimSuffix(base, "/") + "/internal/drain"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secret)

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("drain failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out struct {
		Drained int `json:"drained"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}
	return out.Drained, nil
}
