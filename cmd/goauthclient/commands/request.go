package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

var requestCmd = &cobra.Command{
	Use:   "request METHOD PATH",
	Short: "Log in and issue one request through the client",
	Long: `Log in with the configured credentials, then issue METHOD PATH through
the client. With --expire the access token is expired first, so the request
goes through a refresh and a replay. Without client.base_url an in-process
backend is started.`,
	Example: `  goauthclient request GET /user/profile
  goauthclient request GET /user/profile --expire
  goauthclient request POST /parcels --data '{"weight":2}'`,
	Args: cobra.ExactArgs(2),
	RunE: runRequest,
}

func init() {
	requestCmd.Flags().String("data", "", "JSON request body")
	requestCmd.Flags().Bool("expire", false, "Expire the access token before the request (in-process backend only)")
}

func runRequest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	method, path := strings.ToUpper(args[0]), args[1]

	baseURL := cfg.Client.BaseURL
	var local *backend
	if baseURL == "" {
		sc := cfg.Server
		sc.Addr = "127.0.0.1:0"
		b, err := startBackend(sc, log)
		if err != nil {
			return err
		}
		defer func() { _ = b.Shutdown(ctx) }()
		local, baseURL = b, b.URL()
	}

	client, err := newClient(cfg, baseURL, log)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := login(ctx, client, cfg); err != nil {
		return err
	}

	if expire, _ := cmd.Flags().GetBool("expire"); expire {
		if local == nil {
			return fmt.Errorf("--expire needs the in-process backend")
		}
		local.api.ExpireAccess()
	}

	req := goAuthClient.NewRequest(method, path)
	if data, _ := cmd.Flags().GetString("data"); data != "" {
		if !json.Valid([]byte(data)) {
			return fmt.Errorf("--data is not valid JSON")
		}
		req.RawBody = []byte(data)
		req = req.WithHeader("Content-Type", "application/json")
	}

	resp, err := client.Execute(ctx, req)
	if err != nil {
		if status := goAuthClient.StatusCode(err); status != 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d %s\n", status, http.StatusText(status))
		}
		return err
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, resp.Body, "", "  ") == nil {
		resp.Body = pretty.Bytes()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n%s\n", resp.StatusCode, http.StatusText(resp.StatusCode), resp.Body)
	fmt.Fprintf(cmd.ErrOrStderr(), "refreshes: %d\n", client.Refreshes())
	return nil
}
