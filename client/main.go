// client/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

type options struct {
	url     string
	bearer  string
	email   string
	timeout time.Duration
}

type invoiceFlags struct {
	status string
	from   string
	to     string
	limit  int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "agentdesk-client",
		Short:        "Call the agentdesk MCP tools from the command line",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.url, "url", getenv("AGENTDESK_SERVER_URL", "http://127.0.0.1:8080/mcp/sse"), "MCP SSE server URL")
	pf.StringVar(&opts.bearer, "bearer", os.Getenv("AGENTDESK_AUTH_BEARER"), "optional bearer token")
	pf.StringVar(&opts.email, "email", os.Getenv("AGENTDESK_AGENT_EMAIL"), "agent email sent as email_agente")
	pf.DurationVar(&opts.timeout, "timeout", 60*time.Second, "overall timeout")

	root.AddCommand(newToolsCmd(opts), newInvoicesCmd(opts), newSearchCmd(opts))
	return root
}

func newToolsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered by the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), opts, func(ctx context.Context, s *mcp.ClientSession) error {
				res, err := s.ListTools(ctx, &mcp.ListToolsParams{})
				if err != nil {
					return fmt.Errorf("tools/list failed: %w", err)
				}
				for _, t := range res.Tools {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.Name, t.Description)
				}
				return nil
			})
		},
	}
}

func newInvoicesCmd(opts *options) *cobra.Command {
	f := &invoiceFlags{}
	cmd := &cobra.Command{
		Use:   "facturas",
		Short: "List the agent's invoices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			args := invoiceArgs(opts.email, *f)
			return withSession(cmd.Context(), opts, func(ctx context.Context, s *mcp.ClientSession) error {
				return call(ctx, cmd.OutOrStdout(), s, "consultar_mis_facturas", args)
			})
		},
	}
	cmd.Flags().StringVar(&f.status, "estado", "", "PENDIENTE or PAGADA")
	cmd.Flags().StringVar(&f.from, "desde", "", "first issue date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "hasta", "", "last issue date, YYYY-MM-DD")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of invoices (server default when 0)")
	return cmd
}

func newSearchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "buscar <direccion>",
		Short: "Find invoices by property address",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, words []string) error {
			args := searchArgs(opts.email, strings.Join(words, " "))
			return withSession(cmd.Context(), opts, func(ctx context.Context, s *mcp.ClientSession) error {
				return call(ctx, cmd.OutOrStdout(), s, "buscar_factura_por_propiedad", args)
			})
		},
	}
}

// invoiceArgs only sends the filters that were set.
func invoiceArgs(email string, f invoiceFlags) map[string]any {
	args := map[string]any{}
	if email != "" {
		args["email_agente"] = email
	}
	if f.status != "" {
		args["estado"] = strings.ToUpper(f.status)
	}
	if f.from != "" {
		args["fecha_inicio"] = f.from
	}
	if f.to != "" {
		args["fecha_fin"] = f.to
	}
	if f.limit > 0 {
		args["limit"] = f.limit
	}
	return args
}

func searchArgs(email, address string) map[string]any {
	args := map[string]any{"query_direccion": strings.TrimSpace(address)}
	if email != "" {
		args["email_agente"] = email
	}
	return args
}

func withSession(ctx context.Context, opts *options, fn func(context.Context, *mcp.ClientSession) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	httpClient := &http.Client{
		Transport: &authRoundTripper{base: http.DefaultTransport, bearer: strings.TrimSpace(opts.bearer)},
	}
	tr := &mcp.SSEClientTransport{
		Endpoint:   opts.url,
		HTTPClient: httpClient,
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "agentdesk-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, tr, nil)
	if err != nil {
		return fmt.Errorf("connect to %s failed: %w", opts.url, err)
	}
	defer session.Close()
	return fn(ctx, session)
}

func call(ctx context.Context, w io.Writer, session *mcp.ClientSession, tool string, args map[string]any) error {
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return fmt.Errorf("%s failed: %w", tool, err)
	}
	printContent(w, res.Content)
	if res.IsError {
		return fmt.Errorf("%s returned error", tool)
	}
	return nil
}

func printContent(w io.Writer, cs []mcp.Content) {
	for _, c := range cs {
		switch v := c.(type) {
		case *mcp.TextContent:
			if pretty, ok := tryPrettyJSON(v.Text); ok {
				fmt.Fprintln(w, pretty)
			} else {
				fmt.Fprintln(w, v.Text)
			}
		default:
			b, _ := json.MarshalIndent(v, "", "  ")
			fmt.Fprintln(w, string(b))
		}
	}
}

type authRoundTripper struct {
	base   http.RoundTripper
	bearer string
}

func (rt *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if rt.bearer != "" {
		r.Header.Set("Authorization", "Bearer "+rt.bearer)
	}
	return rt.base.RoundTrip(r)
}

func tryPrettyJSON(s string) (string, bool) {
	var anyJSON any
	if err := json.Unmarshal([]byte(s), &anyJSON); err != nil {
		return "", false
	}
	b, _ := json.MarshalIndent(anyJSON, "", "  ")
	return string(b), true
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
