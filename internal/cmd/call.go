package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yusheng929/steam-plugin/internal/config"
	"github.com/yusheng929/steam-plugin/internal/logger"
	"github.com/yusheng929/steam-plugin/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var callOpts struct {
	method  string
	params  []string
	headers []string
	data    string
	baseURL string
	pretty  bool
	verbose bool
}

var callCmd = &cobra.Command{
	Use:   "call <path>",
	Short: "Issue one Steam Web API request through the key pool",
	Example: `  steamapi call /ISteamUser/GetPlayerSummaries/v2 -p steamids=76561197960435530
  steamapi call /IPlayerService/GetOwnedGames/v1 -p steamid=76561197960435530 -p include_appinfo=1 --pretty`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVarP(&callOpts.method, "method", "X", http.MethodGet, "HTTP method")
	callCmd.Flags().StringArrayVarP(&callOpts.params, "param", "p", nil, "query parameter as key=value (repeatable)")
	callCmd.Flags().StringArrayVarP(&callOpts.headers, "header", "H", nil, "request header as Name: value (repeatable)")
	callCmd.Flags().StringVarP(&callOpts.data, "data", "d", "", "request body, @file reads it from a file")
	callCmd.Flags().StringVar(&callOpts.baseURL, "base-url", "", "override the base URL for this call (no pool key is attached)")
	callCmd.Flags().BoolVar(&callOpts.pretty, "pretty", false, "indent JSON output")
	callCmd.Flags().BoolVarP(&callOpts.verbose, "verbose", "v", false, "log every attempt")
}

func runCall(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := cliLogger(callOpts.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	req, err := buildCallRequest(args[0], callOpts.method, callOpts.params, callOpts.headers, callOpts.baseURL)
	if err != nil {
		return err
	}
	if callOpts.data != "" {
		if req.Body, err = readData(callOpts.data); err != nil {
			return err
		}
	}

	client, release, err := newClient(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer release()

	body, err := client.Do(cmd.Context(), req)
	if err != nil {
		return err
	}

	return writeBody(cmd.OutOrStdout(), body, callOpts.pretty)
}

// buildCallRequest turns command-line arguments into a request.
func buildCallRequest(path, method string, params, headers []string, baseURL string) (models.Request, error) {
	req := models.Request{
		Path:   path,
		Method: strings.ToUpper(method),
		RequestOptions: models.RequestOptions{
			BaseURL: strings.TrimSuffix(baseURL, "/"),
		},
	}

	for _, p := range params {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return models.Request{}, fmt.Errorf("invalid param %q, want key=value", p)
		}
		if req.Params == nil {
			req.Params = make(map[string]string)
		}
		req.Params[k] = v
	}

	for _, h := range headers {
		k, v, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(k) == "" {
			return models.Request{}, fmt.Errorf("invalid header %q, want Name: value", h)
		}
		if req.Header == nil {
			req.Header = make(map[string]string)
		}
		req.Header[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return req, nil
}

func readData(data string) ([]byte, error) {
	name, ok := strings.CutPrefix(data, "@")
	if !ok {
		return []byte(data), nil
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read body file: %w", err)
	}
	return b, nil
}

func writeBody(w io.Writer, body []byte, pretty bool) error {
	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "", "  "); err == nil {
			body = buf.Bytes()
		}
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if len(body) > 0 && body[len(body)-1] != '\n' {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

// cliLogger logs to stderr so stdout stays machine-readable.
func cliLogger(verbose bool) (*zap.Logger, error) {
	log, err := logger.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if !verbose {
		log = log.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
	}
	return log, nil
}
