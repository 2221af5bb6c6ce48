package request

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/docflow-session-go/pkg/apiclient"
	"github.com/mpapenbr/docflow-session-go/pkg/cmd/env"
	"github.com/mpapenbr/docflow-session-go/pkg/cmd/output"
)

type options struct {
	data        string
	contentType string
	location    string
	output      string
}

var (
	opts options
	fs   = afero.NewOsFs()
)

var ErrMethodNotSupported = errors.New("method not supported")

func NewRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "performs an authenticated request against the document API",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := env.Setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			nav := env.NewPrinter(cmd.ErrOrStderr(), opts.location)
			client := apiclient.New(e.Config.APIBaseURL, e.Tokens, e.Guard, nav)
			return run(cmd.Context(), cmd.OutOrStdout(), client, args[0], args[1], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.data, "data", "d", "",
		"request body; @file reads the body from file")
	cmd.Flags().StringVar(&opts.contentType, "content-type", "",
		"content type of the body (default application/json)")
	cmd.Flags().StringVar(&opts.location, "location", "/",
		"view location used as return target when a login is required")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "json",
		"output format for structured responses (json, yaml)")
	return cmd
}

// buildBody returns the body for data. JSON data is sent as is, other data
// requires an explicit content type to be sent raw.
func buildBody(data, contentType string) (apiclient.Body, error) {
	if data == "" {
		return apiclient.NoBody{}, nil
	}
	if name, ok := strings.CutPrefix(data, "@"); ok {
		content, err := afero.ReadFile(fs, name)
		if err != nil {
			return nil, err
		}
		if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
			return apiclient.BinaryBody{
				Reader:      bytes.NewReader(content),
				ContentType: contentType,
			}, nil
		}
		data = string(content)
	}
	if contentType == "" {
		if !json.Valid([]byte(data)) {
			return nil, fmt.Errorf("data is not valid JSON, use --content-type for raw data")
		}
		contentType = "application/json"
	}
	return apiclient.RawBody{Data: data, ContentType: contentType}, nil
}

//nolint:whitespace // editor/linter issue
func run(
	ctx context.Context,
	out io.Writer,
	client *apiclient.Client,
	method, path string,
	o options,
) error {
	method = strings.ToUpper(method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete:
	default:
		return fmt.Errorf("%w: %s", ErrMethodNotSupported, method)
	}
	format, err := output.ParseFormat(o.output)
	if err != nil {
		return err
	}
	body, err := buildBody(o.data, o.contentType)
	if err != nil {
		return err
	}
	res, err := client.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return printResult(out, res, format)
}

// printResult writes text responses unchanged and structured ones in format
func printResult(out io.Writer, res any, format output.Format) error {
	switch v := res.(type) {
	case nil:
		return nil
	case string:
		_, err := fmt.Fprintln(out, v)
		return err
	default:
		return output.Write(out, format, v)
	}
}
