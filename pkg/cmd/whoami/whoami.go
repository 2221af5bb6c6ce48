package whoami

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/docflow-session-go/pkg/cmd/env"
	"github.com/mpapenbr/docflow-session-go/pkg/cmd/output"
	"github.com/mpapenbr/docflow-session-go/pkg/session"
)

var outputFormat string

func NewWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "shows the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			e, err := env.Setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			return printUser(cmd.Context(), cmd.OutOrStdout(), e.State, format)
		},
	}
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text",
		"output format (text, json, yaml)")
	return cmd
}

//nolint:whitespace // editor/linter issue
func printUser(
	ctx context.Context, out io.Writer, state *session.State, format output.Format,
) error {
	u := state.CurrentUser(ctx)
	if format != output.FormatText {
		return output.Write(out, format, u)
	}
	if u == nil {
		fmt.Fprintln(out, "not logged in")
		return nil
	}
	fmt.Fprintf(out, "name:   %s\n", u.DisplayName)
	fmt.Fprintf(out, "email:  %s\n", u.Email)
	fmt.Fprintf(out, "role:   %s\n", u.Role)
	fmt.Fprintf(out, "groups: %s\n", strings.Join(u.Groups, ", "))
	return nil
}
