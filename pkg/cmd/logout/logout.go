package logout

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/docflow-session-go/pkg/cmd/env"
	"github.com/mpapenbr/docflow-session-go/pkg/idp"
)

func NewLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "removes the local session and shows the provider logout url",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context(), cmd.OutOrStdout())
		},
	}
	return cmd
}

func runLogout(ctx context.Context, out io.Writer) error {
	e, err := env.Setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	client, err := idp.New(ctx, e.Config, e.Tab, e.Tokens)
	if err != nil {
		return err
	}
	logoutURL := client.Logout(ctx)
	fmt.Fprintln(out, "local session removed")
	if logoutURL != "" {
		fmt.Fprintf(out, "to end the provider session open:\n\n  %s\n", logoutURL)
	}
	return nil
}
