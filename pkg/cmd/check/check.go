package check

import (
	"context"
	"fmt"
	"io"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/docflow-session-go/pkg/cmd/env"
	"github.com/mpapenbr/docflow-session-go/pkg/guard"
	"github.com/mpapenbr/docflow-session-go/pkg/permission"
	"github.com/mpapenbr/docflow-session-go/pkg/session"
)

type options struct {
	roles       []string
	permission  string
	objectOwner string
	returnTo    string
}

var opts options

func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check PATH",
		Short: "evaluates the guards for a view path",
		Long: `Evaluates the guard decision for PATH as the current session would.
Without --role or --permission only authentication is required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := env.Setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			nav := env.NewPrinter(cmd.OutOrStdout(), args[0])
			_, err = evaluate(cmd.Context(), cmd.OutOrStdout(), e.Guard, nav, opts)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&opts.roles, "role", nil,
		"roles allowed to view the path (Submitter, Approver)")
	cmd.Flags().StringVar(&opts.permission, "permission", "",
		"permission required for the path, e.g. approve-document")
	cmd.Flags().StringVar(&opts.objectOwner, "owner", "",
		"owner (sub) of the document for owner scoped permissions")
	cmd.Flags().StringVar(&opts.returnTo, "return-to", "",
		"location to return to after login (default is PATH)")
	return cmd
}

//nolint:whitespace // editor/linter issue
func evaluate(
	ctx context.Context,
	out io.Writer,
	g *guard.Guard,
	nav *env.Printer,
	o options,
) (guard.Decision, error) {
	returnTo := lo.CoalesceOrEmpty(o.returnTo, nav.Location())
	var d guard.Decision
	switch {
	case o.permission != "":
		d = g.CheckPermission(ctx, nav.Location(),
			permission.Permission(o.permission), o.objectOwner, returnTo)
	case len(o.roles) > 0:
		roles := make([]session.Role, 0, len(o.roles))
		for _, r := range o.roles {
			role, err := session.ParseRole(r)
			if err != nil {
				return d, err
			}
			roles = append(roles, role)
		}
		d = g.CheckRole(ctx, nav.Location(), roles, returnTo)
	default:
		d = g.CheckAuth(ctx, nav.Location(), returnTo)
	}
	fmt.Fprintf(out, "decision: %s\n", d)
	guard.Apply(nav, d)
	return d, nil
}
