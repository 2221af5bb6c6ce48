package permission

import (
	"bytes"
	"context"
	_ "embed"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"

	"github.com/mpapenbr/docflow-session-go/log"
	"github.com/mpapenbr/docflow-session-go/pkg/session"
)

type OpaPermissionEvaluator struct {
	query rego.PreparedEvalQuery
	l     *log.Logger
}

type EvalRequest struct {
	Roles       []session.Role `json:"roles"`
	Sub         string         `json:"sub,omitempty"`
	Action      Permission     `json:"action"`
	ObjectOwner string         `json:"objectOwner,omitempty"`
}

var _ PermissionEvaluator = (*OpaPermissionEvaluator)(nil)

//go:embed policy.rego
var policy []byte

//go:embed data.json
var data []byte

func NewOpaPermissionEvaluator() (*OpaPermissionEvaluator, error) {
	l := log.Default().Named("permission").Named("opa")
	store := inmem.NewFromReader(bytes.NewReader(data))
	r := rego.New(
		rego.Query("data.docflow.authz.allow"),
		rego.Module("docflow.authz", string(policy)),
		rego.Store(store),
	)
	if query, err := r.PrepareForEval(context.Background()); err != nil {
		l.Error("failed to prepare query", log.ErrorField(err))
		return nil, err
	} else {
		return &OpaPermissionEvaluator{
			query: query,
			l:     l,
		}, nil
	}
}

//nolint:whitespace // editor/linter issue
func (ope *OpaPermissionEvaluator) HasPermission(
	u *session.User,
	perm Permission,
) bool {
	return ope.HasObjectPermission(u, perm, "")
}

// HasObjectPermission checks perm for a document owned by objectOwner (a
// user sub). An empty objectOwner checks the permission without ownership.
//
//nolint:whitespace // editor/linter issue
func (ope *OpaPermissionEvaluator) HasObjectPermission(
	u *session.User,
	perm Permission,
	objectOwner string,
) bool {
	if u == nil {
		return false
	}
	ope.l.Debug("HasObjectPermission",
		log.String("sub", u.Sub),
		log.String("role", string(u.Role)),
		log.String("perm", string(perm)),
		log.String("objectOwner", objectOwner))
	req := EvalRequest{
		Roles:       []session.Role{u.Role},
		Sub:         u.Sub,
		Action:      perm,
		ObjectOwner: objectOwner,
	}
	if rs, err := ope.query.Eval(context.Background(), rego.EvalInput(req)); err != nil {
		ope.l.Error("HasObjectPermission", log.ErrorField(err))
		return false
	} else {
		ope.l.Debug("res", log.Any("res", rs))
		return rs.Allowed()
	}
}
