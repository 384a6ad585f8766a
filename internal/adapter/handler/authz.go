package handler

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

//go:embed policy/authz.rego
var authzPolicy string

const authzQuery = "data.railway.authz.allow"

// AccessRequest is the input document the policy decides on.
type AccessRequest struct {
	Method string
	Path   string
	UserID int64
	Admin  bool
}

type Authorizer struct {
	query rego.PreparedEvalQuery
}

func NewAuthorizer(ctx context.Context) (*Authorizer, error) {
	query, err := rego.New(
		rego.Query(authzQuery),
		rego.Module("authz.rego", authzPolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &Authorizer{query: query}, nil
}

func (a *Authorizer) Allow(ctx context.Context, req AccessRequest) (bool, error) {
	rs, err := a.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"method":  req.Method,
		"path":    req.Path,
		"user_id": req.UserID,
		"admin":   req.Admin,
	}))
	if err != nil {
		return false, fmt.Errorf("evaluate policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}
