package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/ghuser/relay/pkg/svcerr"
)

// Policy is the access-policy hook spec.md treats as an external
// collaborator: a function an RPC/validated-RPC handler calls before doing
// its own work, mapping the ambient auth state on ctx to an
// AuthenticationError/AuthorizationError pair the kernel's error taxonomy
// already understands.
type Policy func(ctx context.Context) error

// RequireOrgID is the default Policy: it requires WithOrgID to have been
// set on ctx (by the HTTP session middleware, or explicitly by a
// service-to-service caller) and returns a svcerr.KindAuthentication error
// otherwise.
func RequireOrgID(ctx context.Context) error {
	if _, err := OrgIDFromCtx(ctx); err != nil {
		return svcerr.NewAuthenticationError(err.Error())
	}
	return nil
}

// RequireOrgIDMatches returns a Policy that additionally checks the
// authenticated org against want, returning a
// svcerr.KindAuthorization error on mismatch.
func RequireOrgIDMatches(want uuid.UUID) Policy {
	return func(ctx context.Context) error {
		orgID, err := OrgIDFromCtx(ctx)
		if err != nil {
			return svcerr.NewAuthenticationError(err.Error())
		}
		if orgID != want {
			return svcerr.NewAuthorizationError("org " + orgID.String() + " may not act on behalf of " + want.String())
		}
		return nil
	}
}
