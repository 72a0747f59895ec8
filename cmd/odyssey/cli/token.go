package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/auth"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// TokenRequest describes the principal an operator token is minted for.
type TokenRequest struct {
	OrgID  string
	UserID string
	Role   string
}

// IssueToken signs an access token for operators and local testing.
func IssueToken(tokens *auth.Tokens, req TokenRequest) (string, error) {
	if tokens == nil {
		return "", errors.New("token cli: signer not configured")
	}
	orgID, err := uuid.Parse(req.OrgID)
	if err != nil {
		return "", fmt.Errorf("token cli: org id: %w", err)
	}
	userID := uuid.New()
	if req.UserID != "" {
		if userID, err = uuid.Parse(req.UserID); err != nil {
			return "", fmt.Errorf("token cli: user id: %w", err)
		}
	}
	role := req.Role
	if role == "" {
		role = shared.RoleUser
	}
	return tokens.Issue(shared.Principal{UserID: userID, OrgID: orgID, Role: role})
}
