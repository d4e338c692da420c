package leave

import (
	"context"
	"errors"
	"strings"
)

type OverrideReason string

const ReasonInvalidCredential OverrideReason = "invalid_credential"

type OverrideDecision struct {
	Authorized bool           `json:"authorized"`
	Reason     OverrideReason `json:"reason,omitempty"`
}

// CredentialVerifier checks a re-entered credential against the approver's
// stored one using the login hashing scheme.
type CredentialVerifier interface {
	Verify(ctx context.Context, approverID, credential string) (bool, error)
}

type OverrideAuthorizer struct {
	Verifier CredentialVerifier
}

func NewOverrideAuthorizer(verifier CredentialVerifier) *OverrideAuthorizer {
	return &OverrideAuthorizer{Verifier: verifier}
}

// Authorize never reports which leaves caused the conflict.
func (a *OverrideAuthorizer) Authorize(ctx context.Context, attempt OverrideAttempt) (OverrideDecision, error) {
	denied := OverrideDecision{Authorized: false, Reason: ReasonInvalidCredential}
	if a == nil || a.Verifier == nil {
		return denied, errors.New("override verifier not configured")
	}
	if strings.TrimSpace(attempt.ApproverID) == "" || attempt.Credential == "" {
		return denied, nil
	}

	ok, err := a.Verifier.Verify(ctx, attempt.ApproverID, attempt.Credential)
	if err != nil {
		return denied, err
	}
	if !ok {
		return denied, nil
	}
	return OverrideDecision{Authorized: true}, nil
}
