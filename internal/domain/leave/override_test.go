package leave

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	secret map[string]string
	calls  int
	err    error
}

func (v *stubVerifier) Verify(_ context.Context, approverID, credential string) (bool, error) {
	v.calls++
	if v.err != nil {
		return false, v.err
	}
	return v.secret[approverID] == credential, nil
}

func TestOverrideAuthorizer(t *testing.T) {
	verifier := &stubVerifier{secret: map[string]string{"lead-1": "correct horse"}}
	authz := NewOverrideAuthorizer(verifier)
	ctx := context.Background()

	got, err := authz.Authorize(ctx, OverrideAttempt{ApproverID: "lead-1", Credential: "correct horse", LeaveID: "l1"})
	require.NoError(t, err)
	assert.True(t, got.Authorized)
	assert.Empty(t, got.Reason)

	got, err = authz.Authorize(ctx, OverrideAttempt{ApproverID: "lead-1", Credential: "wrong", LeaveID: "l1"})
	require.NoError(t, err)
	assert.False(t, got.Authorized)
	assert.Equal(t, ReasonInvalidCredential, got.Reason)

	calls := verifier.calls
	got, _ = authz.Authorize(ctx, OverrideAttempt{ApproverID: "lead-1", LeaveID: "l1"})
	assert.False(t, got.Authorized)
	assert.Equal(t, calls, verifier.calls, "empty credential must be denied without verification")
}

func TestOverrideAuthorizerErrors(t *testing.T) {
	ctx := context.Background()
	attempt := OverrideAttempt{ApproverID: "lead-1", Credential: "x"}

	_, err := (&OverrideAuthorizer{}).Authorize(ctx, attempt)
	assert.Error(t, err)

	boom := errors.New("db down")
	got, err := NewOverrideAuthorizer(&stubVerifier{err: boom}).Authorize(ctx, attempt)
	assert.ErrorIs(t, err, boom)
	assert.False(t, got.Authorized)
}
