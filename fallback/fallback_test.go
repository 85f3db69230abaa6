package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/types"
)

func testCreds(n int) []Credential {
	creds := make([]Credential, n)
	for i := range creds {
		creds[i] = Credential{Label: string(rune('a' + i)), Secret: "sk-" + string(rune('a'+i))}
	}
	return creds
}

func TestRun_NoCredentials(t *testing.T) {
	called := false
	_, err := Run(context.Background(), zap.NewNop(), nil,
		func(ctx context.Context, cred Credential) (string, error) {
			called = true
			return "", nil
		})

	require.Error(t, err)
	assert.Equal(t, types.ErrNoCredentials, types.GetErrorCode(err))
	assert.False(t, called)
}

func TestRun_FirstSucceeds(t *testing.T) {
	attempts := 0
	result, err := Run(context.Background(), zap.NewNop(), testCreds(3),
		func(ctx context.Context, cred Credential) (string, error) {
			attempts++
			return "ok:" + cred.Label, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok:a", result)
	assert.Equal(t, 1, attempts)
}

func TestRun_ShortCircuit(t *testing.T) {
	var tried []string
	result, err := Run(context.Background(), zap.NewNop(), testCreds(3),
		func(ctx context.Context, cred Credential) (string, error) {
			tried = append(tried, cred.Label)
			if cred.Label == "b" {
				return "ok:b", nil
			}
			return "", types.NewError(types.ErrRateLimited, "quota exceeded")
		})

	require.NoError(t, err)
	assert.Equal(t, "ok:b", result)
	assert.Equal(t, []string{"a", "b"}, tried)
}

func TestRun_Exhaustion(t *testing.T) {
	var tried []string
	cause := errors.New("connect refused")
	_, err := Run(context.Background(), zap.NewNop(), testCreds(3),
		func(ctx context.Context, cred Credential) (string, error) {
			tried = append(tried, cred.Label)
			return "", cause
		})

	require.Error(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tried)
	assert.Equal(t, types.ErrProviderExhausted, types.GetErrorCode(err))
	assert.ErrorIs(t, err, cause)

	var structured *types.Error
	require.ErrorAs(t, err, &structured)
	assert.Equal(t, "c", structured.Provider)
}

func TestRun_PanicCountsAsFailure(t *testing.T) {
	result, err := Run(context.Background(), zap.NewNop(), testCreds(2),
		func(ctx context.Context, cred Credential) (int, error) {
			if cred.Label == "a" {
				panic("bad key format")
			}
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestRun_AllPanic(t *testing.T) {
	_, err := Run(context.Background(), zap.NewNop(), testCreds(2),
		func(ctx context.Context, cred Credential) (int, error) {
			panic("boom")
		})

	require.Error(t, err)
	assert.Equal(t, types.ErrProviderExhausted, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "boom")
}
