package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/poiesic/sharerag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExchanger struct {
	appCalls atomic.Int32
	oboCalls atomic.Int32
	err      error
}

func (f *fakeExchanger) AppToken(ctx context.Context) (string, error) {
	f.appCalls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "app-token", nil
}

func (f *fakeExchanger) OnBehalfOf(ctx context.Context, userToken string) (string, error) {
	f.oboCalls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "obo:" + userToken, nil
}

func makeJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	body, err := json.Marshal(claims)
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(body) + ".sig"
}

func TestForApp_ResolvesEagerly(t *testing.T) {
	ex := &fakeExchanger{}
	cc, err := ForApp(context.Background(), ex)
	require.NoError(t, err)
	assert.True(t, cc.IsApp())
	assert.Equal(t, int32(1), ex.appCalls.Load())

	resolver, err := NewResolver(ex, nil)
	require.NoError(t, err)
	token, err := resolver.Token(context.Background(), cc)
	require.NoError(t, err)
	assert.Equal(t, "app-token", token)
	assert.Equal(t, int32(0), ex.oboCalls.Load())
}

func TestForApp_ExchangeFailure(t *testing.T) {
	ex := &fakeExchanger{err: errors.New("bad secret")}
	_, err := ForApp(context.Background(), ex)
	assert.ErrorIs(t, err, core.ErrCredentialExchange)
}

func TestResolver_CachesUserExchange(t *testing.T) {
	ex := &fakeExchanger{}
	resolver, err := NewResolver(ex, nil)
	require.NoError(t, err)

	cc := ForUser("user-jwt")
	for i := 0; i < 3; i++ {
		token, err := resolver.Token(context.Background(), cc)
		require.NoError(t, err)
		assert.Equal(t, "obo:user-jwt", token)
	}
	assert.Equal(t, int32(1), ex.oboCalls.Load())
}

func TestResolver_ConcurrentCallersShareOneExchange(t *testing.T) {
	ex := &fakeExchanger{}
	resolver, err := NewResolver(ex, nil)
	require.NoError(t, err)

	cc := ForUser("user-jwt")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolver.Token(context.Background(), cc)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ex.oboCalls.Load())
}

func TestResolver_NoCredential(t *testing.T) {
	resolver, err := NewResolver(&fakeExchanger{}, nil)
	require.NoError(t, err)

	_, err = resolver.Token(context.Background(), &CallContext{})
	assert.ErrorIs(t, err, core.ErrCredentialExchange)
	assert.ErrorIs(t, err, ErrNoCredential)

	_, err = resolver.Token(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrCredentialExchange)
}

func TestCallContext_NilIsSafe(t *testing.T) {
	var cc *CallContext
	assert.Empty(t, cc.UserID())
	assert.False(t, cc.IsApp())
}

func TestResolver_ExchangeFailureIsNotCached(t *testing.T) {
	ex := &fakeExchanger{err: errors.New("denied")}
	resolver, err := NewResolver(ex, nil)
	require.NoError(t, err)

	cc := ForUser("user-jwt")
	_, err = resolver.Token(context.Background(), cc)
	assert.ErrorIs(t, err, core.ErrCredentialExchange)

	ex.err = nil
	token, err := resolver.Token(context.Background(), cc)
	require.NoError(t, err)
	assert.Equal(t, "obo:user-jwt", token)
}

func TestNewResolver_RequiresExchanger(t *testing.T) {
	_, err := NewResolver(nil, nil)
	assert.ErrorIs(t, err, ErrExchangerRequired)
}

func TestUserID(t *testing.T) {
	token := makeJWT(t, map[string]any{"oid": "1234-abcd", "name": "someone"})
	assert.Equal(t, "1234-abcd", UserID(token))
	assert.Equal(t, "1234-abcd", ForUser(token).UserID())

	assert.Equal(t, "", UserID("not-a-jwt"))
	assert.Equal(t, "", UserID("a.%%%.c"))
	assert.Equal(t, "", UserID(makeJWT(t, map[string]any{"sub": "x"})))
}

func TestEntraExchanger(t *testing.T) {
	var lastForm map[string]string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tenant-1/oauth2/v2.0/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		mu.Lock()
		lastForm = map[string]string{}
		for k := range r.PostForm {
			lastForm[k] = r.PostForm.Get(k)
		}
		mu.Unlock()

		token := "app"
		if r.PostForm.Get("grant_type") == jwtBearerGrant {
			token = "obo-" + r.PostForm.Get("assertion")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	ex, err := NewEntraExchanger(EntraConfig{
		TenantID:      "tenant-1",
		ClientID:      "client",
		ClientSecret:  "secret",
		AuthorityHost: server.URL,
	}, server.Client())
	require.NoError(t, err)

	t.Run("client credentials", func(t *testing.T) {
		token, err := ex.AppToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "app", token)
		assert.Equal(t, "client_credentials", lastForm["grant_type"])
		assert.Equal(t, GraphScope, lastForm["scope"])
		assert.Equal(t, "client", lastForm["client_id"])
	})

	t.Run("on behalf of", func(t *testing.T) {
		token, err := ex.OnBehalfOf(context.Background(), "user-jwt")
		require.NoError(t, err)
		assert.Equal(t, "obo-user-jwt", token)
		assert.Equal(t, jwtBearerGrant, lastForm["grant_type"])
		assert.Equal(t, "on_behalf_of", lastForm["requested_token_use"])
	})

	t.Run("token source for another resource", func(t *testing.T) {
		ts := ex.TokenSource(context.Background(), "https://search.azure.com/.default")
		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "app", tok.AccessToken)
		assert.Equal(t, "https://search.azure.com/.default", lastForm["scope"])
	})
}

func TestNewEntraExchanger_Validation(t *testing.T) {
	_, err := NewEntraExchanger(EntraConfig{TenantID: "t"}, nil)
	assert.ErrorIs(t, err, ErrInvalidEntraConfig)
}

func TestEntraConfig_TokenURL(t *testing.T) {
	cfg := EntraConfig{TenantID: "contoso"}
	assert.Equal(t, "https://login.microsoftonline.com/contoso/oauth2/v2.0/token", cfg.TokenURL())
}
