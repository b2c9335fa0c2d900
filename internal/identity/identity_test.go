package identity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/agentdesk/internal/query"
	"github.com/you/agentdesk/internal/store"
)

// contacts emulates LOWER(email) = LOWER($1) over a fixed table.
type contacts struct {
	rows  map[string]string
	calls int
	err   error
}

func (c *contacts) Query(_ context.Context, st query.Statement) (*store.ResultSet, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	rs := &store.ResultSet{Columns: []string{"cif"}}
	want := strings.ToLower(st.Args[0].(string))
	for email, cif := range c.rows {
		if strings.ToLower(email) == want {
			rs.Rows = append(rs.Rows, []any{cif})
		}
	}
	return rs, nil
}

func TestDelegatedCaseInsensitive(t *testing.T) {
	src := &contacts{rows: map[string]string{"Ana@Inmo.es": "B11111111"}}
	d := Delegated{Source: src}

	for _, id := range []string{"ana@inmo.es", "ANA@INMO.ES", "  Ana@Inmo.es "} {
		key, err := d.Authorize(context.Background(), Caller{Email: id})
		require.NoError(t, err, id)
		assert.Equal(t, "B11111111", key)
	}
	assert.Equal(t, 3, src.calls, "every call re-resolves")
}

func TestDelegatedUnknownIsDenied(t *testing.T) {
	d := Delegated{Source: &contacts{rows: map[string]string{"ana@inmo.es": "B1"}}}

	_, errUpper := d.Authorize(context.Background(), Caller{Email: "X@Y.com"})
	_, errLower := d.Authorize(context.Background(), Caller{Email: "x@y.com"})
	require.ErrorIs(t, errUpper, ErrAccessDenied)
	require.ErrorIs(t, errLower, ErrAccessDenied)
	assert.Equal(t, errUpper.Error(), errLower.Error())
	assert.Contains(t, errLower.Error(), "ACCESO DENEGADO")
}

func TestDelegatedEmptyIdentity(t *testing.T) {
	src := &contacts{}
	_, err := Delegated{Source: src}.Authorize(context.Background(), Caller{Email: "  "})
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, 0, src.calls)
}

func TestDelegatedPropagatesStoreErrors(t *testing.T) {
	boom := errors.Join(store.ErrConnectivity, errors.New("dial tcp: refused"))
	_, err := Delegated{Source: &contacts{err: boom}}.Authorize(context.Background(), Caller{Email: "a@b.c"})
	assert.ErrorIs(t, err, store.ErrConnectivity)
	assert.NotErrorIs(t, err, ErrAccessDenied)
}

func TestDelegatedIgnoresExplicitKey(t *testing.T) {
	d := Delegated{Source: &contacts{rows: map[string]string{"ana@inmo.es": "B1"}}}
	_, err := d.Authorize(context.Background(), Caller{Email: "intruso@x.com", Key: "B1"})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestTrusted(t *testing.T) {
	key, err := Trusted{Key: "B99"}.Authorize(context.Background(), Caller{Email: "anyone@else.com"})
	require.NoError(t, err)
	assert.Equal(t, "B99", key)

	key, err = Trusted{Key: "B99"}.Authorize(context.Background(), Caller{Key: " B42 "})
	require.NoError(t, err)
	assert.Equal(t, "B42", key)

	_, err = Trusted{}.Authorize(context.Background(), Caller{})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestNew(t *testing.T) {
	a, err := New(ModeTrusted, "B1", nil)
	require.NoError(t, err)
	assert.Equal(t, ModeTrusted, a.Mode())

	a, err = New(ModeDelegated, "", &contacts{})
	require.NoError(t, err)
	assert.Equal(t, ModeDelegated, a.Mode())

	_, err = New("open", "", nil)
	assert.Error(t, err)
}
