package cookie

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/storefront/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func TestStoreJar_SetGet(t *testing.T) {
	st := mocks.NewMockStore()
	jar := NewStoreJarWithClock(st, func() time.Time { return testNow })
	ctx := context.Background()

	err := jar.Set(ctx, Cookie{Name: "token", Value: "abc", Expires: testNow.Add(time.Hour)})
	require.NoError(t, err)

	c, ok, err := jar.Get(ctx, "token")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", c.Value)
	assert.Equal(t, "/", c.Path, "path defaults to root")
	assert.True(t, c.Expires.Equal(testNow.Add(time.Hour)))

	call, ok := st.LastSet()
	require.True(t, ok)
	assert.Equal(t, "cookie:token", call.Key)
	assert.True(t, call.ExpiresAt.Equal(testNow.Add(time.Hour)))
}

func TestStoreJar_Get_Expired(t *testing.T) {
	st := mocks.NewMockStore()
	now := testNow
	jar := NewStoreJarWithClock(st, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, jar.Set(ctx, Cookie{Name: "token", Value: "abc", Expires: testNow.Add(time.Hour)}))

	now = testNow.Add(time.Hour)
	_, ok, err := jar.Get(ctx, "token")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreJar_Get_Missing(t *testing.T) {
	jar := NewStoreJar(mocks.NewMockStore())

	_, ok, err := jar.Get(context.Background(), "token")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreJar_Get_Corrupt(t *testing.T) {
	st := mocks.NewMockStore()
	st.Put("cookie:token", []byte("{not json"), time.Time{})
	jar := NewStoreJar(st)

	_, ok, err := jar.Get(context.Background(), "token")

	assert.Error(t, err)
	assert.False(t, ok)
}

func TestStoreJar_Remove(t *testing.T) {
	st := mocks.NewMockStore()
	jar := NewStoreJar(st)
	ctx := context.Background()

	require.NoError(t, jar.Set(ctx, Cookie{Name: "token", Value: "abc"}))
	require.NoError(t, jar.Remove(ctx, "token"))

	_, ok, err := jar.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"cookie:token"}, st.DeleteCalls)
}

func TestStoreJar_EmptyName(t *testing.T) {
	jar := NewStoreJar(mocks.NewMockStore())
	ctx := context.Background()

	assert.ErrorIs(t, jar.Set(ctx, Cookie{Value: "x"}), ErrEmptyName)
	assert.ErrorIs(t, jar.Remove(ctx, ""), ErrEmptyName)
	_, _, err := jar.Get(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestStoreJar_StoreErrors(t *testing.T) {
	st := mocks.NewMockStore()
	jar := NewStoreJar(st)
	ctx := context.Background()
	boom := errors.New("disk full")

	st.SetErr = boom
	assert.ErrorIs(t, jar.Set(ctx, Cookie{Name: "token"}), boom)

	st.GetErr = boom
	_, _, err := jar.Get(ctx, "token")
	assert.ErrorIs(t, err, boom)
}

func TestCookie_Expired(t *testing.T) {
	assert.False(t, Cookie{}.Expired(testNow), "session cookie never expires")
	assert.False(t, Cookie{Expires: testNow.Add(time.Second)}.Expired(testNow))
	assert.True(t, Cookie{Expires: testNow}.Expired(testNow))
}
