package presence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/heartline/internal/db"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/service/presence"
	tu "github.com/oggyb/heartline/internal/testutil"
)

func TestSetAndGetStatus(t *testing.T) {
	appCtx := tu.NewAppContext(t)
	svc := presence.NewPresenceService(appCtx)

	// unknown users read as offline
	st, err := svc.GetStatus(tu.As("u2"), &presence.GetStatusRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, st.IsOnline)

	sub := appCtx.Hub.Subscribe(realtime.Filter{Table: realtime.TableUserStatus, Column: "user_id", Value: "u1"})
	defer sub.Close()

	_, err = svc.SetStatus(tu.As("u1"), &presence.SetStatusRequest{IsOnline: true, IsTyping: true})
	require.NoError(t, err)

	c := <-sub.C()
	row, err := realtime.Decode[db.UserStatus](c)
	require.NoError(t, err)
	assert.True(t, row.IsOnline)
	assert.True(t, row.IsTyping)

	_, err = svc.SetStatus(tu.As("u1"), &presence.SetStatusRequest{IsOnline: false, IsTyping: true})
	require.NoError(t, err)

	st, err = svc.GetStatus(tu.As("u2"), &presence.GetStatusRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, st.IsOnline)
	// offline users are never typing
	assert.False(t, st.IsTyping)
	assert.False(t, st.LastSeen.IsZero())

	var n int64
	require.NoError(t, appCtx.DB.Model(&db.UserStatus{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
