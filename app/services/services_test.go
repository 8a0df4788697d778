package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestCredentialSealer(t *testing.T) {
	sealer, err := NewCredentialSealer(testSecretKey)
	require.NoError(t, err)

	sealed, err := sealer.Seal("api-key-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "sb1:"))
	assert.NotContains(t, sealed, "api-key-1")

	plain, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "api-key-1", plain)

	t.Run("legacy plain value", func(t *testing.T) {
		plain, err := sealer.Open("legacy")
		require.NoError(t, err)
		assert.Equal(t, "legacy", plain)
	})

	t.Run("tampered token", func(t *testing.T) {
		flipped := byte('A')
		if sealed[10] == 'A' {
			flipped = 'B'
		}
		_, err := sealer.Open(sealed[:10] + string(flipped) + sealed[11:])
		assert.ErrorIs(t, err, ErrUnsealFailed)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewCredentialSealer(strings.Repeat("ff", 32))
		require.NoError(t, err)
		_, err = other.Open(sealed)
		assert.ErrorIs(t, err, ErrUnsealFailed)
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := NewCredentialSealer("abcd")
		assert.Error(t, err)
	})
}

func TestVoiceResponse(t *testing.T) {
	t.Run("gather wraps playback", func(t *testing.T) {
		resp := NewVoiceResponse().
			Pause(2).
			Gather(GatherOptions{Action: "https://api.test/gather", NumDigits: 1, Timeout: 10}, func(inner *VoiceResponse) {
				inner.Play("https://cdn.test/a.mp3").Pause(3)
			})
		assert.Equal(t, 2, resp.Len())

		xml, err := resp.Render()
		require.NoError(t, err)
		assert.Contains(t, xml, "<Response>")
		assert.Contains(t, xml, "<Gather")
		assert.Contains(t, xml, `numDigits="1"`)
		assert.Contains(t, xml, "https://cdn.test/a.mp3")
		assert.Less(t, strings.Index(xml, "<Gather"), strings.Index(xml, "<Play"))
	})

	t.Run("dial bridges number", func(t *testing.T) {
		xml, err := NewVoiceResponse().
			Play("https://cdn.test/transfer.mp3").
			Dial(DialOptions{Action: "https://api.test/dial-callback", CallerID: "+15550001111"}, "+15559998888").
			Render()
		require.NoError(t, err)
		assert.Contains(t, xml, "<Dial")
		assert.Contains(t, xml, "+15559998888")
	})

	t.Run("say and hangup", func(t *testing.T) {
		xml, err := NewVoiceResponse().Say("Sorry, there is not available number").Hangup().Render()
		require.NoError(t, err)
		assert.Contains(t, xml, "Sorry, there is not available number")
		assert.Contains(t, xml, "<Hangup")
	})

	t.Run("messaging reply", func(t *testing.T) {
		xml, err := MessagingReply("thanks")
		require.NoError(t, err)
		assert.Contains(t, xml, "thanks")

		empty, err := MessagingReply("")
		require.NoError(t, err)
		assert.NotContains(t, empty, "<Message")
	})
}

func TestRedisReservationStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	store := NewRedisReservationStore(rc, "test:", 45*time.Second)
	ctx := context.Background()

	ok, err := store.Reserve(ctx, 7, "CA1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Reserve(ctx, 7, "CA2")
	require.NoError(t, err)
	assert.False(t, ok, "second call must not take a held destination")

	holder, err := mr.Get("test:transfer:reservation:7")
	require.NoError(t, err)
	assert.Equal(t, "CA1", holder)

	mr.FastForward(46 * time.Second)
	ok, err = store.Reserve(ctx, 7, "CA3")
	require.NoError(t, err)
	assert.True(t, ok, "reservation expires after ttl")

	require.NoError(t, store.Release(ctx, 7))
	ok, err = store.Reserve(ctx, 7, "CA4")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMockTelephonyClient(t *testing.T) {
	m := NewMockTelephonyClient()
	sid, err := m.PlaceCall(context.Background(), CallRequest{From: "+1", To: "+2"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sid, "CA"))

	res, err := m.SendSMS(context.Background(), SMSRequest{From: "+1", To: "+2", Body: "hi"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.SID, "SM"))
	assert.Len(t, m.Calls, 1)
	assert.Len(t, m.Texts, 1)

	lineType, err := m.LookupLineType(context.Background(), "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, LineTypeMobile, lineType)
	m.LineTypes = map[string]string{"+15550002222": LineTypeLandline}
	lineType, err = m.LookupLineType(context.Background(), "+15550002222")
	require.NoError(t, err)
	assert.Equal(t, LineTypeLandline, lineType)

	m.Err = errors.New("down")
	_, err = m.PlaceCall(context.Background(), CallRequest{})
	assert.Error(t, err)
	_, err = m.LookupLineType(context.Background(), "+15550002222")
	assert.Error(t, err)
}

func TestNewErrorReporter(t *testing.T) {
	_, ok := NewErrorReporter("").(NoopReporter)
	assert.True(t, ok)
	_, ok = NewErrorReporter("https://key@sentry.test/1").(SentryReporter)
	assert.True(t, ok)
}
