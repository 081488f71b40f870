package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeOfKind(t *testing.T) {
	cases := map[string]DeviceType{
		"videoinput":  DeviceVideo,
		"audiooutput": DeviceSpeaker,
		"audioinput":  DeviceAudio,
		"":            DeviceAudio,
		"weird":       DeviceAudio,
	}
	for kind, want := range cases {
		assert.Equal(t, want, TypeOfKind(kind), "kind %q", kind)
	}
}

func TestCatalogAdd(t *testing.T) {
	c := NewCatalog()
	c.Add(Device{DeviceID: "v1", Type: DeviceVideo})
	c.Add(Device{DeviceID: "s1", Type: DeviceSpeaker})
	c.Add(Device{DeviceID: "a1", Type: DeviceAudio})

	assert.Equal(t, "v1", c.Video[0].DeviceID)
	assert.Equal(t, "s1", c.Speaker[0].DeviceID)
	assert.Equal(t, "a1", c.Audio[0].DeviceID)
}

func TestSelectedDevicesSet(t *testing.T) {
	var s SelectedDevices
	assert.True(t, s.Set(DeviceAudio, "a1"))
	assert.True(t, s.Set(DeviceVideo, "v1"))
	assert.False(t, s.Set(DeviceSpeaker, "s1"))
	assert.Equal(t, SelectedDevices{AudioID: "a1", VideoID: "v1"}, s)
}

func TestSessionConfig(t *testing.T) {
	_, err := NewSessionConfig("", "", "")
	assert.ErrorIs(t, err, ErrDomainEmpty)

	cfg, err := NewSessionConfig("meet.example.org", "app", "jwt")
	require.NoError(t, err)

	_, err = cfg.WithRoom("")
	assert.ErrorIs(t, err, ErrRoomIDEmpty)

	// Only emptiness is rejected; the server owns any other naming rules.
	long := strings.Repeat("x", 200)
	bound, err := cfg.WithRoom(long)
	require.NoError(t, err)
	assert.Equal(t, long, bound.RoomID)

	bound, err = cfg.WithRoom("standup")
	require.NoError(t, err)
	assert.Empty(t, cfg.RoomID, "WithRoom must not mutate the receiver")
	assert.Equal(t, "wss://meet.example.org/api/ws/signal?room=standup", bound.ServiceURL(""))
	assert.Equal(t, "https://meet.example.org/http-bind?room=standup",
		bound.ServiceURL("https://{domain}/http-bind?room={roomId}"))

	spaced, err := cfg.WithRoom("team sync&1")
	require.NoError(t, err)
	assert.Equal(t, "wss://meet.example.org/api/ws/signal?room=team+sync%261", spaced.ServiceURL(""))
	assert.Equal(t, Hosts{
		Domain: "meet.example.org",
		MUC:    "conference.meet.example.org",
		Focus:  "focus.meet.example.org",
	}, bound.Hosts())
}
