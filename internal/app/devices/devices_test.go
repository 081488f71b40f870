package devices

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Meet/internal/adapters/storage"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct{ stopped int }

func (s *fakeStream) Stop() { s.stopped++ }

// fakeMediaDevices hands out unlabeled devices until capture was granted.
type fakeMediaDevices struct {
	devices []core.RawDevice
	granted bool
	stream  *fakeStream
	asked   []core.CaptureConstraints

	enumErrAfterGrant error
	captureErr        error
}

func (m *fakeMediaDevices) EnumerateDevices(context.Context) ([]core.RawDevice, error) {
	if m.granted && m.enumErrAfterGrant != nil {
		return nil, m.enumErrAfterGrant
	}
	out := make([]core.RawDevice, len(m.devices))
	for i, d := range m.devices {
		out[i] = d
		if !m.granted {
			out[i].Label = ""
		}
	}
	return out, nil
}

func (m *fakeMediaDevices) GetUserMedia(_ context.Context, c core.CaptureConstraints) (core.CaptureStream, error) {
	m.asked = append(m.asked, c)
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	m.granted = true
	m.stream = &fakeStream{}
	return m.stream, nil
}

func ids(list []domain.Device) []string {
	out := make([]string, 0, len(list))
	for _, d := range list {
		out = append(out, d.DeviceID)
	}
	return out
}

func TestBuildCatalogScenario(t *testing.T) {
	md := &fakeMediaDevices{devices: []core.RawDevice{
		{Kind: "videoinput", DeviceID: "v1", Label: "Cam"},
		{Kind: "audiooutput", DeviceID: "s1", Label: "Speakers"},
		{Kind: "audioinput", DeviceID: "a1", Label: "Mic"},
	}}

	c, err := BuildCatalog(context.Background(), md)
	require.NoError(t, err)

	assert.Equal(t, []string{"v1"}, ids(c.Video))
	assert.Equal(t, []string{"a1"}, ids(c.Audio))
	assert.Equal(t, []string{"s1"}, ids(c.Speaker))
	assert.Equal(t, "Cam", c.Video[0].Label, "labels come from the post-grant enumeration")
	assert.Equal(t, domain.DeviceSpeaker, c.Speaker[0].Type)
	assert.Equal(t, []core.CaptureConstraints{{Audio: true, Video: true}}, md.asked)
	assert.Equal(t, 1, md.stream.stopped)
}

func TestBuildCatalogCaptureDenied(t *testing.T) {
	denied := errors.New("NotAllowedError")
	md := &fakeMediaDevices{
		devices:    []core.RawDevice{{Kind: "audioinput", DeviceID: "a1"}},
		captureErr: denied,
	}
	c, err := BuildCatalog(context.Background(), md)
	assert.ErrorIs(t, err, ErrDeviceAccess)
	assert.ErrorIs(t, err, denied)
	assert.Empty(t, c.Audio, "no partial result")
}

func TestBuildCatalogSecondEnumerationFails(t *testing.T) {
	md := &fakeMediaDevices{
		devices:           []core.RawDevice{{Kind: "videoinput", DeviceID: "v1"}},
		enumErrAfterGrant: errors.New("gone"),
	}
	_, err := BuildCatalog(context.Background(), md)
	assert.ErrorIs(t, err, ErrDeviceAccess)
	require.NotNil(t, md.stream)
	assert.Equal(t, 1, md.stream.stopped, "capture released on failure")
}

func TestBuildCatalogOutputsOnly(t *testing.T) {
	md := &fakeMediaDevices{devices: []core.RawDevice{{Kind: "audiooutput", DeviceID: "s1"}}}
	c, err := BuildCatalog(context.Background(), md)
	require.NoError(t, err)
	assert.Empty(t, md.asked, "no capture is requested without inputs")
	assert.Equal(t, []string{"s1"}, ids(c.Speaker))
	assert.Empty(t, c.Audio)
	assert.Empty(t, c.Video)
}

func TestConstraintsFor(t *testing.T) {
	assert.Equal(t, core.CaptureConstraints{Audio: true},
		ConstraintsFor([]core.RawDevice{{Kind: "audioinput"}, {Kind: "audiooutput"}}))
	assert.Equal(t, core.CaptureConstraints{Video: true},
		ConstraintsFor([]core.RawDevice{{Kind: "videoinput"}}))
	assert.True(t, ConstraintsFor(nil).Empty())
}

func TestClassify(t *testing.T) {
	c := Classify([]core.RawDevice{
		{Kind: "videoinput", DeviceID: "v1"},
		{Kind: "bogus", DeviceID: "x"},
		{Kind: "audiooutput", DeviceID: "s1"},
		{Kind: "audioinput", DeviceID: "a1"},
	})
	assert.Equal(t, []string{"v1"}, ids(c.Video))
	assert.Equal(t, []string{"x", "a1"}, ids(c.Audio))
	assert.Equal(t, []string{"s1"}, ids(c.Speaker))
}

func newPrefs(t *testing.T, fs afero.Fs) *Preferences {
	t.Helper()
	s, err := storage.Open(fs, "devices.json")
	require.NoError(t, err)
	return NewPreferences(s)
}

func TestFindDefault(t *testing.T) {
	list := []domain.Device{
		{DeviceID: "first"},
		{DeviceID: "default"},
		{DeviceID: "saved"},
	}

	cases := []struct {
		name  string
		saved string
		list  []domain.Device
		want  string
		found bool
	}{
		{name: "saved wins", saved: "saved", list: list, want: "saved", found: true},
		{name: "default marker", list: list, want: "default", found: true},
		{name: "stale saved id", saved: "unplugged", list: list, want: "default", found: true},
		{name: "first element", list: []domain.Device{{DeviceID: "a"}, {DeviceID: "b"}}, want: "a", found: true},
		{name: "empty list", saved: "saved", list: []domain.Device{}, found: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newPrefs(t, afero.NewMemMapFs())
			require.NoError(t, p.SaveID(tc.saved, domain.DeviceAudio))

			got, ok := p.FindDefault(tc.list, domain.DeviceAudio)
			assert.Equal(t, tc.found, ok)
			assert.Equal(t, tc.want, got.DeviceID)
		})
	}
}

func TestFindDefaultIsPerType(t *testing.T) {
	p := newPrefs(t, afero.NewMemMapFs())
	require.NoError(t, p.SaveID("cam2", domain.DeviceVideo))
	list := []domain.Device{{DeviceID: "cam1"}, {DeviceID: "cam2"}}

	got, _ := p.FindDefault(list, domain.DeviceAudio)
	assert.Equal(t, "cam1", got.DeviceID)
	got, _ = p.FindDefault(list, domain.DeviceVideo)
	assert.Equal(t, "cam2", got.DeviceID)
}

func TestSaveIDSurvivesReload(t *testing.T) {
	fs := afero.NewMemMapFs()
	list := []domain.Device{{DeviceID: "default"}, {DeviceID: "usb-mic"}}

	require.NoError(t, newPrefs(t, fs).SaveID("usb-mic", domain.DeviceAudio))
	got, ok := newPrefs(t, fs).FindDefault(list, domain.DeviceAudio)
	require.True(t, ok)
	assert.Equal(t, "usb-mic", got.DeviceID)

	require.NoError(t, newPrefs(t, fs).SaveID("", domain.DeviceAudio))
	reloaded := newPrefs(t, fs)
	got, _ = reloaded.FindDefault(list, domain.DeviceAudio)
	assert.Equal(t, "default", got.DeviceID)

	s, err := storage.Open(fs, "devices.json")
	require.NoError(t, err)
	_, present := s.Get(StorageKey(domain.DeviceAudio))
	assert.False(t, present)
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "saveDeviceId_audio", StorageKey(domain.DeviceAudio))
	assert.Equal(t, "saveDeviceId_video", StorageKey(domain.DeviceVideo))
}
