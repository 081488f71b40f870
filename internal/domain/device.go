package domain

type DeviceType string

const (
	DeviceVideo   DeviceType = "video"
	DeviceAudio   DeviceType = "audio"
	DeviceSpeaker DeviceType = "speaker"
)

// Raw kinds as reported by device enumeration.
const (
	KindVideoInput  = "videoinput"
	KindAudioInput  = "audioinput"
	KindAudioOutput = "audiooutput"
)

// DefaultDeviceID is the id platforms use for the system default device.
const DefaultDeviceID = "default"

type Device struct {
	DeviceID string     `json:"deviceId"`
	Label    string     `json:"label"`
	Kind     string     `json:"kind"`
	Type     DeviceType `json:"type"`
}

// TypeOfKind buckets a raw kind. Anything unknown counts as audio.
func TypeOfKind(kind string) DeviceType {
	switch kind {
	case KindVideoInput:
		return DeviceVideo
	case KindAudioOutput:
		return DeviceSpeaker
	default:
		return DeviceAudio
	}
}

// Catalog holds classified devices in enumeration order.
type Catalog struct {
	Video   []Device `json:"video"`
	Audio   []Device `json:"audio"`
	Speaker []Device `json:"speaker"`
}

func NewCatalog() Catalog {
	return Catalog{
		Video:   []Device{},
		Audio:   []Device{},
		Speaker: []Device{},
	}
}

func (c *Catalog) Add(d Device) {
	switch d.Type {
	case DeviceVideo:
		c.Video = append(c.Video, d)
	case DeviceSpeaker:
		c.Speaker = append(c.Speaker, d)
	default:
		c.Audio = append(c.Audio, d)
	}
}

// SelectedDevices is the per-session device choice.
type SelectedDevices struct {
	AudioID string `json:"audioId"`
	VideoID string `json:"videoId"`
}

// Set records id for t. Speakers are not selectable.
func (s *SelectedDevices) Set(t DeviceType, id string) bool {
	switch t {
	case DeviceAudio:
		s.AudioID = id
	case DeviceVideo:
		s.VideoID = id
	default:
		return false
	}
	return true
}
