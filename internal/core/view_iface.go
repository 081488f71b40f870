package core

// Option is one <option> of a select list.
type Option struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// View is the page the controller drives. Element ids are unique.
type View interface {
	Show(id string) error
	Hide(id string) error
	AppendOptions(selectID string, opts []Option) error
	ClearOptions(selectID string) error
	AppendMedia(containerID, id string, kind TrackType) (MediaElement, error)
	// RemoveElement is a no-op for unknown ids.
	RemoveElement(id string)
}
