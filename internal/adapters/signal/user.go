package signal

import "encoding/json"

type WhoAmI struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Room     string `json:"room,omitempty"`
	RoomName string `json:"room_name,omitempty"`
}

func (c *Client) WhoAmI() error {
	return c.SendJSON(map[string]any{"type": "whoami"})
}

func DecodeWhoAmI(data []byte) (WhoAmI, error) {
	var w WhoAmI
	err := json.Unmarshal(data, &w)
	return w, err
}
