package signal

import "encoding/json"

type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type RoomState struct {
	Type     string   `json:"type"`
	Room     string   `json:"room"`
	RoomName string   `json:"room_name,omitempty"`
	Members  []Member `json:"members"`
	Count    int      `json:"count"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type MemberEvent struct {
	Type string `json:"type"`
	User Member `json:"user"`
}

func (c *Client) Join(room, name string, p2p bool) error {
	req := struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Name string `json:"name,omitempty"`
		P2P  bool   `json:"p2p"`
	}{
		Type: "join",
		Room: room,
		Name: name,
		P2P:  p2p,
	}
	return c.SendJSON(req)
}

func (c *Client) Leave() error {
	return c.SendJSON(map[string]any{"type": "leave"})
}

func DecodeRoomState(data []byte) (RoomState, error) {
	var s RoomState
	err := json.Unmarshal(data, &s)
	return s, err
}

func DecodeError(data []byte) (ErrorMessage, error) {
	var e ErrorMessage
	err := json.Unmarshal(data, &e)
	return e, err
}

func DecodeMemberEvent(data []byte) (MemberEvent, error) {
	var e MemberEvent
	err := json.Unmarshal(data, &e)
	return e, err
}
