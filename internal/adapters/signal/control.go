package signal

func (c *Client) Ping() error {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "ping",
	}
	return c.SendJSON(resp)
}
