package signal

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

func (c *Client) SendOffer(sdp string) error {
	return c.SendJSON(map[string]string{
		"type": "offer",
		"sdp":  sdp,
	})
}

func (c *Client) SendCandidate(ci webrtc.ICECandidateInit) error {
	resp := struct {
		Type          string `json:"type"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid,omitempty"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
	}{
		Type:      "candidate",
		Candidate: ci.Candidate,
	}
	if ci.SDPMid != nil {
		resp.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		resp.SDPMLineIndex = *ci.SDPMLineIndex
	}
	return c.SendJSON(resp)
}

func DecodeAnswer(data []byte) (webrtc.SessionDescription, error) {
	var p struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP}, nil
}

func DecodeCandidate(data []byte) (webrtc.ICECandidateInit, error) {
	var p struct {
		Type          string `json:"type"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return webrtc.ICECandidateInit{}, err
	}
	cand := webrtc.ICECandidateInit{
		Candidate: p.Candidate,
	}
	if p.SDPMid != "" {
		cand.SDPMid = &p.SDPMid
	}
	cand.SDPMLineIndex = &p.SDPMLineIndex
	return cand, nil
}
