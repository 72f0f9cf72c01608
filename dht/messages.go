package dht

// Request/response payload shapes carried inside the transport envelope.
// Payloads are JSON either way; the envelope framing is what the codec
// selection in config switches between.

type storeRequest struct {
	Entry Entry `json:"entry"`
}

type storeResponse struct {
	Ok  bool   `json:"ok"`
	Err string `json:"err"`
}

type findRequest struct {
	Key string `json:"key"`
}

type findResponse struct {
	Ok    bool   `json:"ok"`
	Entry *Entry `json:"entry"`
	Err   string `json:"err"`
}

type pingRequest struct{}

type pingResponse struct {
	Ok bool `json:"ok"`
}

type joinRequest struct {
	NodeID  string   `json:"node_id"`
	Anchors []uint64 `json:"anchors"`
	Addr    string   `json:"addr"`
}

type joinResponse struct {
	Ok      bool     `json:"ok"`
	NodeID  string   `json:"node_id"`
	Anchors []uint64 `json:"anchors"`
	Addr    string   `json:"addr"`
	Err     string   `json:"err"`
}

type leaveNotice struct {
	NodeID string `json:"node_id"`
}
