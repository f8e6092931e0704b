package api

// PeerStatusInfo is the JSON shape of GET /api/v1/status.
type PeerStatusInfo struct {
	PeerKey        string `json:"peerKey"`
	BeliefHash     string `json:"beliefHash"`
	ConsensusPoint int64  `json:"consensusPoint"`
	ProposalPoint  int64  `json:"proposalPoint"`
	TotalFunds     int64  `json:"totalFunds"`
}

// OrderInfo is the JSON shape of one peer's Order entry, returned from
// GET /api/v1/orders/{peerKey}.
type OrderInfo struct {
	PeerKey        string `json:"peerKey"`
	BlockCount     int    `json:"blockCount"`
	ProposalPoint  int64  `json:"proposalPoint"`
	ConsensusPoint int64  `json:"consensusPoint"`
	Timestamp      int64  `json:"timestamp"`
}

// AccountInfo is the JSON shape of GET /api/v1/accounts/{key}.
type AccountInfo struct {
	Key      string `json:"key"`
	Balance  int64  `json:"balance"`
	Sequence int64  `json:"sequence"`
}

// SubmitTxRequest is the JSON body of POST /api/v1/transact: the raw
// canonical encoding of a SignedData envelope wrapping a Transfer.
type SubmitTxRequest struct {
	SignedTxHex string `json:"signedTxHex"`
}

// SubmitTxResponse is the JSON reply to a successful POST /api/v1/transact.
type SubmitTxResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the JSON shape of any non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ConsensusAdvancedEvent is broadcast over the websocket feed every time a
// peer's consensusPoint advances.
type ConsensusAdvancedEvent struct {
	Type               string `json:"type"`
	PeerKey            string `json:"peerKey"`
	PrevConsensusPoint int64  `json:"prevConsensusPoint"`
	NewConsensusPoint  int64  `json:"newConsensusPoint"`
	Timestamp          int64  `json:"timestamp"`
}

// WSSubscribeRequest is an inbound websocket control message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}
