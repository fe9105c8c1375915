package stream

// TransactionNotification is a transaction delivered by the stream
// subscription.
type TransactionNotification struct {
	Signature   string
	Slot        int64
	BlockTimeMs int64 // Unix milliseconds; 0 when the provider omits it
	Logs        []string
	AccountKeys []string
	Err         interface{} // non-nil for failed transactions
}

// JSON-RPC message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext         `json:"context"`
	Value   wsTransactionValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsTransactionValue struct {
	Signature   string      `json:"signature"`
	BlockTime   int64       `json:"blockTime"`
	Logs        []string    `json:"logs"`
	AccountKeys []string    `json:"accountKeys"`
	Err         interface{} `json:"err"`
}

// wsTransactionFilter is the first parameter of transactionSubscribe.
type wsTransactionFilter struct {
	AccountInclude []string `json:"accountInclude"`
	Failed         bool     `json:"failed"`
}

// wsSubscribeOptions is the second parameter of transactionSubscribe.
type wsSubscribeOptions struct {
	Commitment string `json:"commitment"`
	// FromSlot asks the provider to resume delivery after a missed range.
	// Zero means "from latest".
	FromSlot int64 `json:"fromSlot,omitempty"`
}
