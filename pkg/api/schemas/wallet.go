package schemas

// Wallet is the read model for a user wallet. It carries only computed
// balance fields; wallet credentials never leave the server.
type Wallet struct {
	UserID    string `json:"user_id" doc:"Wallet owner"`
	TotalSats int64  `json:"total_sats" doc:"Live balance in sats"`
}

type Invoice struct {
	PaymentRequest string `json:"payment_request" doc:"BOLT11 invoice to pay"`
	CheckingID     string `json:"checking_id" doc:"Provider-side payment identifier"`
}

type Transaction struct {
	CheckingID string  `json:"checking_id" doc:"Provider-side payment identifier"`
	Pending    bool    `json:"pending" doc:"True while the payment is unconfirmed"`
	AmountSats int64   `json:"amount_sats" doc:"Amount in sats, negative for outgoing"`
	Memo       string  `json:"memo" doc:"Invoice memo"`
	Time       float64 `json:"time" doc:"Provider timestamp"`
}
