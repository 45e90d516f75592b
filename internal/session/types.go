package session

// inbound is the envelope every client->server message is decoded into.
// Only the fields relevant to msg.Type are populated; unused pointer fields
// stay nil so decode doesn't need a type-keyed field set.
type inbound struct {
	Type string `json:"type"`

	PlayerName string `json:"player_name"`

	LobbyCode string `json:"lobby_code"`

	Settings *inboundSettings `json:"settings"`

	From *[2]int `json:"from"`
	To   *[2]int `json:"to"`

	Choice string `json:"choice"`
}

type inboundSettings struct {
	TimeMinutes            int  `json:"time_minutes"`
	TimeIncrementSeconds   int  `json:"time_increment_seconds"`
	PromotionCancelAllowed bool `json:"promotion_cancel_allowed"`
	WithBot                bool `json:"with_bot"`
}