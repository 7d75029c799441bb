package models

type Account struct {
	AccountID        string   `json:"account_id"`
	Name             string   `json:"name"`
	OfficialName     string   `json:"official_name,omitempty"`
	Mask             string   `json:"mask,omitempty"`
	Type             string   `json:"type"`
	Subtype          string   `json:"subtype,omitempty"`
	CurrentBalance   *float64 `json:"current_balance"`
	AvailableBalance *float64 `json:"available_balance"`
	Currency         string   `json:"currency,omitempty"`
}

type AchNumbers struct {
	AccountID   string `json:"account_id"`
	Account     string `json:"account"`
	Routing     string `json:"routing"`
	WireRouting string `json:"wire_routing,omitempty"`
}
