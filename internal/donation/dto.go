package donation

import "time"

// WebhookPayload is the gateway's notification body. Everything in it is
// untrusted: the engine only uses the txid and re-fetches the authoritative
// charge before deciding anything.
type WebhookPayload struct {
	Pix []PixNotification `json:"pix"`
}

type PixNotification struct {
	TxID          string           `json:"txid"`
	Status        string           `json:"status"`
	Valor         NotifiedValue    `json:"valor"`
	Devedor       NotifiedPayer    `json:"devedor"`
	Loc           NotifiedLocation `json:"loc"`
	Location      string           `json:"location"`
	PixCopiaECola string           `json:"pixCopiaECola"`
	Calendario    NotifiedCalendar `json:"calendario"`
}

type NotifiedValue struct {
	Original string `json:"original"`
}

type NotifiedPayer struct {
	CPF  string `json:"cpf"`
	Nome string `json:"nome"`
}

type NotifiedLocation struct {
	ID int64 `json:"id"`
}

type NotifiedCalendar struct {
	Criacao time.Time `json:"criacao"`
}

// WebhookSummary is the always-200 response body: per-item outcome so the
// gateway never retries a permanently-broken element.
type WebhookSummary struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Message   string   `json:"message"`
	Errors    []string `json:"errors,omitempty"`
}
