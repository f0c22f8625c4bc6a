package pixgateway

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Gateway charge statuses as reported by the PSP. StatusCompleted is the only
// value the reconciliation path treats as confirmed-paid.
const (
	StatusActive    = "ATIVA"
	StatusCompleted = "CONCLUIDA"
)

// ChargeRequest carries the fields needed to open an immediate charge. The
// txid is generated by the caller and becomes the idempotency key for the
// whole payment lifecycle.
type ChargeRequest struct {
	TxID        string
	AmountCents int64
	PayerTaxID  string
	PayerName   string
}

// Charge is the transient gateway representation of a pending payment
// request. It is presentation data only and is never persisted at creation
// time.
type Charge struct {
	TxID      string
	LocID     int64
	QRCode    string
	CopyPaste string
	CreatedAt time.Time
}

// ChargeDetails is the authoritative charge record fetched back from the
// gateway by txid.
type ChargeDetails struct {
	TxID       string
	Status     string
	Amount     string
	PayerTaxID string
	PayerName  string
	LocID      int64
	Location   string
	CopyPaste  string
	CreatedAt  time.Time
}

// ---- wire types ----

type cobCalendario struct {
	Criacao   time.Time `json:"criacao,omitempty"`
	Expiracao int       `json:"expiracao"`
}

type cobDevedor struct {
	CPF  string `json:"cpf"`
	Nome string `json:"nome"`
}

type cobValor struct {
	Original string `json:"original"`
}

type cobLoc struct {
	ID       int64  `json:"id"`
	Location string `json:"location"`
}

type cobRequest struct {
	Calendario cobCalendario `json:"calendario"`
	Devedor    cobDevedor    `json:"devedor"`
	Valor      cobValor      `json:"valor"`
	Chave      string        `json:"chave"`
}

type cobResponse struct {
	Txid          string        `json:"txid"`
	Status        string        `json:"status"`
	Calendario    cobCalendario `json:"calendario"`
	Devedor       cobDevedor    `json:"devedor"`
	Valor         cobValor      `json:"valor"`
	Loc           cobLoc        `json:"loc"`
	Location      string        `json:"location"`
	PixCopiaECola string        `json:"pixCopiaECola"`
}

type qrcodeResponse struct {
	QRCodeImage string `json:"imagemQrcode"`
	CopiaECola  string `json:"qrcode"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type gatewayError struct {
	Nome     string `json:"nome"`
	Mensagem string `json:"mensagem"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
}

func (e gatewayError) String() string {
	code := e.Nome
	if code == "" {
		code = e.Title
	}
	msg := e.Mensagem
	if msg == "" {
		msg = e.Detail
	}
	if code == "" && msg == "" {
		return ""
	}
	return fmt.Sprintf("%s: %s", code, msg)
}

// FormatAmount renders minor units as the gateway's decimal string, e.g.
// 5000 -> "50.00".
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// ParseAmount converts the gateway's decimal string into minor units without
// going through floating point. The gateway format is unsigned digits with an
// optional one- or two-digit fraction; anything else is an error.
func ParseAmount(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty amount")
	}

	parts := strings.SplitN(value, ".", 2)
	units, err := strconv.ParseUint(parts[0], 10, 63)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}

	var cents uint64
	if len(parts) == 2 {
		frac := parts[1]
		if len(frac) == 0 || len(frac) > 2 {
			return 0, fmt.Errorf("invalid amount %q: fraction must have 1 or 2 digits", value)
		}
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err = strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", value, err)
		}
	}

	return int64(units)*100 + int64(cents), nil
}
