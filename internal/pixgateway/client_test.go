package pixgateway_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rhodrigo081/doare.back/internal"
	"github.com/rhodrigo081/doare.back/internal/pixgateway"
)

func TestPixGateway(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "PixGateway Suite")
}

var _ = Describe("Client", func() {
	var (
		server     *httptest.Server
		client     *pixgateway.Client
		logger     *slog.Logger
		ctx        context.Context
		tokenCalls int32
		cobStatus  string
		failQR     bool
	)

	newClient := func(baseURL string) *pixgateway.Client {
		c, err := pixgateway.NewClient(internal.PixConfig{
			BaseURL:      baseURL,
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			PixKey:       "chave@example.com",
		}, logger)
		Expect(err).ToNot(HaveOccurred())
		return c
	}

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		ctx = context.Background()
		atomic.StoreInt32(&tokenCalls, 0)
		cobStatus = "ATIVA"
		failQR = false

		mux := http.NewServeMux()
		mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&tokenCalls, 1)
			user, pass, ok := r.BasicAuth()
			if !ok || user != "client-id" || pass != "client-secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "tok-1",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		})
		mux.HandleFunc("/v2/cob/", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			txid := strings.TrimPrefix(r.URL.Path, "/v2/cob/")
			if txid == "missing" {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]string{
					"nome":     "cobranca_nao_encontrada",
					"mensagem": "cobrança não encontrada para o txid informado",
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"txid":   txid,
				"status": cobStatus,
				"calendario": map[string]interface{}{
					"criacao":   time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
					"expiracao": 3600,
				},
				"devedor": map[string]string{"cpf": "12345678901", "nome": "Jane Doe"},
				"valor":   map[string]string{"original": "50.00"},
				"loc":     map[string]interface{}{"id": 77, "location": "pix.example.com/qr/v2/loc77"},
				"location": "pix.example.com/qr/v2/loc77",
				"pixCopiaECola": "00020126cobcopiaecola",
			})
		})
		mux.HandleFunc("/v2/loc/77/qrcode", func(w http.ResponseWriter, r *http.Request) {
			if failQR {
				json.NewEncoder(w).Encode(map[string]string{})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"imagemQrcode": "data:image/png;base64,abc",
				"qrcode":       "00020126qrcopiaecola",
			})
		})

		server = httptest.NewServer(mux)
		client = newClient(server.URL)
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("CreateCharge", func() {
		It("opens the charge and returns its presentation payload", func() {
			charge, err := client.CreateCharge(ctx, pixgateway.ChargeRequest{
				TxID:        "abc123",
				AmountCents: 5000,
				PayerTaxID:  "12345678901",
				PayerName:   "Jane Doe",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(charge.TxID).To(Equal("abc123"))
			Expect(charge.LocID).To(Equal(int64(77)))
			Expect(charge.QRCode).To(Equal("data:image/png;base64,abc"))
			Expect(charge.CopyPaste).To(Equal("00020126qrcopiaecola"))
			Expect(charge.CreatedAt).To(Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)))
		})

		It("fails when the qrcode payload is missing", func() {
			failQR = true

			_, err := client.CreateCharge(ctx, pixgateway.ChargeRequest{
				TxID:        "abc123",
				AmountCents: 5000,
				PayerTaxID:  "12345678901",
				PayerName:   "Jane Doe",
			})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeExternal))
		})

		It("requests the token once and reuses it across calls", func() {
			_, err := client.CreateCharge(ctx, pixgateway.ChargeRequest{
				TxID: "tx-1", AmountCents: 100, PayerTaxID: "12345678901", PayerName: "Jane Doe",
			})
			Expect(err).ToNot(HaveOccurred())

			_, err = client.GetChargeDetails(ctx, "tx-1")
			Expect(err).ToNot(HaveOccurred())

			Expect(atomic.LoadInt32(&tokenCalls)).To(Equal(int32(1)))
		})
	})

	Describe("GetChargeDetails", func() {
		It("returns the authoritative charge record", func() {
			cobStatus = "CONCLUIDA"

			details, err := client.GetChargeDetails(ctx, "abc123")

			Expect(err).ToNot(HaveOccurred())
			Expect(details.TxID).To(Equal("abc123"))
			Expect(details.Status).To(Equal("CONCLUIDA"))
			Expect(details.Amount).To(Equal("50.00"))
			Expect(details.PayerTaxID).To(Equal("12345678901"))
			Expect(details.PayerName).To(Equal("Jane Doe"))
			Expect(details.LocID).To(Equal(int64(77)))
			Expect(details.CopyPaste).To(Equal("00020126cobcopiaecola"))
		})

		It("annotates gateway errors with the gateway's own message", func() {
			_, err := client.GetChargeDetails(ctx, "missing")

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeExternal))
			Expect(appErr.Message).To(ContainSubstring("404"))
			Expect(appErr.Message).To(ContainSubstring("cobranca_nao_encontrada"))
		})
	})

	Describe("token", func() {
		It("surfaces an auth error when the credentials are rejected", func() {
			badClient, err := pixgateway.NewClient(internal.PixConfig{
				BaseURL:      server.URL,
				ClientID:     "wrong",
				ClientSecret: "wrong",
			}, logger)
			Expect(err).ToNot(HaveOccurred())

			_, err = badClient.GetChargeDetails(ctx, "abc123")

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeGatewayAuth))
		})
	})
})

var _ = Describe("Amount conversions", func() {
	It("formats minor units as decimal strings", func() {
		Expect(pixgateway.FormatAmount(5000)).To(Equal("50.00"))
		Expect(pixgateway.FormatAmount(5)).To(Equal("0.05"))
		Expect(pixgateway.FormatAmount(199)).To(Equal("1.99"))
		Expect(pixgateway.FormatAmount(100000)).To(Equal("1000.00"))
	})

	It("parses decimal strings into minor units", func() {
		Expect(pixgateway.ParseAmount("50.00")).To(Equal(int64(5000)))
		Expect(pixgateway.ParseAmount("0.05")).To(Equal(int64(5)))
		Expect(pixgateway.ParseAmount("1.9")).To(Equal(int64(190)))
		Expect(pixgateway.ParseAmount("10")).To(Equal(int64(1000)))
	})

	It("rejects garbage", func() {
		_, err := pixgateway.ParseAmount("")
		Expect(err).To(HaveOccurred())
		_, err = pixgateway.ParseAmount("abc")
		Expect(err).To(HaveOccurred())
	})

	It("rejects signed amounts and fractions beyond two digits", func() {
		_, err := pixgateway.ParseAmount("-1.50")
		Expect(err).To(HaveOccurred())
		_, err = pixgateway.ParseAmount("+5.00")
		Expect(err).To(HaveOccurred())
		_, err = pixgateway.ParseAmount("1.234")
		Expect(err).To(HaveOccurred())
		_, err = pixgateway.ParseAmount("1.")
		Expect(err).To(HaveOccurred())
	})
})
