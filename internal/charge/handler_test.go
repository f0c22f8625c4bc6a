package charge_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/rhodrigo081/doare.back/internal"
	"github.com/rhodrigo081/doare.back/internal/charge"
	"github.com/rhodrigo081/doare.back/internal/core/datamodel/donation"
	"github.com/rhodrigo081/doare.back/internal/transport"
)

type mockChargeService struct {
	result *charge.ChargeData
	err    error
}

func (m *mockChargeService) CreateCharge(ctx context.Context, req *charge.CreateChargeRequest) (*charge.ChargeData, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

var _ = Describe("ChargeHandler", func() {
	var (
		handler *charge.Handler
		service *mockChargeService
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = &mockChargeService{}
		handler = charge.NewHandler(transport.NewBaseHandler(logger), service, logger)
	})

	post := func(body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/donations/charge", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.CreateCharge(rec, req)
		return rec
	}

	It("answers 201 with the charge data", func() {
		service.result = &charge.ChargeData{
			DonorName: "Jane Doe",
			TxID:      "abc123",
			Status:    donation.StatusAwaitingPayment,
		}
		body, _ := json.Marshal(map[string]interface{}{"donorTaxId": "12345678901", "amount": 50.00})

		rec := post(body)

		Expect(rec.Code).To(Equal(http.StatusCreated))
		var data charge.ChargeData
		Expect(json.Unmarshal(rec.Body.Bytes(), &data)).To(Succeed())
		Expect(data.TxID).To(Equal("abc123"))
		Expect(data.Status).To(Equal(donation.StatusAwaitingPayment))
	})

	It("answers 400 for an undecodable body", func() {
		rec := post([]byte("{broken"))

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("answers 409 for validation failures", func() {
		service.err = apperrors.NewValidationError("donor tax id must have 11 digits", apperrors.ErrCodeInvalidTaxID)
		body, _ := json.Marshal(map[string]interface{}{"donorTaxId": "123", "amount": 50.00})

		rec := post(body)

		Expect(rec.Code).To(Equal(http.StatusConflict))
	})

	It("answers 409 for an unregistered donor", func() {
		service.err = apperrors.ErrDonorNotFound
		body, _ := json.Marshal(map[string]interface{}{"donorTaxId": "99999999999", "amount": 50.00})

		rec := post(body)

		Expect(rec.Code).To(Equal(http.StatusConflict))
	})

	It("answers 502 when the gateway fails", func() {
		service.err = apperrors.NewExternalError("gateway request failed", apperrors.ErrCodeGatewayRequest, nil)
		body, _ := json.Marshal(map[string]interface{}{"donorTaxId": "12345678901", "amount": 50.00})

		rec := post(body)

		Expect(rec.Code).To(Equal(http.StatusBadGateway))
	})
})
