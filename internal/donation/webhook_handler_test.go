package donation_test

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
	donationmodel "github.com/rhodrigo081/doare.back/internal/core/datamodel/donation"
	donationpkg "github.com/rhodrigo081/doare.back/internal/donation"
	"github.com/rhodrigo081/doare.back/internal/transport"
)

type mockReconcileService struct {
	reconcileCalls []string
	failTxIDs      map[string]error
	listResult     []*donationmodel.Donation
	listError      error
}

func (m *mockReconcileService) Reconcile(ctx context.Context, txID string) (*donationmodel.Donation, error) {
	m.reconcileCalls = append(m.reconcileCalls, txID)
	if err, ok := m.failTxIDs[txID]; ok {
		return nil, err
	}
	return &donationmodel.Donation{TxID: txID, Status: donationmodel.StatusPaid}, nil
}

func (m *mockReconcileService) GetByTxID(ctx context.Context, txID string) (*donationmodel.Donation, error) {
	return nil, apperrors.ErrDonationNotFound
}

func (m *mockReconcileService) List(ctx context.Context, offset, limit int) ([]*donationmodel.Donation, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	return m.listResult, nil
}

var _ = Describe("WebhookHandler", func() {
	var (
		handler *donationpkg.WebhookHandler
		service *mockReconcileService
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = &mockReconcileService{failTxIDs: make(map[string]error)}
		handler = donationpkg.NewWebhookHandler(transport.NewBaseHandler(logger), service, logger)
	})

	postWebhook := func(body []byte) (*httptest.ResponseRecorder, donationpkg.WebhookSummary) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/donations/webhook", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.HandlePixWebhook(rec, req)

		var summary donationpkg.WebhookSummary
		Expect(json.Unmarshal(rec.Body.Bytes(), &summary)).To(Succeed())
		return rec, summary
	}

	Describe("HandlePixWebhook", func() {
		Context("with a well-formed batch", func() {
			It("should reconcile every element and answer 200", func() {
				body, _ := json.Marshal(map[string]interface{}{
					"pix": []map[string]interface{}{
						{"txid": "tx-1", "status": "CONCLUIDA"},
						{"txid": "tx-2", "status": "CONCLUIDA"},
					},
				})

				rec, summary := postWebhook(body)

				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(summary.Processed).To(Equal(2))
				Expect(summary.Failed).To(BeZero())
				Expect(service.reconcileCalls).To(Equal([]string{"tx-1", "tx-2"}))
			})
		})

		Context("when one element fails", func() {
			It("should still process the rest of the batch", func() {
				service.failTxIDs["tx-bad"] = apperrors.NewExternalError("gateway request failed", apperrors.ErrCodeGatewayRequest, nil)
				body, _ := json.Marshal(map[string]interface{}{
					"pix": []map[string]interface{}{
						{"txid": "tx-1"},
						{"txid": "tx-bad"},
						{"txid": "tx-3"},
					},
				})

				rec, summary := postWebhook(body)

				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(summary.Processed).To(Equal(2))
				Expect(summary.Failed).To(Equal(1))
				Expect(summary.Errors).To(HaveLen(1))
				Expect(summary.Errors[0]).To(ContainSubstring("tx-bad"))
				Expect(service.reconcileCalls).To(Equal([]string{"tx-1", "tx-bad", "tx-3"}))
			})
		})

		Context("when an element has no txid", func() {
			It("should skip it without calling the engine", func() {
				body, _ := json.Marshal(map[string]interface{}{
					"pix": []map[string]interface{}{
						{"status": "CONCLUIDA"},
						{"txid": "tx-1"},
					},
				})

				rec, summary := postWebhook(body)

				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(summary.Processed).To(Equal(1))
				Expect(summary.Failed).To(Equal(1))
				Expect(service.reconcileCalls).To(Equal([]string{"tx-1"}))
			})
		})

		Context("when the body cannot be decoded", func() {
			It("should answer 200 with a failure summary so the gateway stops redelivering", func() {
				rec, summary := postWebhook([]byte("{not json"))

				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(summary.Failed).To(Equal(1))
				Expect(summary.Message).To(ContainSubstring("could not be decoded"))
				Expect(service.reconcileCalls).To(BeEmpty())
			})
		})

		Context("with an empty batch", func() {
			It("should answer 200 with nothing processed", func() {
				rec, summary := postWebhook([]byte(`{"pix": []}`))

				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(summary.Processed).To(BeZero())
				Expect(summary.Failed).To(BeZero())
			})
		})
	})

	Describe("ListDonations", func() {
		It("should return the page with its offset and limit", func() {
			service.listResult = []*donationmodel.Donation{
				{ID: "don-1", TxID: "tx-1", Status: donationmodel.StatusPaid},
			}
			req := httptest.NewRequest(http.MethodGet, "/api/v1/donations?offset=5&limit=10", nil)
			rec := httptest.NewRecorder()

			handler.ListDonations(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body["offset"]).To(BeEquivalentTo(5))
			Expect(body["limit"]).To(BeEquivalentTo(10))
			Expect(body["donations"]).To(HaveLen(1))
		})

		It("should map store failures onto their HTTP status", func() {
			service.listError = apperrors.NewDatabaseError("failed to list donations", nil)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/donations", nil)
			rec := httptest.NewRecorder()

			handler.ListDonations(rec, req)

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		})
	})
})
