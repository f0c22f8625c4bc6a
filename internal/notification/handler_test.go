package notification_test

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rhodrigo081/doare.back/internal/core/datamodel/donation"
	"github.com/rhodrigo081/doare.back/internal/notification"
	"github.com/rhodrigo081/doare.back/internal/transport"
)

var _ = Describe("StreamDonationEvents", func() {
	var (
		server *httptest.Server
		hub    *notification.Hub
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		hub = notification.NewHub(logger)
		handler := notification.NewHandler(transport.NewBaseHandler(logger), hub, 50*time.Millisecond, logger)

		router := chi.NewRouter()
		router.Get("/events/{txid}", handler.StreamDonationEvents)
		server = httptest.NewServer(router)
	})

	AfterEach(func() {
		server.Close()
	})

	openStream := func(ctx context.Context, txID string) (*http.Response, *bufio.Reader) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events/"+txID, nil)
		Expect(err).ToNot(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).ToNot(HaveOccurred())
		return resp, bufio.NewReader(resp.Body)
	}

	// readUntil scans SSE lines until one has the given prefix.
	readUntil := func(reader *bufio.Reader, prefix string) string {
		for {
			line, err := reader.ReadString('\n')
			Expect(err).ToNot(HaveOccurred())
			if strings.HasPrefix(line, prefix) {
				return strings.TrimSuffix(line, "\n")
			}
		}
	}

	It("pushes the donationPaid event for the subscribed transaction", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		resp, reader := openStream(ctx, "abc123")
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
		Expect(readUntil(reader, ": connected")).To(Equal(": connected"))

		Eventually(hub.SubscriberCount).Should(Equal(1))
		hub.Publish([]*donation.Donation{{
			ID:          "don-1",
			TxID:        "abc123",
			DonorName:   "Jane Doe",
			AmountCents: 5000,
			Status:      donation.StatusPaid,
		}})

		Expect(readUntil(reader, "event:")).To(Equal("event: donationPaid"))
		data := readUntil(reader, "data:")

		var event notification.DonationPaidEvent
		Expect(json.Unmarshal([]byte(strings.TrimPrefix(data, "data: ")), &event)).To(Succeed())
		Expect(event.TxID).To(Equal("abc123"))
		Expect(event.Valor).To(Equal(50.00))
		Expect(event.Pagador).To(Equal("Jane Doe"))
		Expect(event.Status).To(Equal(donation.StatusPaid))
	})

	It("sends keep-alive comments while no payment arrives", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		resp, reader := openStream(ctx, "tx-idle")
		defer resp.Body.Close()

		Expect(readUntil(reader, ": connected")).To(Equal(": connected"))
		Expect(readUntil(reader, ": keep-alive")).To(Equal(": keep-alive"))
	})

	It("tears the subscription down when the client disconnects", func() {
		ctx, cancel := context.WithCancel(context.Background())

		resp, reader := openStream(ctx, "tx-gone")
		readUntil(reader, ": connected")
		Eventually(hub.SubscriberCount).Should(Equal(1))

		cancel()
		resp.Body.Close()

		Eventually(hub.SubscriberCount).Should(BeZero())
	})

	It("closes an earlier stream when a later one subscribes to the same txid", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		firstResp, firstReader := openStream(ctx, "tx-dup")
		defer firstResp.Body.Close()
		readUntil(firstReader, ": connected")
		Eventually(hub.SubscriberCount).Should(Equal(1))

		secondResp, secondReader := openStream(ctx, "tx-dup")
		defer secondResp.Body.Close()
		readUntil(secondReader, ": connected")

		// the superseded stream ends; only the replacement stays registered
		Eventually(func() error {
			_, err := firstReader.ReadString('\n')
			return err
		}).Should(HaveOccurred())
		Expect(hub.SubscriberCount()).To(Equal(1))

		hub.Publish([]*donation.Donation{{TxID: "tx-dup", Status: donation.StatusPaid}})
		Expect(readUntil(secondReader, "event:")).To(Equal("event: donationPaid"))
	})

	It("rejects a request with an empty txid", func() {
		resp, err := http.Get(server.URL + "/events/")
		Expect(err).ToNot(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})
})
