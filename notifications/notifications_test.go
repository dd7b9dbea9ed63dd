package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/creator_market/database"
	"github.com/anjiri1684/creator_market/models"
	"github.com/anjiri1684/creator_market/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type sentMail struct {
	APIKey  string
	Payload brevoPayload
}

func brevoServer(t *testing.T, status int) (string, <-chan sentMail) {
	t.Helper()
	got := make(chan sentMail, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p brevoPayload
		assert.Equal(t, "/v3/smtp/email", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		got <- sentMail{APIKey: r.Header.Get("api-key"), Payload: p}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"messageId":"m1"}`))
	}))
	t.Cleanup(srv.Close)
	return srv.URL, got
}

func TestMailer_Send(t *testing.T) {
	url, got := brevoServer(t, http.StatusCreated)
	m := NewMailer(url, "key-1", "noreply@market.test", "Market", time.Second, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.Send(context.Background(), "", "ada@example.com", "Hi", "<p>hi</p>"))
	mail := <-got
	assert.Equal(t, "key-1", mail.APIKey)
	assert.Equal(t, "ada", mail.Payload.To[0]["name"])
	assert.Equal(t, "noreply@market.test", mail.Payload.Sender["email"])
	assert.Equal(t, "Hi", mail.Payload.Subject)

	assert.Error(t, m.Send(context.Background(), "Ada", "not-an-email", "Hi", ""))
}

func TestMailer_SurfacesRejection(t *testing.T) {
	url, _ := brevoServer(t, http.StatusBadRequest)
	m := NewMailer(url, "key-1", "noreply@market.test", "Market", time.Second, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = m.Close() })

	assert.Error(t, m.Send(context.Background(), "Ada", "ada@example.com", "Hi", ""))
}

func TestMailer_Unconfigured(t *testing.T) {
	m := NewMailer("", "", "", "", time.Second, zaptest.NewLogger(t))
	assert.Nil(t, m)
	assert.NoError(t, m.Send(context.Background(), "Ada", "ada@example.com", "Hi", ""))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[uuid.UUID][]any
}

func (p *recordingPublisher) Publish(sellerID uuid.UUID, event any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[uuid.UUID][]any)
	}
	p.events[sellerID] = append(p.events[sellerID], event)
}

func TestDispatcher_PublishesAndMails(t *testing.T) {
	url, got := brevoServer(t, http.StatusCreated)
	logger := zaptest.NewLogger(t)
	store := database.NewMemoryStore()
	seller := models.User{ID: uuid.New(), FullName: "Ada", Email: "ada@example.com"}
	store.AddUser(seller)

	pub := &recordingPublisher{}
	d := NewDispatcher(NewMailer(url, "k", "noreply@market.test", "Market", time.Second, logger), pub, store, time.Second, logger)

	tx := &models.Transaction{SellerID: seller.ID, Status: models.TransactionCompleted, SellerNetAmount: 7100, Currency: "eur"}
	d.TransactionSettled(context.Background(), tx, &services.Account{SellerID: seller.ID, AvailableBalance: 7100})

	select {
	case mail := <-got:
		assert.Equal(t, "You made a sale!", mail.Payload.Subject)
		assert.Contains(t, mail.Payload.HTMLContent, "71.00 EUR")
	case <-time.After(2 * time.Second):
		t.Fatal("no email sent")
	}

	pending := &models.Payout{SellerID: seller.ID, Status: models.PayoutPending}
	d.PayoutUpdated(context.Background(), pending, &services.Account{SellerID: seller.ID})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events[seller.ID], 2)
	first := pub.events[seller.ID][0].(AccountEvent)
	assert.Equal(t, EventTransactionUpdated, first.Type)
	assert.Equal(t, int64(7100), first.Account.AvailableBalance)
	assert.Equal(t, EventPayoutUpdated, pub.events[seller.ID][1].(AccountEvent).Type)
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "71.00 EUR", formatMinor(7100, "eur"))
	assert.Equal(t, "0.05 EUR", formatMinor(5, "eur"))
	assert.Equal(t, "-1.50 USD", formatMinor(-150, "usd"))
}
