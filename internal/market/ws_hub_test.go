package market_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cropchain/yield-exchange/internal/market"
	"github.com/cropchain/yield-exchange/internal/provider"
	"github.com/cropchain/yield-exchange/internal/store"
	"github.com/cropchain/yield-exchange/internal/wallet"
)

func TestWSHub_BroadcastsPurchase(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ms := store.NewMemoryStore()
	require.NoError(t, provider.Seed(ctx, ms, "", now))

	hub := market.NewWSHub()
	go hub.Run(ctx)

	settlement := new(mockSettlement)
	settlement.On("Purchase", mock.Anything, "rice-2027-01", int64(10)).Return(true, nil)
	svc := market.NewService(ms, nil, settlement, wallet.NewSession(provider.FixtureConnector{}),
		market.WithHub(hub),
		market.WithClock(func() time.Time { return now }))

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	res, err := svc.Purchase(ctx, market.PurchaseRequest{HolderID: "holder-1", TokenID: "rice-2027-01", Amount: 10})
	require.NoError(t, err)
	require.True(t, res.OK())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg market.WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "purchase_completed", msg.Type)
	assert.Equal(t, "rice-2027-01", msg.TokenID)
	assert.Equal(t, "RICE27", msg.Symbol)
	assert.Equal(t, int64(10), msg.Amount)
	assert.Equal(t, int64(2090), msg.AvailableSupply)
}

func TestWSHub_ClosesClientsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	hub := market.NewWSHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	srv := httptest.NewServer(httpHandler(hub))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Equal(t, 0, hub.Clients())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func httpHandler(hub *market.WSHub) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/", hub.HandleWS)
	return r
}
