package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"p2p-ad-bot/internal/types"
)

type captured struct {
	method string
	path   string
	query  string
	body   map[string]any
	header http.Header
}

type venueServer struct {
	t         *testing.T
	mu        sync.Mutex
	calls     []captured
	responses map[string]string
	status    int
}

func newVenueServer(t *testing.T, responses map[string]string) (*venueServer, *Client) {
	t.Helper()
	vs := &venueServer{t: t, responses: responses, status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(vs.handle))
	t.Cleanup(srv.Close)

	c, err := New(Params{APIKey: "key", APISecret: "secret", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return vs, c
}

func (vs *venueServer) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			vs.t.Errorf("request body is not JSON: %v", err)
		}
	}

	payload := string(raw)
	if r.Method == http.MethodGet {
		payload = r.URL.RawQuery
	}
	h := hmac.New(sha256.New, []byte("secret"))
	h.Write([]byte(r.Header.Get("X-BAPI-TIMESTAMP") + "key" + r.Header.Get("X-BAPI-RECV-WINDOW") + payload))
	if got, want := r.Header.Get("X-BAPI-SIGN"), hex.EncodeToString(h.Sum(nil)); got != want {
		vs.t.Errorf("%s: bad signature %q, want %q", r.URL.Path, got, want)
	}

	vs.mu.Lock()
	vs.calls = append(vs.calls, captured{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		body:   body,
		header: r.Header.Clone(),
	})
	status := vs.status
	resp, ok := vs.responses[r.URL.Path]
	vs.mu.Unlock()

	if !ok {
		resp = `{"retCode":0,"retMsg":"SUCCESS","result":{}}`
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp)
}

func (vs *venueServer) last() captured {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if len(vs.calls) == 0 {
		vs.t.Fatal("no request captured")
	}
	return vs.calls[len(vs.calls)-1]
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Params{APIKey: "key"})
	var cfgErr *types.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestListOffersNormalizes(t *testing.T) {
	vs, c := newVenueServer(t, map[string]string{
		pathPersonalAds: `{"ret_code":0,"ret_msg":"SUCCESS","result":{"count":2,"items":[
			{"id":"1001","side":1,"price":"95.50","lastQuantity":"120.5","minAmount":"1000","maxAmount":50000,"remark":"SELL_MAIN fast","payments":["14",377]},
			{"itemId":"1002","id":"ignored","side":"0","price":94,"quantity":"10","minAmount":"500","maxAmount":"1000","remark":"BUY_MAIN","payments":[]}
		]}}`,
	})

	offers, err := c.ListOffers(context.Background(), types.SideSell)
	if err != nil {
		t.Fatalf("ListOffers: %v", err)
	}

	req := vs.last()
	if req.method != http.MethodPost || req.body["status"] != "2" || req.body["side"] != "1" {
		t.Errorf("unexpected request %+v", req)
	}
	if ua := req.header.Get("User-Agent"); ua != userAgent {
		t.Errorf("User-Agent = %q, want %q", ua, userAgent)
	}

	if len(offers) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(offers))
	}
	first := offers[0]
	if first.ID != "1001" || first.Side != types.SideSell || !first.Price.Equal(decimal.RequireFromString("95.5")) {
		t.Errorf("unexpected first offer %+v", first)
	}
	if !first.Quantity.Equal(decimal.RequireFromString("120.5")) || !first.MaxAmount.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("unexpected amounts %+v", first)
	}
	if len(first.PaymentIDs) != 2 || first.PaymentIDs[1] != "377" {
		t.Errorf("unexpected payments %v", first.PaymentIDs)
	}

	second := offers[1]
	if second.ID != "1002" || second.Side != types.SideBuy || !second.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("unexpected second offer %+v", second)
	}
}

func TestListOffersSkipsMalformedAd(t *testing.T) {
	_, c := newVenueServer(t, map[string]string{
		pathPersonalAds: `{"retCode":0,"result":{"items":[
			{"id":"1","side":1,"price":"95","lastQuantity":"10","remark":"SELL_MAIN"},
			{"id":"2","side":1,"price":"95","lastQuantity":"n/a","remark":"SELL_ALT"},
			{"id":"3","side":null,"price":"96","lastQuantity":"5","remark":"SELL_THIRD"},
			{"id":"4","side":"1","price":"97","lastQuantity":"7","remark":"SELL_FOURTH"}
		]}}`,
	})

	offers, err := c.ListOffers(context.Background(), types.SideSell)
	if err != nil {
		t.Fatalf("ListOffers: %v", err)
	}
	if len(offers) != 2 || offers[0].ID != "1" || offers[1].ID != "4" {
		t.Fatalf("expected well-formed ads 1 and 4, got %+v", offers)
	}
}

func TestListPendingOrdersKeepsMalformedOrder(t *testing.T) {
	_, c := newVenueServer(t, map[string]string{
		pathPendingOrders: `{"retCode":0,"result":{"items":[
			{"orderId":"GOOD","side":0,"status":10},
			{"orderId":"ODD","side":null,"status":10},
			{"orderId":"WEIRD","side":"7","status":"pending"}
		]}}`,
	})

	orders, err := c.ListPendingOrders(context.Background())
	if err != nil {
		t.Fatalf("ListPendingOrders: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected all 3 orders, got %+v", orders)
	}
	if orders[0].ID != "GOOD" || orders[0].Side != types.SideBuy || orders[0].Status != 10 {
		t.Errorf("unexpected good order %+v", orders[0])
	}
	if orders[1].ID != "ODD" || orders[1].Side != types.SideUnknown || orders[1].Status != 10 {
		t.Errorf("unexpected order with null side %+v", orders[1])
	}
	if orders[2].Side != types.SideUnknown || orders[2].Status != 0 {
		t.Errorf("unexpected order with bad side and status %+v", orders[2])
	}
}

func TestOrderDetailWithBadSideKeepsTerms(t *testing.T) {
	_, c := newVenueServer(t, map[string]string{
		pathOrderInfo: `{"retCode":0,"result":{"id":"A","side":"x","status":10,
			"paymentTermList":[{"id":"9001","paymentType":14}]}}`,
	})

	detail, err := c.GetOrderDetail(context.Background(), "A")
	if err != nil {
		t.Fatalf("GetOrderDetail: %v", err)
	}
	if term := detail.FirstPaymentTerm(); term.PaymentID != "9001" || term.PaymentType != "14" {
		t.Errorf("unexpected term %+v", term)
	}
}

func TestNonZeroReturnCodeIsExchangeError(t *testing.T) {
	_, c := newVenueServer(t, map[string]string{
		pathPersonalAds: `{"retCode":10010,"retMsg":"Unmatched IP","result":null}`,
	})

	_, err := c.ListOffers(context.Background(), types.SideBuy)
	var apiErr *types.ExchangeAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected ExchangeAPIError, got %v", err)
	}
	if apiErr.Code != 10010 || apiErr.Message != "Unmatched IP" || apiErr.Op != "listOffers" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestHTTPStatusIsExchangeError(t *testing.T) {
	vs, c := newVenueServer(t, nil)
	vs.status = http.StatusForbidden

	err := c.MarkAsPaid(context.Background(), "o1", "14", "p1")
	var apiErr *types.ExchangeAPIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 ExchangeAPIError, got %v", err)
	}
}

func TestUpdateOfferBody(t *testing.T) {
	vs, c := newVenueServer(t, nil)

	err := c.UpdateOffer(context.Background(), types.OfferUpdate{
		ID:         "1001",
		PriceType:  types.PriceTypeFixed,
		Price:      decimal.RequireFromString("95.5"),
		MinAmount:  decimal.NewFromInt(1000),
		MaxAmount:  decimal.NewFromInt(50000),
		PaymentIDs: []string{"14"},
		Quantity:   decimal.RequireFromString("120.5"),
		Remark:     "SELL_MAIN",
		ActionType: types.ActionModify,
	})
	if err != nil {
		t.Fatalf("UpdateOffer: %v", err)
	}

	b := vs.last().body
	want := map[string]string{
		"id":         "1001",
		"priceType":  "0",
		"price":      "95.5",
		"minAmount":  "1000",
		"maxAmount":  "50000",
		"quantity":   "120.5",
		"remark":     "SELL_MAIN",
		"actionType": "MODIFY",
	}
	for k, v := range want {
		if b[k] != v {
			t.Errorf("%s = %v, want %q", k, b[k], v)
		}
	}
	if ids, ok := b["paymentIds"].([]any); !ok || len(ids) != 1 || ids[0] != "14" {
		t.Errorf("paymentIds = %v", b["paymentIds"])
	}
}

func TestPendingOrdersAndDetail(t *testing.T) {
	vs, c := newVenueServer(t, map[string]string{
		pathPendingOrders: `{"retCode":0,"result":{"count":2,"items":[
			{"id":"A","side":0,"status":10},
			{"orderId":"B","side":"1","status":"20"}
		]}}`,
		pathOrderInfo: `{"retCode":0,"result":{"id":"A","side":0,"status":10,
			"paymentTermList":[{"id":"9001","paymentType":14},{"id":"9002","paymentType":"377"}]}}`,
	})
	ctx := context.Background()

	orders, err := c.ListPendingOrders(ctx)
	if err != nil {
		t.Fatalf("ListPendingOrders: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "A" || orders[1].ID != "B" || orders[1].Side != types.SideSell || orders[1].Status != 20 {
		t.Fatalf("unexpected orders %+v", orders)
	}
	if got := vs.last().body["size"]; got != float64(pageSize) {
		t.Errorf("size = %v", got)
	}

	detail, err := c.GetOrderDetail(ctx, "A")
	if err != nil {
		t.Fatalf("GetOrderDetail: %v", err)
	}
	if vs.last().body["orderId"] != "A" {
		t.Errorf("orderId not sent")
	}
	term := detail.FirstPaymentTerm()
	if term.PaymentType != "14" || term.PaymentID != "9001" {
		t.Errorf("unexpected first term %+v", term)
	}
}

func TestMarkAsPaidBody(t *testing.T) {
	vs, c := newVenueServer(t, nil)
	if err := c.MarkAsPaid(context.Background(), "A", "14", "9001"); err != nil {
		t.Fatalf("MarkAsPaid: %v", err)
	}
	req := vs.last()
	if req.path != pathOrderPay || req.body["orderId"] != "A" || req.body["paymentType"] != "14" || req.body["paymentId"] != "9001" {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestGetBalance(t *testing.T) {
	tests := []struct {
		name string
		resp string
		want string
	}{
		{
			name: "matching coin",
			resp: `{"retCode":0,"result":{"balance":[{"coin":"BTC","transferBalance":"1"},{"coin":"USDT","transferBalance":"250.75","walletBalance":"300"}]}}`,
			want: "250.75",
		},
		{
			name: "top level fallback",
			resp: `{"retCode":0,"result":{"availableBalance":"42"}}`,
			want: "42",
		},
		{
			name: "nothing reported",
			resp: `{"retCode":0,"result":{}}`,
			want: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs, c := newVenueServer(t, map[string]string{pathCoinBalance: tt.resp})
			bal, err := c.GetBalance(context.Background(), "FUND")
			if err != nil {
				t.Fatalf("GetBalance: %v", err)
			}
			if !bal.Available.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("available = %s, want %s", bal.Available, tt.want)
			}
			req := vs.last()
			if req.method != http.MethodGet || req.query != "accountType=FUND&coin=USDT" {
				t.Errorf("unexpected request %s ?%s", req.method, req.query)
			}
		})
	}
}

func TestSendMessage(t *testing.T) {
	vs, c := newVenueServer(t, nil)
	if err := c.SendMessage(context.Background(), "A", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	first := vs.last().body
	if first["message"] != "hello" || first["contentType"] != "str" || first["orderId"] != "A" {
		t.Errorf("unexpected body %v", first)
	}

	if err := c.SendMessage(context.Background(), "A", "again"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if second := vs.last().body; second["msgUuid"] == first["msgUuid"] || second["msgUuid"] == "" {
		t.Errorf("msgUuid not unique: %v / %v", first["msgUuid"], second["msgUuid"])
	}
}

func TestSendMessageFailureIsNotificationError(t *testing.T) {
	_, c := newVenueServer(t, map[string]string{
		pathSendMessage: `{"retCode":912100027,"retMsg":"order closed"}`,
	})

	err := c.SendMessage(context.Background(), "A", "hello")
	var notifyErr *types.NotificationError
	if !errors.As(err, &notifyErr) || notifyErr.OrderID != "A" {
		t.Fatalf("expected NotificationError, got %v", err)
	}
	var apiErr *types.ExchangeAPIError
	if !errors.As(err, &apiErr) || apiErr.Code != 912100027 {
		t.Errorf("cause not preserved: %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	c, err := New(Params{APIKey: "k", APISecret: "s", Testnet: true})
	if err != nil {
		t.Fatal(err)
	}
	if c.coin != "USDT" {
		t.Errorf("default coin = %q", c.coin)
	}
}
