package bybit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"p2p-ad-bot/internal/types"
)

// flexString accepts a JSON string, number or null. The venue is not
// consistent about quoting ids, sides and amounts.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	*f = flexString(b)
	return nil
}

func (f flexString) decimal() (decimal.Decimal, error) {
	if f == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(string(f))
}

func (f flexString) side() (types.Side, error) {
	switch f {
	case "0":
		return types.SideBuy, nil
	case "1":
		return types.SideSell, nil
	default:
		return types.SideUnknown, fmt.Errorf("side %q is not 0 or 1", string(f))
	}
}

func (f flexString) int() (int, error) {
	if f == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(string(f))
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", string(f))
	}
	return n, nil
}

type envelope struct {
	RetCode      *int            `json:"retCode"`
	RetCodeSnake *int            `json:"ret_code"`
	RetMsg       string          `json:"retMsg"`
	RetMsgSnake  string          `json:"ret_msg"`
	Result       json.RawMessage `json:"result"`
}

func (e envelope) code() int {
	switch {
	case e.RetCode != nil:
		return *e.RetCode
	case e.RetCodeSnake != nil:
		return *e.RetCodeSnake
	default:
		return 0
	}
}

func (e envelope) message() string {
	if e.RetMsg != "" {
		return e.RetMsg
	}
	return e.RetMsgSnake
}

type rawAd struct {
	ID           flexString   `json:"id"`
	ItemID       flexString   `json:"itemId"`
	Side         flexString   `json:"side"`
	Price        flexString   `json:"price"`
	Quantity     flexString   `json:"quantity"`
	LastQuantity flexString   `json:"lastQuantity"`
	MinAmount    flexString   `json:"minAmount"`
	MaxAmount    flexString   `json:"maxAmount"`
	Remark       string       `json:"remark"`
	Payments     []flexString `json:"payments"`
}

func (r rawAd) id() string {
	if r.ItemID != "" {
		return string(r.ItemID)
	}
	return string(r.ID)
}

func (r rawAd) normalize() (types.LiveOffer, error) {
	id := r.id()
	if id == "" {
		return types.LiveOffer{}, fmt.Errorf("ad without id")
	}

	side, err := r.Side.side()
	if err != nil {
		return types.LiveOffer{}, err
	}

	qtyField := r.LastQuantity
	if qtyField == "" {
		qtyField = r.Quantity
	}

	out := types.LiveOffer{ID: id, Side: side, Remark: r.Remark}
	for _, f := range []struct {
		name string
		raw  flexString
		dst  *decimal.Decimal
	}{
		{"price", r.Price, &out.Price},
		{"quantity", qtyField, &out.Quantity},
		{"minAmount", r.MinAmount, &out.MinAmount},
		{"maxAmount", r.MaxAmount, &out.MaxAmount},
	} {
		d, err := f.raw.decimal()
		if err != nil {
			return types.LiveOffer{}, fmt.Errorf("ad %s %s: %w", id, f.name, err)
		}
		*f.dst = d
	}
	for _, p := range r.Payments {
		out.PaymentIDs = append(out.PaymentIDs, string(p))
	}
	return out, nil
}

type rawOrder struct {
	OrderID flexString `json:"orderId"`
	ID      flexString `json:"id"`
	Side    flexString `json:"side"`
	Status  flexString `json:"status"`
}

// normalize always returns a usable order. Fields it could not read are
// defaulted (side to SideUnknown, status to 0) and reported in the error.
func (r rawOrder) normalize() (types.Order, error) {
	id := r.OrderID
	if id == "" {
		id = r.ID
	}
	out := types.Order{ID: string(id), Side: types.SideUnknown}

	var errs []error
	if side, err := r.Side.side(); err != nil {
		errs = append(errs, err)
	} else {
		out.Side = side
	}
	if status, err := r.Status.int(); err != nil {
		errs = append(errs, fmt.Errorf("status %w", err))
	} else {
		out.Status = status
	}
	return out, errors.Join(errs...)
}

type rawPaymentTerm struct {
	ID          flexString `json:"id"`
	PaymentType flexString `json:"paymentType"`
}

type rawOrderDetail struct {
	rawOrder
	PaymentTermList []rawPaymentTerm `json:"paymentTermList"`
}

// normalize follows rawOrder.normalize: the detail is usable even when
// the error is non-nil.
func (r rawOrderDetail) normalize() (types.OrderDetail, error) {
	o, err := r.rawOrder.normalize()
	out := types.OrderDetail{ID: o.ID, Side: o.Side, Status: o.Status}
	for _, t := range r.PaymentTermList {
		out.PaymentTerms = append(out.PaymentTerms, types.PaymentTerm{
			PaymentType: string(t.PaymentType),
			PaymentID:   string(t.ID),
		})
	}
	return out, err
}

type rawBalance struct {
	AvailableBalance flexString `json:"availableBalance"`
	Balance          []struct {
		Coin            string     `json:"coin"`
		WalletBalance   flexString `json:"walletBalance"`
		TransferBalance flexString `json:"transferBalance"`
	} `json:"balance"`
}

func (r rawBalance) normalize(coin string) (types.Balance, error) {
	for _, b := range r.Balance {
		if strings.EqualFold(b.Coin, coin) {
			d, err := b.TransferBalance.decimal()
			if err != nil {
				return types.Balance{}, fmt.Errorf("balance %s: %w", coin, err)
			}
			return types.Balance{Coin: b.Coin, Available: d}, nil
		}
	}
	d, err := r.AvailableBalance.decimal()
	if err != nil {
		return types.Balance{}, fmt.Errorf("availableBalance: %w", err)
	}
	return types.Balance{Coin: coin, Available: d}, nil
}

type itemsResult[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

type updateAdRequest struct {
	ID         string   `json:"id"`
	PriceType  string   `json:"priceType"`
	Price      string   `json:"price"`
	MinAmount  string   `json:"minAmount"`
	MaxAmount  string   `json:"maxAmount"`
	PaymentIDs []string `json:"paymentIds"`
	Quantity   string   `json:"quantity"`
	Remark     string   `json:"remark"`
	ActionType string   `json:"actionType"`
}

func newUpdateAdRequest(u types.OfferUpdate) updateAdRequest {
	payments := u.PaymentIDs
	if payments == nil {
		payments = []string{}
	}
	return updateAdRequest{
		ID:         u.ID,
		PriceType:  strconv.Itoa(int(u.PriceType)),
		Price:      u.Price.String(),
		MinAmount:  u.MinAmount.String(),
		MaxAmount:  u.MaxAmount.String(),
		PaymentIDs: payments,
		Quantity:   u.Quantity.String(),
		Remark:     u.Remark,
		ActionType: u.ActionType,
	}
}
