// Command listads prints the account's online ads for one side as JSON.
//
//	listads [--side 0|1] [config.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"p2p-ad-bot/internal/logger"
	"p2p-ad-bot/internal/store"
	"p2p-ad-bot/internal/types"
	"p2p-ad-bot/internal/venue/bybit"
)

type adView struct {
	ID         string   `json:"id"`
	Side       string   `json:"side"`
	Price      string   `json:"price"`
	Quantity   string   `json:"quantity"`
	MinAmount  string   `json:"minAmount"`
	MaxAmount  string   `json:"maxAmount"`
	Remark     string   `json:"remark"`
	PaymentIDs []string `json:"paymentIds"`
}

func main() {
	side := flag.Int("side", int(types.SideSell), "ad side: 0 = BUY, 1 = SELL")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}

	if *side != int(types.SideBuy) && *side != int(types.SideSell) {
		log.Fatalf("invalid --side %d: must be 0 or 1", *side)
	}

	path := "config.yaml"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		log.Fatal(err)
	}

	client, err := bybit.New(bybit.Params{
		APIKey:     cfg.Bybit.APIKey,
		APISecret:  cfg.Bybit.APISecret,
		Testnet:    cfg.Bybit.Testnet,
		BaseURL:    cfg.Bybit.BaseURL,
		RecvWindow: time.Duration(cfg.Bybit.RecvWindowMs) * time.Millisecond,
		Timeout:    time.Duration(cfg.Bybit.TimeoutSeconds) * time.Second,
		Coin:       cfg.Bybit.Coin,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	offers, err := client.ListOffers(ctx, types.Side(*side))
	if err != nil {
		log.Fatal(err)
	}

	views := make([]adView, 0, len(offers))
	for _, o := range offers {
		views = append(views, adView{
			ID:         o.ID,
			Side:       o.Side.String(),
			Price:      o.Price.String(),
			Quantity:   o.Quantity.String(),
			MinAmount:  o.MinAmount.String(),
			MaxAmount:  o.MaxAmount.String(),
			Remark:     o.Remark,
			PaymentIDs: o.PaymentIDs,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(views); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
