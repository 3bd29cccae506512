package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/shopspring/decimal"

	"loan-payment-service/internal/client"
)

// loanSeed is filled by faker for every generated loan.
type loanSeed struct {
	PrincipalCents int64 `faker:"boundary_start=10000, boundary_end=500000"`
	TermMonths     int   `faker:"oneof: 6, 12, 24, 36"`
}

type tally struct {
	mu       sync.Mutex
	outcomes map[string]int
	paid     map[string]decimal.Decimal
}

func (t *tally) add(loanID, outcome string, amount decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcomes[outcome]++
	if outcome == "accepted" {
		t.paid[loanID] = t.paid[loanID].Add(amount)
	}
}

func main() {
	server := flag.String("server", "http://localhost:8080", "loan service base URL")
	token := flag.String("token", os.Getenv("LOANCTL_TOKEN"), "bearer token for /api/v1")
	loans := flag.Int("loans", 5, "number of loans to create")
	rps := flag.Int("rps", 50, "payment requests per second")
	duration := flag.Duration("duration", 10*time.Second, "how long to send payments")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(*server, *token)

	// 1. Seed loans
	principals := make(map[string]decimal.Decimal, *loans)
	ids := make([]string, 0, *loans)
	for i := 0; i < *loans; i++ {
		var seed loanSeed
		if err := faker.FakeData(&seed); err != nil {
			log.Fatalf("failed to generate loan: %v", err)
		}
		principal := decimal.New(seed.PrincipalCents, -2)
		loan, err := c.CreateLoan(ctx, principal, seed.TermMonths)
		if err != nil {
			log.Fatalf("failed to create loan: %v", err)
		}
		principals[loan.ID] = principal
		ids = append(ids, loan.ID)
		log.Printf("INFO: created %s principal=%s term=%d", loan.ID, principal.StringFixed(2), seed.TermMonths)
	}

	// 2. Hammer them with concurrent payments
	t := &tally{outcomes: map[string]int{}, paid: map[string]decimal.Decimal{}}
	ticker := time.NewTicker(time.Second / time.Duration(*rps))
	defer ticker.Stop()
	deadline := time.After(*duration)

	var wg sync.WaitGroup
loop:
	for {
		select {
		case <-ticker.C:
			loanID := ids[rand.Intn(len(ids))]
			// Each payment is 5% to 40% of the principal.
			share := decimal.New(int64(5+rand.Intn(36)), -2)
			amount := principals[loanID].Mul(share).Round(2)
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.Pay(ctx, loanID, amount)
				t.add(loanID, outcome(err), amount)
			}()
		case <-deadline:
			break loop
		case <-ctx.Done():
			break loop
		}
	}
	wg.Wait()

	// 3. Report and verify that no loan was overpaid
	keys := make([]string, 0, len(t.outcomes))
	for k := range t.outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		log.Printf("INFO: %-20s %d", k, t.outcomes[k])
	}

	failed := false
	for _, id := range ids {
		loan, err := c.GetLoan(context.Background(), id)
		if err != nil {
			log.Printf("ERROR: failed to read %s: %v", id, err)
			failed = true
			continue
		}
		want := principals[id].Sub(t.paid[id]).StringFixed(2)
		if loan.OutstandingBalance == nil || *loan.OutstandingBalance != want {
			log.Printf("ERROR: %s outstanding mismatch: service=%v accepted-sum=%s", id, loan.OutstandingBalance, want)
			failed = true
			continue
		}
		log.Printf("INFO: %s status=%s outstanding=%s", id, loan.Status, want)
	}
	if failed {
		os.Exit(1)
	}
}

func outcome(err error) string {
	if err == nil {
		return "accepted"
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return "transport_error"
}
