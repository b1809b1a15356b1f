// Plan simulator: builds warm-up daily plans from a campaign configuration
// without touching the database, queue, or provider.
//
// Usage:
//   go run ./cmd/plansim \
//     --config=campaign.json \
//     --day=3 \
//     --recipients=5000 \
//     --seed=42
//
// The config file is the campaign configuration JSON, the same shape the
// create-campaign API accepts under "configuration". Pass --days=N to print
// a ramp overview for days 1..N instead of one day's detailed plan.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/orchestrator"
)

func main() {
	var (
		configPath string
		day        int
		days       int
		recipients int
		seed       int64
		dumpJSON   bool
	)

	flag.StringVar(&configPath, "config", "", "path to campaign configuration JSON (required)")
	flag.IntVar(&day, "day", 1, "warm-up day to simulate")
	flag.IntVar(&days, "days", 0, "simulate days 1..N and print a ramp overview instead")
	flag.IntVar(&recipients, "recipients", 0, "available recipient count (0 = unlimited)")
	flag.Int64Var(&seed, "seed", 0, "random seed (0 = time-seeded)")
	flag.BoolVar(&dumpJSON, "json", false, "print the full plan as JSON")
	flag.Parse()

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "FATAL: --config is required")
		flag.Usage()
		os.Exit(1)
	}
	if day < 1 {
		fmt.Fprintln(os.Stderr, "FATAL: --day must be >= 1")
		os.Exit(1)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: reading config: %v\n", err)
		os.Exit(1)
	}

	var cfg domain.Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parsing config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=========================================================")
	fmt.Println(" Mailwarm Daily Plan Simulator")
	fmt.Println("=========================================================")
	fmt.Printf("Config:             %s\n", configPath)
	fmt.Printf("Base daily total:   %d\n", cfg.BaseDailyTotal)
	fmt.Printf("Target sum:         %d over %d days\n", cfg.TargetSum, cfg.QuotaDays)
	fmt.Printf("Domains:            %d\n", len(cfg.Domains))
	fmt.Printf("Senders:            %d (%d active)\n", len(cfg.SenderEmails), countActive(cfg.SenderEmails))
	fmt.Printf("Randomization:      %.2f\n", cfg.RandomizationIntensity)
	if recipients > 0 {
		fmt.Printf("Available:          %d recipients\n", recipients)
	} else {
		fmt.Println("Available:          unlimited")
	}
	if seed != 0 {
		fmt.Printf("Seed:               %d (deterministic)\n", seed)
	}
	fmt.Println("---------------------------------------------------------")

	if days > 0 {
		simulateRamp(&cfg, days, recipients, seed)
		return
	}
	simulateDay(&cfg, day, recipients, seed, dumpJSON)
}

func countActive(senders []domain.SenderEmail) int {
	n := 0
	for _, s := range senders {
		if s.Active {
			n++
		}
	}
	return n
}

func simulateDay(cfg *domain.Configuration, day, recipients int, seed int64, dumpJSON bool) {
	plan, err := orchestrator.SimulatePlan(cfg, day, recipients, seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: simulation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Day %d plan: %d emails\n", plan.Day, plan.TotalEmails)
	if plan.Validate() {
		fmt.Println("✓ Counts reconcile at every level")
	} else {
		fmt.Println("✗ COUNTS DO NOT RECONCILE")
	}
	fmt.Println()

	fmt.Printf("%-30s %8s %8s\n", "Domain", "Emails", "Senders")
	for _, d := range plan.Domains {
		fmt.Printf("%-30s %8d %8d\n", d.Domain, d.TotalEmails, len(d.Senders))
	}
	fmt.Println()

	totals := senderTotals(plan)
	fmt.Printf("%-40s %8s\n", "Sender", "Emails")
	for _, email := range senderOrder(plan) {
		fmt.Printf("%-40s %8d\n", email, totals[email])
	}
	fmt.Println()

	hourly := hourlyTotals(plan)
	fmt.Println("Hourly spread (UTC):")
	for h := 0; h < 24; h++ {
		if hourly[h] == 0 {
			continue
		}
		fmt.Printf("  %02d:00  %4d  %s\n", h, hourly[h], bar(hourly[h], maxHour(hourly)))
	}

	if dumpJSON {
		fmt.Println()
		out, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: encoding plan: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	}
}

func simulateRamp(cfg *domain.Configuration, days, recipients int, seed int64) {
	fmt.Printf("%5s %8s %8s %12s %12s\n", "Day", "Emails", "Hours", "Cumulative", "Reconciles")

	cumulative := 0
	for day := 1; day <= days; day++ {
		plan, err := orchestrator.SimulatePlan(cfg, day, recipients, seed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: simulating day %d: %v\n", day, err)
			os.Exit(1)
		}
		cumulative += plan.TotalEmails

		active := 0
		for _, n := range hourlyTotals(plan) {
			if n > 0 {
				active++
			}
		}

		mark := "✓"
		if !plan.Validate() {
			mark = "✗"
		}
		fmt.Printf("%5d %8d %8d %12d %12s\n", day, plan.TotalEmails, active, cumulative, mark)
	}

	fmt.Println("---------------------------------------------------------")
	fmt.Printf("Cumulative after %d days: %d", days, cumulative)
	if days >= cfg.QuotaDays {
		fmt.Printf(" (target sum %d)", cfg.TargetSum)
	}
	fmt.Println()
}

// senderOrder returns sender emails in first-appearance order across domains.
func senderOrder(plan *domain.DailyPlan) []string {
	seen := make(map[string]bool)
	var order []string
	for _, d := range plan.Domains {
		for _, s := range d.Senders {
			if !seen[s.Email] {
				seen[s.Email] = true
				order = append(order, s.Email)
			}
		}
	}
	return order
}

func senderTotals(plan *domain.DailyPlan) map[string]int {
	totals := make(map[string]int)
	for _, d := range plan.Domains {
		for _, s := range d.Senders {
			totals[s.Email] += s.TotalEmails
		}
	}
	return totals
}

func hourlyTotals(plan *domain.DailyPlan) [24]int {
	var hourly [24]int
	for _, d := range plan.Domains {
		for _, s := range d.Senders {
			for _, h := range s.Hours {
				if h.Hour >= 0 && h.Hour < 24 {
					hourly[h.Hour] += h.Count
				}
			}
		}
	}
	return hourly
}

func maxHour(hourly [24]int) int {
	max := 1
	for _, n := range hourly {
		if n > max {
			max = n
		}
	}
	return max
}

func bar(n, max int) string {
	const width = 40
	filled := n * width / max
	out := make([]byte, filled)
	for i := range out {
		out[i] = '#'
	}
	return string(out)
}
