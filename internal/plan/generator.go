// Package plan builds the hierarchical daily send schedule for a campaign:
// a day's quota split across sender domains, then across sender identities,
// then over hours of the day and minutes of each hour.
package plan

import (
	"fmt"
	"time"

	"github.com/ignite/mailwarm/internal/domain"
	"github.com/ignite/mailwarm/internal/randx"
)

// Generator turns a campaign configuration into daily plans. All randomness
// comes from the kernel, so a seeded kernel reproduces identical plans.
type Generator struct {
	kernel *randx.Kernel
}

// NewGenerator returns a generator drawing from k.
func NewGenerator(k *randx.Kernel) *Generator {
	return &Generator{kernel: k}
}

// Kernel exposes the underlying kernel for callers that share its stream.
func (g *Generator) Kernel() *randx.Kernel {
	return g.kernel
}

// DailyTotal returns the quota-curve target for one day before the
// available-recipient cap.
func (g *Generator) DailyTotal(cfg *domain.Configuration, day int) int {
	return g.kernel.DailyQuota(day, cfg.BaseDailyTotal, cfg.QuotaDays, cfg.TargetSum, cfg.RandomizationIntensity)
}

// BuildDailyPlan constructs the full domain → sender → hour → minute tree
// for one campaign day, capped by the number of available recipients. Counts
// reconcile at every level of the returned plan.
func (g *Generator) BuildDailyPlan(cfg *domain.Configuration, day, availableRecipients int) (*domain.DailyPlan, error) {
	if len(cfg.Domains) == 0 {
		return nil, &domain.ValidationError{Field: "domains", Reason: "at least one domain is required"}
	}
	if day < 1 {
		return nil, &domain.ValidationError{Field: "day", Reason: "must be >= 1"}
	}

	dailyTotal := g.DailyTotal(cfg, day)
	if availableRecipients < dailyTotal {
		dailyTotal = availableRecipients
	}
	dp := &domain.DailyPlan{
		Day:         day,
		ScheduledAt: time.Now().UTC(),
	}
	if dailyTotal <= 0 {
		return dp, nil
	}
	dp.TotalEmails = dailyTotal

	numSenders := cfg.MaxActiveSendersPerDomain()
	domainSplit := g.kernel.Split(dailyTotal, len(cfg.Domains))
	for i, sendDomain := range cfg.Domains {
		domainTotal := domainSplit[i]
		if domainTotal <= 0 {
			continue
		}
		dplan := domain.DomainPlan{Domain: sendDomain, TotalEmails: domainTotal}

		senderSplit := g.kernel.SenderSplit(domainTotal, numSenders, cfg.MaxEmailPercentage, cfg.RandomizationIntensity)
		actives := cfg.ActiveSenders(sendDomain)
		for j, senderTotal := range senderSplit {
			if senderTotal <= 0 {
				continue
			}
			email := ""
			if j < len(actives) {
				email = actives[j].Email
			} else {
				email = fmt.Sprintf("sender%d@%s", j+1, sendDomain)
			}
			splan := domain.SenderPlan{Email: email, TotalEmails: senderTotal}

			hours := g.kernel.HourlyDistribution(senderTotal, cfg.RandomizationIntensity)
			for h := 0; h < 24; h++ {
				if hours[h] <= 0 {
					continue
				}
				splan.Hours = append(splan.Hours, domain.HourPlan{
					Hour:    h,
					Count:   hours[h],
					Minutes: g.kernel.MinuteDistribution(hours[h]),
				})
			}
			dplan.Senders = append(dplan.Senders, splan)
		}
		dp.Domains = append(dp.Domains, dplan)
	}
	return dp, nil
}
