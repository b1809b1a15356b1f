package domain

import "time"

// DailyPlan is one day's full schedule: domain → sender → hour → minute.
// Counts reconcile at every level; see Validate.
type DailyPlan struct {
	Day         int          `json:"day"`
	TotalEmails int          `json:"total_emails"`
	Domains     []DomainPlan `json:"domains"`
	ScheduledAt time.Time    `json:"scheduled_at"`
}

// DomainPlan is one recipient domain's share of a day.
type DomainPlan struct {
	Domain      string       `json:"domain"`
	TotalEmails int          `json:"total_emails"`
	Senders     []SenderPlan `json:"senders"`
}

// SenderPlan is one sender identity's share within a domain.
type SenderPlan struct {
	Email       string     `json:"email"`
	TotalEmails int        `json:"total_emails"`
	Hours       []HourPlan `json:"hours"`
}

// HourPlan spreads an hour's count over its 60 minutes.
type HourPlan struct {
	Hour    int     `json:"hour"`
	Count   int     `json:"count"`
	Minutes [60]int `json:"minutes"`
}

// Validate checks that counts reconcile at every level of the tree.
func (p *DailyPlan) Validate() bool {
	domainSum := 0
	for di := range p.Domains {
		d := &p.Domains[di]
		senderSum := 0
		for si := range d.Senders {
			s := &d.Senders[si]
			hourSum := 0
			for hi := range s.Hours {
				h := &s.Hours[hi]
				minuteSum := 0
				for _, m := range h.Minutes {
					minuteSum += m
				}
				if minuteSum != h.Count {
					return false
				}
				hourSum += h.Count
			}
			if hourSum != s.TotalEmails {
				return false
			}
			senderSum += s.TotalEmails
		}
		if senderSum != d.TotalEmails {
			return false
		}
		domainSum += d.TotalEmails
	}
	return domainSum == p.TotalEmails
}
