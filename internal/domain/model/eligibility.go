package model

import "time"

// IsEligible reports whether a new create-ticket job may be enqueued for cfg at now.
//
// The first ticket of the day skips the interval gate. Every later ticket needs
// remaining quota and at least CreateInterval since the last creation stamp.
// The rule must stay equivalent to the FindEligible SQL filter.
func IsEligible(cfg *CompanyConfig, now time.Time) bool {
	if cfg == nil || !cfg.Active {
		return false
	}
	today := cfg.TicketQuotaCompleted
	if today >= cfg.TicketsPerDay {
		return false
	}
	if today == 0 {
		return true
	}
	if cfg.LastTicketCreatedAt == nil {
		return false
	}
	return now.Sub(*cfg.LastTicketCreatedAt) >= cfg.CreateInterval()
}
