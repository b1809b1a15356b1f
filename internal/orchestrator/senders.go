package orchestrator

import (
	"context"
	"log"

	"github.com/ignite/mailwarm/internal/domain"
)

// AddSenderEmail appends a sender identity to the campaign configuration.
// Like every configuration mutation, rejected while the campaign runs.
func (o *Orchestrator) AddSenderEmail(ctx context.Context, id string, sender domain.SenderEmail) (*domain.Campaign, error) {
	if err := domain.ValidateSender(sender); err != nil {
		return nil, err
	}
	if sender.Domain == "" {
		sender.Domain = domain.NewEmailAddress(sender.Email).Domain
	}
	if err := o.campaigns.AddSender(ctx, id, sender); err != nil {
		return nil, err
	}
	log.Printf("[Orchestrator] Added sender %s to campaign %s", sender.Email, id)
	return o.campaigns.Get(ctx, id)
}

// UpdateSenderEmail replaces the sender entry whose address matches email.
func (o *Orchestrator) UpdateSenderEmail(ctx context.Context, id, email string, sender domain.SenderEmail) (*domain.Campaign, error) {
	if err := domain.ValidateSender(sender); err != nil {
		return nil, err
	}
	if sender.Domain == "" {
		sender.Domain = domain.NewEmailAddress(sender.Email).Domain
	}
	if err := o.campaigns.UpdateSender(ctx, id, email, sender); err != nil {
		return nil, err
	}
	return o.campaigns.Get(ctx, id)
}

// RemoveSenderEmail drops the sender entry whose address matches email.
func (o *Orchestrator) RemoveSenderEmail(ctx context.Context, id, email string) (*domain.Campaign, error) {
	if err := o.campaigns.RemoveSender(ctx, id, email); err != nil {
		return nil, err
	}
	log.Printf("[Orchestrator] Removed sender %s from campaign %s", email, id)
	return o.campaigns.Get(ctx, id)
}
