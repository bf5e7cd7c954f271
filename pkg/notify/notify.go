// Package notify announces observed deposits over Teams and email.
package notify

import (
	"context"
	"errors"
)

// Notifier delivers a short message about a deposit.
type Notifier interface {
	Notify(ctx context.Context, subject, message string) error
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, subject, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, subject, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
