package maintenance

import (
	"context"
	"errors"
)

type mounter interface {
	Mount(ctx context.Context) error
}

// RemountJob retries the realtime subscriptions of views whose mount failed.
// Views that are already live are left untouched by Mount.
type RemountJob struct {
	views mounter
}

func NewRemountJob(views mounter) (*RemountJob, error) {
	if views == nil {
		return nil, errors.New("views required")
	}
	return &RemountJob{views: views}, nil
}

func (j *RemountJob) Name() string { return "catalog-remount" }

func (j *RemountJob) Run(ctx context.Context) error {
	return j.views.Mount(ctx)
}

type resaver interface {
	Resave(ctx context.Context) error
}

// CartResaveJob pushes the in-memory cart back to durable storage while the
// store is degraded.
type CartResaveJob struct {
	cart resaver
}

func NewCartResaveJob(cart resaver) (*CartResaveJob, error) {
	if cart == nil {
		return nil, errors.New("cart store required")
	}
	return &CartResaveJob{cart: cart}, nil
}

func (j *CartResaveJob) Name() string { return "cart-resave" }

func (j *CartResaveJob) Run(ctx context.Context) error {
	return j.cart.Resave(ctx)
}
