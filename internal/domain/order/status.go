package order

import (
	"context"

	"github.com/go-faster/errors"
)

var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusDelivered, StatusCancelled},
}

// ParseStatus converts s into a Status.
func ParseStatus(s string) (Status, error) {
	switch v := Status(s); v {
	case StatusPending, StatusProcessing, StatusDelivered, StatusCancelled:
		return v, nil
	default:
		return "", errors.Errorf("unknown order status %q", s)
	}
}

// ParsePaymentStatus converts s into a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch v := PaymentStatus(s); v {
	case PaymentUnpaid, PaymentPaid:
		return v, nil
	default:
		return "", errors.Errorf("unknown payment status %q", s)
	}
}

// ParsePaymentMethod converts s into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch v := PaymentMethod(s); v {
	case PaymentCOD, PaymentCard:
		return v, nil
	default:
		return "", errors.Errorf("unknown payment method %q", s)
	}
}

// CanTransition reports whether an order may move from s to next. Staying in
// the same status is always allowed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanTransition reports whether payment may move from p to next. Paid is final.
func (p PaymentStatus) CanTransition(next PaymentStatus) bool {
	return p == next || (p == PaymentUnpaid && next == PaymentPaid)
}

// UpdateStatus moves an order to a new fulfilment and payment status. Empty
// values keep the current one. Line items are never touched.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status, payment PaymentStatus) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", id)
	}

	if status == "" {
		status = o.Status
	}
	if payment == "" {
		payment = o.PaymentStatus
	}
	if !o.Status.CanTransition(status) {
		return nil, &TransitionError{Field: "orderStatus", From: string(o.Status), To: string(status)}
	}
	if !o.PaymentStatus.CanTransition(payment) {
		return nil, &TransitionError{Field: "paymentStatus", From: string(o.PaymentStatus), To: string(payment)}
	}
	if status == o.Status && payment == o.PaymentStatus {
		return o, nil
	}

	if err := s.orders.UpdateStatus(ctx, id, status, payment); err != nil {
		return nil, errors.Wrapf(err, "update order %s", id)
	}
	o.Status = status
	o.PaymentStatus = payment
	return o, nil
}
