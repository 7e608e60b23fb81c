package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/inspectconnect/internal/clock"
	"github.com/smallbiznis/inspectconnect/internal/config"
	"github.com/smallbiznis/inspectconnect/internal/events"
	gatewaydomain "github.com/smallbiznis/inspectconnect/internal/gateway/domain"
	obslogger "github.com/smallbiznis/inspectconnect/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/inspectconnect/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/inspectconnect/internal/payment/domain"
	"github.com/smallbiznis/inspectconnect/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/inspectconnect/internal/subscription/domain"
	userdomain "github.com/smallbiznis/inspectconnect/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
	EventInvoicePaymentSucceeded    = "invoice.payment_succeeded"
	EventInvoicePaymentFailed       = "invoice.payment_failed"
	EventInvoiceActionRequired      = "invoice.payment_action_required"
	EventSubscriptionUpdated        = "customer.subscription.updated"
	EventSubscriptionDeleted        = "customer.subscription.deleted"
)

const (
	defaultBillingReason  = "unknown"
	defaultFailureCode    = "unknown"
	defaultFailureMessage = "Payment failed"
)

const (
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

type ReconcilerParams struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  paymentdomain.Repository

	UserRepo         userdomain.Repository
	SubscriptionRepo subscriptiondomain.Repository
	Gateway          gatewaydomain.Gateway
	Billing          *config.BillingConfigHolder

	Limiter    *ratelimit.BillingLimiter `optional:"true"`
	Notifier   *events.Notifier          `optional:"true"`
	ObsMetrics *obsmetrics.Metrics       `optional:"true"`
}

// Reconciler applies verified gateway webhook deliveries to the local
// payment, subscription and user records.
type Reconciler struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	repo     paymentdomain.Repository
	userRepo userdomain.Repository
	subRepo  subscriptiondomain.Repository
	gateway  gatewaydomain.Gateway
	billing  *config.BillingConfigHolder

	limiter    *ratelimit.BillingLimiter
	notifier   *events.Notifier
	obsMetrics *obsmetrics.Metrics
}

func NewReconciler(p ReconcilerParams) paymentdomain.Reconciler {
	return &Reconciler{
		db:  p.DB,
		log: p.Log.Named("payment.webhook"),

		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		subRepo:  p.SubscriptionRepo,
		gateway:  p.Gateway,
		billing:  p.Billing,

		limiter:    p.Limiter,
		notifier:   p.Notifier,
		obsMetrics: p.ObsMetrics,
	}
}

// delivery is one event being applied inside the reconciliation transaction.
type delivery struct {
	event      *gatewaydomain.Event
	customerID string
	occurredAt time.Time
	log        *zap.Logger

	notifications []events.BillingEvent
}

func (d *delivery) notify(evt events.BillingEvent) {
	evt.CustomerID = d.customerID
	evt.SourceEventID = d.event.ID
	evt.OccurredAt = d.occurredAt
	d.notifications = append(d.notifications, evt)
}

func isHandled(eventType string) bool {
	switch eventType {
	case EventCheckoutCompleted,
		EventCheckoutAsyncPaymentFailed,
		EventInvoicePaymentSucceeded,
		EventInvoicePaymentFailed,
		EventInvoiceActionRequired,
		EventSubscriptionUpdated,
		EventSubscriptionDeleted:
		return true
	default:
		return false
	}
}

// HandleWebhook verifies a delivery, records it in the event ledger and
// applies it once. Redeliveries of a processed event are acknowledged
// without touching any record.
func (s *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) (*paymentdomain.WebhookResult, error) {
	if strings.TrimSpace(signature) == "" {
		s.obsMetrics.RecordWebhookEvent(ctx, "", outcomeRejected)
		return nil, paymentdomain.ErrMissingSignature
	}

	event, err := s.gateway.VerifyWebhookSignature(payload, signature)
	if err != nil {
		s.log.Warn("webhook signature verification failed", zap.Error(err))
		s.obsMetrics.RecordWebhookEvent(ctx, "", outcomeRejected)
		return nil, err
	}
	if event == nil || strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Type) == "" {
		s.obsMetrics.RecordWebhookEvent(ctx, "", outcomeRejected)
		return nil, paymentdomain.ErrInvalidEvent
	}

	var owner stripeCustomerOwned
	_ = decodeObject(event.Object, &owner)
	customerID := owner.Customer.String()

	log := obslogger.WithGatewayEvent(obslogger.WithContext(ctx, s.log), event.ID, event.Type, customerID)
	result := &paymentdomain.WebhookResult{Received: true, EventType: event.Type}

	billing := s.billing.Get()
	if !isHandled(event.Type) || billing.IsIgnored(event.Type) {
		log.Info("webhook event ignored")
		s.obsMetrics.RecordWebhookEvent(ctx, event.Type, paymentdomain.OutcomeIgnored)
		return result, nil
	}

	// Unknown customers are rejected before the ledger write so nothing is persisted.
	known, err := s.userRepo.FindByStripeCustomerID(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}
	if customerID == "" || known == nil {
		log.Warn("webhook event for unknown customer")
		s.obsMetrics.RecordWebhookEvent(ctx, event.Type, outcomeRejected)
		return nil, paymentdomain.ErrUserNotFound
	}

	now := s.clock.Now()
	record := &paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        gatewaydomain.ProviderStripe,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		CustomerID:      customerID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		log.Error("failed to record webhook event", zap.Error(err))
		s.obsMetrics.RecordWebhookEvent(ctx, event.Type, outcomeFailed)
		return nil, err
	}
	if !inserted {
		stored, err := s.repo.FindEvent(ctx, s.db, gatewaydomain.ProviderStripe, event.ID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			log.Info("webhook event already processed")
			s.obsMetrics.RecordWebhookEvent(ctx, event.Type, outcomeDuplicate)
			result.Duplicate = true
			return result, nil
		}
		record = stored
	}

	// Once the delivery is in the ledger it is acknowledged; failures are
	// either final (marked rejected) or left for the replay job.
	if err := s.process(ctx, event, record, log); err != nil {
		if isRejection(err) {
			if err := s.repo.MarkProcessed(ctx, s.db, record.ID, outcomeRejected, s.clock.Now()); err != nil {
				log.Error("failed to mark webhook event rejected", zap.Error(err))
			}
			return result, nil
		}
		log.Warn("webhook event deferred to replay", zap.Error(err))
		result.Deferred = true
	}
	return result, nil
}

// ReplayPending re-applies ledger rows received before the cutoff that were
// never marked processed. Stored payloads were verified when they arrived.
func (s *Reconciler) ReplayPending(ctx context.Context, receivedBefore time.Time, limit int) (int, error) {
	records, err := s.repo.ListUnprocessed(ctx, s.db, receivedBefore, limit)
	if err != nil {
		return 0, err
	}

	var (
		replayed int
		errs     error
	)
	for _, record := range records {
		log := obslogger.WithGatewayEvent(obslogger.WithContext(ctx, s.log), record.ProviderEventID, record.EventType, record.CustomerID)

		event, err := decodeStoredEvent(record.Payload)
		if err != nil {
			log.Warn("stored webhook event unreadable", zap.Error(err))
			errs = errors.Join(errs, s.repo.MarkProcessed(ctx, s.db, record.ID, outcomeRejected, s.clock.Now()))
			continue
		}

		err = s.process(ctx, event, record, log.With(zap.Bool("replay", true)))
		switch {
		case err == nil:
			replayed++
		case isRejection(err):
			errs = errors.Join(errs, s.repo.MarkProcessed(ctx, s.db, record.ID, outcomeRejected, s.clock.Now()))
		case errors.Is(err, paymentdomain.ErrCustomerBusy):
			// picked up again on the next run
		default:
			errs = errors.Join(errs, err)
		}
	}
	return replayed, errs
}

func isRejection(err error) bool {
	return errors.Is(err, paymentdomain.ErrUserNotFound) || errors.Is(err, paymentdomain.ErrInvalidPayload)
}

// process serializes on the customer lock and applies the event in one transaction.
func (s *Reconciler) process(ctx context.Context, event *gatewaydomain.Event, record *paymentdomain.EventRecord, log *zap.Logger) error {
	customerID := record.CustomerID
	if customerID != "" {
		token, ok, err := s.limiter.TryLockCustomer(ctx, customerID)
		if err != nil {
			log.Error("failed to acquire customer lock", zap.Error(err))
			s.obsMetrics.RecordWebhookEvent(ctx, event.Type, outcomeFailed)
			return err
		}
		if !ok {
			log.Warn("customer webhook already in progress")
			s.obsMetrics.RecordWebhookEvent(ctx, event.Type, outcomeRejected)
			return paymentdomain.ErrCustomerBusy
		}
		defer func() {
			if err := s.limiter.ReleaseCustomer(context.Background(), customerID, token); err != nil {
				log.Warn("failed to release customer lock", zap.Error(err))
			}
		}()
	}

	d := &delivery{
		event:      event,
		customerID: customerID,
		occurredAt: s.occurredAt(event),
		log:        log,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.apply(ctx, tx, d); err != nil {
			return err
		}
		return s.repo.MarkProcessed(ctx, tx, record.ID, paymentdomain.OutcomeApplied, s.clock.Now())
	})
	if err != nil {
		if isRejection(err) {
			log.Warn("webhook event rejected", zap.Error(err))
			s.obsMetrics.RecordWebhookEvent(ctx, event.Type, outcomeRejected)
		} else {
			log.Error("failed to apply webhook event", zap.Error(err))
			s.obsMetrics.RecordWebhookEvent(ctx, event.Type, outcomeFailed)
		}
		return err
	}

	log.Info("webhook event applied")
	s.obsMetrics.RecordWebhookEvent(ctx, event.Type, paymentdomain.OutcomeApplied)
	for _, evt := range d.notifications {
		s.notifier.Notify(ctx, evt)
	}
	return nil
}

// occurredAt orders deliveries: a write older than the stored status time is stale.
func (s *Reconciler) occurredAt(event *gatewaydomain.Event) time.Time {
	if event.Created > 0 {
		return time.Unix(event.Created, 0).UTC()
	}
	return s.clock.Now().Truncate(time.Second)
}

func (s *Reconciler) apply(ctx context.Context, tx *gorm.DB, d *delivery) error {
	switch d.event.Type {
	case EventCheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, tx, d)
	case EventCheckoutAsyncPaymentFailed:
		return s.applyCheckoutFailed(ctx, tx, d)
	case EventInvoicePaymentSucceeded:
		return s.applyInvoice(ctx, tx, d, paymentdomain.StatusPaid, subscriptiondomain.EventPaymentSucceeded)
	case EventInvoicePaymentFailed:
		return s.applyInvoice(ctx, tx, d, paymentdomain.StatusFailed, subscriptiondomain.EventPaymentFailed)
	case EventInvoiceActionRequired:
		return s.applyInvoice(ctx, tx, d, paymentdomain.StatusActionRequired, subscriptiondomain.EventPaymentActionRequired)
	case EventSubscriptionUpdated:
		return s.applySubscriptionChange(ctx, tx, d, subscriptiondomain.EventSubscriptionUpdated)
	case EventSubscriptionDeleted:
		return s.applySubscriptionChange(ctx, tx, d, subscriptiondomain.EventSubscriptionDeleted)
	default:
		return nil
	}
}

func (s *Reconciler) applyCheckoutCompleted(ctx context.Context, tx *gorm.DB, d *delivery) error {
	var session stripeCheckoutSession
	if err := decodeObject(d.event.Object, &session); err != nil {
		return err
	}
	user, err := s.lockUser(ctx, tx, d.customerID)
	if err != nil {
		return err
	}

	paymentStatus := session.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = paymentdomain.StatusPaid
	}
	payment := s.newPayment(d, user)
	payment.CheckoutSessionID = session.ID
	payment.StripeSubscriptionID = session.Subscription.String()
	payment.PaymentIntentID = session.PaymentIntent.String()
	payment.InvoiceID = session.Invoice.ID
	payment.HostedInvoiceURL = session.Invoice.HostedInvoiceURL
	payment.Amount = session.AmountTotal
	payment.Currency = s.currency(session.Currency)
	payment.Status = paymentdomain.StatusPaid
	payment.PaymentStatus = paymentStatus
	if err := s.recordPayment(ctx, tx, d, payment); err != nil {
		return err
	}

	succeeded := subscriptiondomain.Event{Kind: subscriptiondomain.EventPaymentSucceeded}
	if subID := session.Subscription.String(); subID != "" {
		update := subscriptiondomain.StatusUpdate{LatestSessionID: session.ID}
		if session.SubscriptionDetails != nil {
			update.CurrentPeriodStart = session.SubscriptionDetails.CurrentPeriodStart
			update.CurrentPeriodEnd = session.SubscriptionDetails.CurrentPeriodEnd
		}
		refused, err := s.applySubscriptionStatus(ctx, tx, d, subID, succeeded, update)
		if err != nil || refused {
			return err
		}
	}
	return s.applyUserStatus(ctx, tx, d, user, succeeded)
}

func (s *Reconciler) applyCheckoutFailed(ctx context.Context, tx *gorm.DB, d *delivery) error {
	var session stripeCheckoutSession
	if err := decodeObject(d.event.Object, &session); err != nil {
		return err
	}
	user, err := s.lockUser(ctx, tx, d.customerID)
	if err != nil {
		return err
	}

	payment := s.newPayment(d, user)
	payment.CheckoutSessionID = session.ID
	payment.StripeSubscriptionID = session.Subscription.String()
	payment.PaymentIntentID = session.PaymentIntent.String()
	payment.Amount = session.AmountTotal
	payment.Currency = s.currency(session.Currency)
	payment.Status = paymentdomain.StatusFailed
	payment.PaymentStatus = session.PaymentStatus
	if err := s.recordPayment(ctx, tx, d, payment); err != nil {
		return err
	}

	return s.applyUserStatus(ctx, tx, d, user, subscriptiondomain.Event{Kind: subscriptiondomain.EventPaymentFailed})
}

// applyInvoice records the invoice outcome. Only a paid invoice moves the
// subscription mirror; failures are tracked on the user until the gateway
// reports its own subscription status.
func (s *Reconciler) applyInvoice(ctx context.Context, tx *gorm.DB, d *delivery, status string, kind subscriptiondomain.EventKind) error {
	var invoice stripeInvoice
	if err := decodeObject(d.event.Object, &invoice); err != nil {
		return err
	}
	user, err := s.lockUser(ctx, tx, d.customerID)
	if err != nil {
		return err
	}

	billingReason := strings.TrimSpace(invoice.BillingReason)
	if billingReason == "" {
		billingReason = defaultBillingReason
	}

	payment := s.newPayment(d, user)
	payment.InvoiceID = invoice.ID
	payment.PaymentIntentID = invoice.PaymentIntent.String()
	payment.StripeSubscriptionID = invoice.subscriptionID()
	payment.Currency = s.currency(invoice.Currency)
	payment.Status = status
	payment.BillingReason = billingReason
	payment.AttemptCount = invoice.AttemptCount

	switch status {
	case paymentdomain.StatusPaid:
		payment.Amount = invoice.AmountPaid
		payment.InvoiceNumber = invoice.Number
		payment.InvoicePDF = invoice.InvoicePDF
		payment.HostedInvoiceURL = invoice.HostedInvoiceURL
		payment.PeriodStart = invoice.PeriodStart
		payment.PeriodEnd = invoice.PeriodEnd
	case paymentdomain.StatusFailed:
		payment.Amount = invoice.AmountDue
		payment.FailureCode = defaultFailureCode
		payment.FailureMessage = defaultFailureMessage
		if fe := invoice.LastFinalizationError; fe != nil {
			if code := strings.TrimSpace(fe.Code); code != "" {
				payment.FailureCode = code
			}
			if msg := strings.TrimSpace(fe.Message); msg != "" {
				payment.FailureMessage = msg
			}
		}
	default:
		payment.Amount = invoice.AmountDue
	}
	if err := s.recordPayment(ctx, tx, d, payment); err != nil {
		return err
	}

	event := subscriptiondomain.Event{Kind: kind}
	if status == paymentdomain.StatusPaid {
		if subID := invoice.subscriptionID(); subID != "" {
			refused, err := s.applySubscriptionStatus(ctx, tx, d, subID, event, subscriptiondomain.StatusUpdate{})
			if err != nil || refused {
				return err
			}
		}
	}
	return s.applyUserStatus(ctx, tx, d, user, event)
}

func (s *Reconciler) applySubscriptionChange(ctx context.Context, tx *gorm.DB, d *delivery, kind subscriptiondomain.EventKind) error {
	var object stripeSubscription
	if err := decodeObject(d.event.Object, &object); err != nil {
		return err
	}
	if strings.TrimSpace(object.ID) == "" {
		return paymentdomain.ErrInvalidPayload
	}
	user, err := s.lockUser(ctx, tx, d.customerID)
	if err != nil {
		return err
	}

	event := subscriptiondomain.Event{Kind: kind, Reported: subscriptiondomain.Status(object.Status)}
	update := subscriptiondomain.StatusUpdate{}
	if kind == subscriptiondomain.EventSubscriptionUpdated {
		update.CurrentPeriodStart, update.CurrentPeriodEnd = object.period()
	}
	refused, err := s.applySubscriptionStatus(ctx, tx, d, object.ID, event, update)
	if err != nil || refused {
		return err
	}
	return s.applyUserStatus(ctx, tx, d, user, event)
}

func (s *Reconciler) lockUser(ctx context.Context, tx *gorm.DB, customerID string) (*userdomain.User, error) {
	if customerID == "" {
		return nil, paymentdomain.ErrUserNotFound
	}
	user, err := s.userRepo.FindByStripeCustomerIDForUpdate(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, paymentdomain.ErrUserNotFound
	}
	return user, nil
}

func (s *Reconciler) newPayment(d *delivery, user *userdomain.User) *paymentdomain.Payment {
	now := s.clock.Now()
	return &paymentdomain.Payment{
		ID:          s.genID.Generate(),
		UserID:      user.ID,
		EventID:     d.event.ID,
		EventType:   d.event.Type,
		CustomerID:  d.customerID,
		ProcessedAt: now,
		PaymentJSON: datatypes.JSON(d.event.Object),
		CreatedAt:   now,
	}
}

func (s *Reconciler) currency(value string) string {
	return gatewaydomain.NormalizeCurrency(value, s.billing.Get().DefaultCurrency)
}

func (s *Reconciler) recordPayment(ctx context.Context, tx *gorm.DB, d *delivery, payment *paymentdomain.Payment) error {
	inserted, err := s.repo.InsertPayment(ctx, tx, payment)
	if err != nil {
		return err
	}
	if !inserted {
		d.log.Info("payment already recorded for event")
		return nil
	}
	d.notify(events.BillingEvent{
		Type:                 events.RoutingPaymentRecorded,
		UserID:               payment.UserID.String(),
		StripeSubscriptionID: payment.StripeSubscriptionID,
		Status:               payment.Status,
	})
	return nil
}

// applySubscriptionStatus moves the subscription mirror. A missing mirror or a
// stale delivery is logged and skipped. A transition the state machine
// refuses is reported so the user cache is left alone as well.
func (s *Reconciler) applySubscriptionStatus(
	ctx context.Context,
	tx *gorm.DB,
	d *delivery,
	stripeSubscriptionID string,
	event subscriptiondomain.Event,
	update subscriptiondomain.StatusUpdate,
) (bool, error) {
	sub, err := s.subRepo.FindByStripeIDForUpdate(ctx, tx, stripeSubscriptionID)
	if err != nil {
		return false, err
	}
	log := d.log.With(zap.String("subscription_id", stripeSubscriptionID))
	if sub == nil {
		log.Warn("subscription mirror not found")
		return false, nil
	}
	if !sub.StatusUpdatedAt.IsZero() && d.occurredAt.Before(sub.StatusUpdatedAt) {
		log.Info("stale subscription update skipped",
			zap.Time("occurred_at", d.occurredAt),
			zap.Time("status_updated_at", sub.StatusUpdatedAt),
		)
		return false, nil
	}

	next, err := subscriptiondomain.Transition(sub.Status, event)
	if err != nil {
		log.Warn("subscription transition rejected",
			zap.String("from", string(sub.Status)),
			zap.String("event", string(event.Kind)),
			zap.String("reported", string(event.Reported)),
		)
		return true, nil
	}

	update.Status = next
	update.UpdatedAt = d.occurredAt
	if err := s.subRepo.UpdateStatus(ctx, tx, sub.ID, update); err != nil {
		return false, err
	}
	if next != sub.Status {
		d.notify(events.BillingEvent{
			Type:                 events.RoutingSubscriptionStatusChanged,
			UserID:               sub.UserID.String(),
			StripeSubscriptionID: stripeSubscriptionID,
			Status:               string(next),
		})
	}
	return false, nil
}

// applyUserStatus mirrors the event onto the user's cached status. The cache
// spans every subscription the user has held, so it follows the newest event
// rather than the per-subscription state machine: a canceled user becomes
// active again once a new subscription is paid.
func (s *Reconciler) applyUserStatus(ctx context.Context, tx *gorm.DB, d *delivery, user *userdomain.User, event subscriptiondomain.Event) error {
	if user.StatusUpdatedAt != nil && d.occurredAt.Before(*user.StatusUpdatedAt) {
		d.log.Info("stale user status update skipped",
			zap.Time("occurred_at", d.occurredAt),
			zap.Time("status_updated_at", *user.StatusUpdatedAt),
		)
		return nil
	}

	next, err := event.Target()
	if err != nil {
		d.log.Warn("user status update rejected",
			zap.String("event", string(event.Kind)),
			zap.String("reported", string(event.Reported)),
		)
		return nil
	}

	return s.userRepo.UpdateSubscriptionState(ctx, tx, user.ID, userdomain.SubscriptionState{
		Status:    string(next),
		UpdatedAt: d.occurredAt,
	})
}
