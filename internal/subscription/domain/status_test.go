package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		name    string
		current Status
		event   Event
		want    Status
		wantErr bool
	}{
		{"payment activates trial", StatusTrialing, Event{Kind: EventPaymentSucceeded}, StatusActive, false},
		{"payment failure from active", StatusActive, Event{Kind: EventPaymentFailed}, StatusFailed, false},
		{"action required from active", StatusActive, Event{Kind: EventPaymentActionRequired}, StatusActionRequired, false},
		{"recovery from failed", StatusFailed, Event{Kind: EventPaymentSucceeded}, StatusActive, false},
		{"past due round trip", StatusPastDue, Event{Kind: EventSubscriptionUpdated, Reported: "active"}, StatusActive, false},
		{"gateway reports past due", StatusActive, Event{Kind: EventSubscriptionUpdated, Reported: "PAST_DUE"}, StatusPastDue, false},
		{"delete cancels", StatusActive, Event{Kind: EventSubscriptionDeleted}, StatusCanceled, false},
		{"first status from none", StatusNone, Event{Kind: EventSubscriptionCreated, Reported: "incomplete"}, StatusIncomplete, false},
		{"same status is a no-op", StatusActive, Event{Kind: EventPaymentSucceeded}, StatusActive, false},
		{"canceled is terminal", StatusCanceled, Event{Kind: EventPaymentSucceeded}, StatusCanceled, true},
		{"expired is terminal", StatusIncompleteExpired, Event{Kind: EventSubscriptionUpdated, Reported: "active"}, StatusIncompleteExpired, true},
		{"unknown reported status", StatusActive, Event{Kind: EventSubscriptionUpdated, Reported: "bogus"}, StatusActive, true},
		{"unknown event kind", StatusActive, Event{Kind: "refund"}, StatusActive, true},
		{"incomplete cannot pause", StatusIncomplete, Event{Kind: EventSubscriptionUpdated, Reported: "paused"}, StatusIncomplete, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Transition(tc.current, tc.event)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseStatusAndTerminal(t *testing.T) {
	status, ok := ParseStatus(" Trialing ")
	assert.True(t, ok)
	assert.Equal(t, StatusTrialing, status)

	_, ok = ParseStatus("refunded")
	assert.False(t, ok)

	assert.True(t, IsTerminal(StatusCanceled))
	assert.False(t, IsTerminal(StatusActive))
}

func TestSubscriptionIsActive(t *testing.T) {
	var nilSub *Subscription
	assert.False(t, nilSub.IsActive())
	assert.True(t, (&Subscription{Status: StatusTrialing}).IsActive())
	assert.False(t, (&Subscription{Status: StatusPastDue}).IsActive())
}
