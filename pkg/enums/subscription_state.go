package enums

// SubscriptionState is the lifecycle of one (table, view) subscription.
type SubscriptionState string

const (
	SubscriptionUnsubscribed SubscriptionState = "unsubscribed"
	SubscriptionSubscribing  SubscriptionState = "subscribing"
	SubscriptionSubscribed   SubscriptionState = "subscribed"
)

// String implements fmt.Stringer.
func (s SubscriptionState) String() string {
	return string(s)
}

// IsLive reports whether the subscription holds or is acquiring a remote slot.
func (s SubscriptionState) IsLive() bool {
	return s == SubscriptionSubscribing || s == SubscriptionSubscribed
}
