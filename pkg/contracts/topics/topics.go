package topics

const (
	// Ciclo de vida das apostas 1v1
	WagerEvents = "wager_events"

	// DLQs
	WagerEventsDLQ = "wager_events_dlq"

	// Canal Redis Pub/Sub usado pelo notification-gateway
	WagerBroadcast = "wager_events_broadcast"
)
