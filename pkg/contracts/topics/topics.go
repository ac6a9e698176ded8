package topics

const (
	// Tickets
	TicketPlaced        = "ticket_placed"
	TicketStatusUpdated = "ticket_status_updated"

	// DLQs
	TicketPlacedDLQ        = "ticket_placed_dlq"
	TicketStatusUpdatedDLQ = "ticket_status_updated_dlq"
)
