package core

// Client is a connected user session as seen by the hub.
type Client struct {
	ID     string
	UserID int64
	Events chan *Event
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string, userID int64) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Events: make(chan *Event, 16),
	}
}
