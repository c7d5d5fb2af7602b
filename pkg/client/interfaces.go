package client

// ChatClient is the request and delivery surface of a Client.
// It allows mocking in tests while *Client implements all these methods.
type ChatClient interface {
	Name() string
	Join(room string, password *string) error
	Leave() error
	ListRooms() ([]string, error)
	ListUsers() ([]string, error)
	Nick(name string) error
	SendPrivate(target string, body []byte) error
	SendRoom(room string, body []byte) error

	Deliveries() <-chan Delivery
	Done() <-chan struct{}
	Close() error
}

var _ ChatClient = (*Client)(nil)
