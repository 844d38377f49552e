package server

// Event is anything the event loop consumes.
type Event interface {
	isEvent()
}

// ClientRequest carries a decoded request and the channel its reply is
// written to. The loop closes Reply once the reply is complete.
type ClientRequest struct {
	Message Message
	Reply   chan<- string
}

// Reload asks the loop to re-read the configuration file.
type Reload struct{}

// Quit asks the loop to stop every task and exit.
type Quit struct{}

func (ClientRequest) isEvent() {}
func (Reload) isEvent()        {}
func (Quit) isEvent()          {}
