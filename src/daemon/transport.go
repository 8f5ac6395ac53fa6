package daemon

import (
	"sync"
)

// Transport moves requests from clients to the dispatch loop and responses
// back to the issuing (client, channel) pair. Implementations arbitrate
// submission so at most one request is in flight between pickup points.
type Transport interface {
	Recv() (Request, bool)
	Send(userID int32, channelID int32, response Response)
}

// chanKey addresses one response mailbox.
type chanKey struct {
	user    int32
	channel int32
}

// PipeTransport is the in-process transport: requests travel over an
// unbuffered channel, responses over a per-(client, channel) mailbox. It
// serves tests and single-binary deployments; an out-of-process transport
// would put the same contract on shared memory.
type PipeTransport struct {
	submit sync.Mutex
	reqs   chan Request

	mu        sync.Mutex
	mailboxes map[chanKey]chan Response
	closed    bool
}

// NewPipeTransport creates an open in-process transport.
func NewPipeTransport() *PipeTransport {
	return &PipeTransport{
		reqs:      make(chan Request),
		mailboxes: make(map[chanKey]chan Response),
	}
}

// Recv blocks for the next request. The second result is false once the
// transport has been closed and drained.
func (this *PipeTransport) Recv() (Request, bool) {
	request, ok := <-this.reqs
	return request, ok
}

// Send delivers a response to the mailbox of the issuing channel.
func (this *PipeTransport) Send(userID int32, channelID int32, response Response) {
	this.mailbox(chanKey{user: userID, channel: channelID}) <- response
}

// Call submits one request and blocks for its response. Submission is
// serialized across all callers; responses are matched by (client, channel),
// so a client may keep one call outstanding per channel.
func (this *PipeTransport) Call(request Request) Response {
	box := this.mailbox(chanKey{user: request.UserID, channel: request.ChannelID})

	this.submit.Lock()
	this.reqs <- request
	this.submit.Unlock()

	return <-box
}

// Close stops the transport; a blocked Recv returns with ok == false.
func (this *PipeTransport) Close() {
	this.mu.Lock()
	defer this.mu.Unlock()

	if !this.closed {
		this.closed = true
		close(this.reqs)
	}
}

func (this *PipeTransport) mailbox(key chanKey) chan Response {
	this.mu.Lock()
	defer this.mu.Unlock()

	box, ok := this.mailboxes[key]
	if !ok {
		box = make(chan Response, 1)
		this.mailboxes[key] = box
	}
	return box
}
