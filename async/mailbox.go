package async

// Mailbox tracks in-flight AsyncErrors together with the callbacks to invoke
// once they complete. Callbacks only ever run inside ProcessMessages, on the
// goroutine that owns the Mailbox, so they may touch scheduler state freely.
//
// A Mailbox is not thread-safe.
type Mailbox struct {
	msgs []message
}

type AsyncErrorResponseHandler func(error)

type message struct {
	Err      *AsyncError
	callback AsyncErrorResponseHandler
}

func NewMailbox() *Mailbox {
	return &Mailbox{}
}

func (bx *Mailbox) Count() int {
	return len(bx.msgs)
}

// NewAsyncError registers cb to run on the first ProcessMessages call after
// the returned AsyncError is completed.
func (bx *Mailbox) NewAsyncError(cb AsyncErrorResponseHandler) *AsyncError {
	msg := message{Err: newAsyncError(), callback: cb}
	bx.msgs = append(bx.msgs, msg)
	return msg.Err
}

// ProcessMessages runs the callbacks of completed messages in registration
// order and drops them from the mailbox. Returns how many ran.
func (bx *Mailbox) ProcessMessages() int {
	var pending []message
	ran := 0
	for _, msg := range bx.msgs {
		if ok, err := msg.Err.TryGetValue(); ok {
			if msg.callback != nil {
				msg.callback(err)
			}
			ran++
		} else {
			pending = append(pending, msg)
		}
	}
	bx.msgs = pending
	return ran
}
