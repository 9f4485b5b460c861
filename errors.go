package mogimail

import "errors"

var (
	// ErrServerClosed is returned by Start after Shutdown.
	ErrServerClosed = errors.New("mogimail: server closed")
	// ErrTooManyRecipients is the internal signal for exceeding the
	// forward-path list cap; callers see it mapped to a 552 reply.
	ErrTooManyRecipients = errors.New("mogimail: too many recipients")
	// ErrMessageTooLarge is the internal signal for exceeding MaxMessageSize;
	// callers see it mapped to a 552 reply.
	ErrMessageTooLarge = errors.New("mogimail: message too large")
	// ErrMalformedVerb is the internal signal for a command word that
	// isn't exactly four ASCII letters; callers see it mapped to a 500 reply.
	ErrMalformedVerb = errors.New("mogimail: malformed command verb")
	// ErrUnknownCommand is the internal signal for a well-formed but
	// unrecognized four-letter verb; callers see it mapped to a 502 reply.
	ErrUnknownCommand = errors.New("mogimail: unrecognized command")
	// ErrHostnameRequired is returned by Start when the Server's hostname is empty.
	ErrHostnameRequired = errors.New("mogimail: hostname is required")
)
