package notify

import "context"

// Sender delivers a one-time code to a recipient out of band. The code
// never travels back through the API after issuance, so delivery is the
// only place the plaintext appears.
type Sender interface {
	SendCode(ctx context.Context, recipient *Recipient, code string) error
}

type Recipient struct {
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Multi fans a code out to every configured channel and succeeds if at
// least one delivery succeeds.
type Multi struct {
	senders []Sender
}

func NewMulti(senders ...Sender) *Multi {
	return &Multi{senders: senders}
}

func (m *Multi) SendCode(ctx context.Context, recipient *Recipient, code string) error {
	var lastErr error
	delivered := false

	for _, s := range m.senders {
		if err := s.SendCode(ctx, recipient, code); err != nil {
			lastErr = err
			continue
		}
		delivered = true
	}

	if !delivered {
		return lastErr
	}
	return nil
}
