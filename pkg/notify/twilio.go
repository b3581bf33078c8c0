package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioSender struct {
	client     *twilio.RestClient
	fromNumber string
}

func NewTwilioSender(accountSID, authToken, fromNumber string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSender{
		client:     client,
		fromNumber: fromNumber,
	}
}

func (t *TwilioSender) SendCode(ctx context.Context, recipient *Recipient, code string) error {
	if recipient.Phone == "" {
		return fmt.Errorf("recipient has no phone number")
	}

	params := &api.CreateMessageParams{}
	params.SetTo(recipient.Phone)
	params.SetFrom(t.fromNumber)
	params.SetBody(fmt.Sprintf("Your ride verification code is: %s. Valid for 10 minutes.", code))

	_, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send code SMS: %w", err)
	}

	return nil
}
