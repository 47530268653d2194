package notification

import (
	"context"

	"github.com/ds124wfegd/interpreter-booking/pkg/onesignal"
)

const sendAfterLayout = "2006-01-02 15:04:05 GMT-0700"

// OneSignalSender adapts the OneSignal client to PushSender.
type OneSignalSender struct {
	client *onesignal.Client
}

func NewOneSignalSender(client *onesignal.Client) *OneSignalSender {
	return &OneSignalSender{client: client}
}

func (s *OneSignalSender) Send(ctx context.Context, req *PushRequest) (*DeliveryAck, error) {
	n := &onesignal.Notification{
		Tags:          req.Tags,
		Data:          req.Data.Map(),
		Title:         req.Titles,
		Contents:      req.Contents,
		IOSBadgeType:  "Increase",
		IOSBadgeCount: 1,
		AndroidSound:  req.Sound.Android,
		IOSSound:      req.Sound.IOS,
	}
	if req.SendAfter != nil {
		n.SendAfter = req.SendAfter.Format(sendAfterLayout)
	}

	resp, err := s.client.Send(ctx, n)
	if err != nil {
		return nil, err
	}
	return &DeliveryAck{ID: resp.ID, Recipients: resp.Recipients}, nil
}
