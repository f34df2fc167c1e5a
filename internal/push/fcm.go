// README: FCM offer sink. Reaches workers whose app is backgrounded and
// holds no live push connection.
package push

import (
	"context"
	"fmt"
	"strconv"

	"firebase.google.com/go/v4/messaging"

	"usta/internal/modules/order"
)

type FCMSink struct {
	client *messaging.Client
}

func NewFCMSink(client *messaging.Client) *FCMSink {
	return &FCMSink{client: client}
}

// SendOffer delivers an order offer as a high-priority data message.
func (s *FCMSink) SendOffer(ctx context.Context, deviceToken string, o *order.Order, distanceKm float64) error {
	if deviceToken == "" {
		return fmt.Errorf("empty device token for order %s", string(o.ID))
	}

	msg := &messaging.Message{
		Token: deviceToken,
		Data: map[string]string{
			"type":         TypeOrderOffer,
			"order_id":     string(o.ID),
			"job_category": strconv.FormatInt(o.JobCategory, 10),
			"lat":          strconv.FormatFloat(o.Location.Lat, 'f', 6, 64),
			"lng":          strconv.FormatFloat(o.Location.Lng, 'f', 6, 64),
			"price":        o.Price,
			"distance_km":  strconv.FormatFloat(distanceKm, 'f', 2, 64),
		},
		Notification: &messaging.Notification{
			Title: "New order nearby",
			Body:  fmt.Sprintf("%.1f km away — %s", distanceKm, o.Desc),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	if _, err := s.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending FCM offer for order %s: %w", string(o.ID), err)
	}
	return nil
}
