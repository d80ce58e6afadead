package progress_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/assert"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/progress"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	messages []published
	err      error
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{topic, payload})
	return nil
}

func TestMQTTSubscriber(t *testing.T) {
	as := assert.New(t)
	pub := &fakePublisher{}
	sub := progress.NewMQTTSubscriber(pub, "workshop/devices/")
	as.Equal("mqtt:workshop/devices", sub.ID())

	b, _ := newBroadcaster()
	b.Subscribe(sub)
	startJob(t, b, "job_1", 1000)

	as.Require.Len(pub.messages, 1)
	as.Equal("workshop/devices/SN123/progress", pub.messages[0].topic)

	var msg api.ProgressMessage
	as.Require.NoError(json.Unmarshal(pub.messages[0].payload, &msg))
	as.Equal(api.MessageFlashStarted, msg.Type)
	as.Equal(api.JobID("job_1"), msg.JobID)
	as.Equal(int64(1000), msg.TotalBytes)
}

func TestMQTTTopic(t *testing.T) {
	as := assert.New(t)
	sub := progress.NewMQTTSubscriber(&fakePublisher{}, "lab")
	as.Equal("lab/SN9/progress", sub.Topic("SN9"))
	as.Equal("lab/unknown/progress", sub.Topic(""))
}

func TestMQTTPublishError(t *testing.T) {
	as := assert.New(t)
	boom := errors.New("broker gone")
	sub := progress.NewMQTTSubscriber(&fakePublisher{err: boom}, "lab")
	err := sub.Send(&api.ProgressMessage{Type: api.MessageFlashProgress})
	as.ErrorIs(err, boom)
}

func TestMQTTClientBadURL(t *testing.T) {
	as := assert.New(t)
	for _, u := range []string{"", "://bad", "http://broker:1883", "broker"} {
		_, err := progress.NewMQTTClient(u, "test")
		as.ErrorIs(err, progress.ErrBrokerURL, u)
	}
}
