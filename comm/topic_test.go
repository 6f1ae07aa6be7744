package comm

import (
	"testing"

	"github.com/google/uuid"

	"github.com/coaty-io/coaty-go/event"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	corr := uuid.New().String()
	tp := topic{
		Namespace:     "fleet1",
		EventType:     event.TypeResolve,
		SourceID:      uuid.New().String(),
		CorrelationID: corr,
	}
	raw := encodeTopic(tp)
	got, err := decodeTopic(raw)
	if err != nil {
		t.Fatalf("decodeTopic(%q) error: %v", raw, err)
	}
	if got != tp {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, tp)
	}
}

func TestEncodeDefaultNamespace(t *testing.T) {
	tp := topic{EventType: event.TypeAdvertise, SourceID: "src"}
	got := encodeTopic(tp)
	want := "coaty/-/ADV/src"
	if got != want {
		t.Errorf("encodeTopic = %q, want %q", got, want)
	}
}

func TestEncodeChannelFilterSegment(t *testing.T) {
	tp := topic{EventType: event.TypeChannel, SourceID: "src", FilterTag: "sensors/temp"}
	got := encodeTopic(tp)
	want := "coaty/-/CHN/src/sensors%2Ftemp"
	if got != want {
		t.Errorf("encodeTopic = %q, want %q", got, want)
	}
	back, err := decodeTopic(got)
	if err != nil {
		t.Fatalf("decodeTopic error: %v", err)
	}
	if back.FilterTag != "sensors/temp" {
		t.Errorf("FilterTag = %q, want %q", back.FilterTag, "sensors/temp")
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"not-coaty/-/ADV/src",
		"coaty/-/ADV",
		"coaty/-/RSV/src", // missing correlationId
		"coaty/-/CHN/src", // missing filter tag
		"coaty/-/ADV/src/extra/extra2",
	}
	for _, c := range cases {
		if _, err := decodeTopic(c); err == nil {
			t.Errorf("decodeTopic(%q) should have failed", c)
		}
	}
}

func TestSubscriptionFilterWildcards(t *testing.T) {
	got := subscriptionFilter("-", event.TypeAdvertise, "", "", "")
	want := "coaty/-/ADV/+"
	if got != want {
		t.Errorf("subscriptionFilter = %q, want %q", got, want)
	}
}

func TestAdvertiseFilterTag(t *testing.T) {
	if got := advertiseFilterTag("IoSource", "com.example.Temp"); got != "IoSource:com.example.Temp" {
		t.Errorf("advertiseFilterTag = %q", got)
	}
}
