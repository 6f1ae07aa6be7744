package comm

import (
	"testing"

	"github.com/google/uuid"
)

func TestCorrelator_AdmitsFirstDeliveryRejectsDuplicates(t *testing.T) {
	c := newCorrelator()
	correlationID := uuid.New()
	sender := uuid.New()

	c.register(correlationID)

	if !c.admit(correlationID, sender) {
		t.Error("first delivery from sender should be admitted")
	}
	if c.admit(correlationID, sender) {
		t.Error("duplicate delivery from the same sender should be rejected")
	}
}

func TestCorrelator_TracksMultipleSendersIndependently(t *testing.T) {
	c := newCorrelator()
	correlationID := uuid.New()
	senderA, senderB := uuid.New(), uuid.New()

	c.register(correlationID)

	if !c.admit(correlationID, senderA) {
		t.Error("first delivery from senderA should be admitted")
	}
	if !c.admit(correlationID, senderB) {
		t.Error("first delivery from senderB should be admitted independently")
	}
	if c.admit(correlationID, senderA) {
		t.Error("duplicate delivery from senderA should still be rejected")
	}
}

func TestCorrelator_RejectsUnregisteredCorrelationID(t *testing.T) {
	c := newCorrelator()
	if c.admit(uuid.New(), uuid.New()) {
		t.Error("a correlationId that was never registered should not be admitted")
	}
}

func TestCorrelator_DisposeStopsFurtherAdmission(t *testing.T) {
	c := newCorrelator()
	correlationID := uuid.New()
	sender := uuid.New()

	c.register(correlationID)
	c.dispose(correlationID)

	if c.admit(correlationID, sender) {
		t.Error("a disposed correlationId should no longer admit deliveries")
	}
}
