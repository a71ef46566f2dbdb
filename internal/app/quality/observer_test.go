package quality

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/dkeye/AvatarCoach/internal/core/coretest"
	"github.com/dkeye/AvatarCoach/internal/domain"
	"github.com/stretchr/testify/assert"
)

func qualityEvent(raw string) core.Event {
	return core.Event{Kind: core.EventQualityChanged, Detail: json.RawMessage(raw)}
}

func TestObserver_StartsUnknown(t *testing.T) {
	o := NewObserver("sid")
	assert.Equal(t, domain.QualityUnknown, o.Current())
}

func TestObserver_ReflectsLatestValue(t *testing.T) {
	o := NewObserver("sid")
	var seen []domain.Quality
	o.OnChange(func(q domain.Quality) { seen = append(seen, q) })

	o.Handle(qualityEvent(`"GOOD"`))
	o.Handle(qualityEvent(`"BAD"`))
	o.Handle(qualityEvent(`{"quality":"good"}`))

	assert.Equal(t, domain.QualityGood, o.Current())
	assert.Equal(t, []domain.Quality{domain.QualityGood, domain.QualityBad, domain.QualityGood}, seen)
}

func TestObserver_GarbageIsUnknown(t *testing.T) {
	o := NewObserver("sid")
	o.Handle(qualityEvent(`"GOOD"`))

	o.Handle(qualityEvent(`{broken`))
	assert.Equal(t, domain.QualityUnknown, o.Current())

	o.Handle(qualityEvent(`"EXCELLENT"`))
	assert.Equal(t, domain.QualityUnknown, o.Current())
}

func TestObserver_IgnoresOtherKinds(t *testing.T) {
	o := NewObserver("sid")
	o.Handle(core.Event{Kind: core.EventStreamReady, Detail: json.RawMessage(`"GOOD"`)})
	assert.Equal(t, domain.QualityUnknown, o.Current())
}

func TestObserver_BindAndReset(t *testing.T) {
	client := coretest.NewClient("t")
	o := NewObserver("sid")
	o.Bind(client)

	client.Emit(core.EventQualityChanged, "BAD")
	assert.Equal(t, domain.QualityBad, o.Current())

	o.Reset()
	assert.Equal(t, domain.QualityUnknown, o.Current())
}
