package humanize

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nehilsa2/console_keepalive/browser/browsertest"
)

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(d time.Duration) {
	r.delays = append(r.delays, d)
}

func newTestActor(pacing Pacing) (*Actor, *recorder) {
	rec := &recorder{}
	a := NewActor(pacing, zerolog.Nop(),
		WithSleeper(rec.sleep),
		WithRand(rand.New(rand.NewSource(42))),
	)
	return a, rec
}

func TestTypeHumanlike_OneEventPerCharacter(t *testing.T) {
	a, rec := newTestActor(DefaultPacing())
	el := &browsertest.Element{Value: "stale"}

	err := a.TypeHumanlike(el, "Octo-Cat9")
	require.NoError(t, err)

	assert.Equal(t, "Octo-Cat9", el.Value)
	assert.Equal(t, strings.Split("Octo-Cat9", ""), el.Typed)
	// one settle pause after clearing plus one per keystroke
	assert.Len(t, rec.delays, 1+len("Octo-Cat9"))
}

func TestTypeHumanlike_DelaysStayInRange(t *testing.T) {
	pacing := Pacing{
		Action:    Range{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond},
		Keystroke: Range{Min: 40 * time.Millisecond, Max: 120 * time.Millisecond},
	}
	a, rec := newTestActor(pacing)

	err := a.TypeHumanlike(&browsertest.Element{}, "Pa$$w0rd with spaces!")
	require.NoError(t, err)

	for _, d := range rec.delays[1:] {
		assert.GreaterOrEqual(t, d, pacing.Keystroke.Min)
		assert.LessOrEqual(t, d, pacing.Keystroke.Max)
	}
}

func TestTypeHumanlike_DelaysVary(t *testing.T) {
	a, rec := newTestActor(DefaultPacing())

	require.NoError(t, a.TypeHumanlike(&browsertest.Element{}, "abcdefghijklmnop"))

	distinct := map[time.Duration]bool{}
	for _, d := range rec.delays[1:] {
		distinct[d] = true
	}
	assert.Greater(t, len(distinct), 1, "keystroke cadence must not be uniform")
}

func TestTypeHumanlike_TypeError(t *testing.T) {
	a, _ := newTestActor(DefaultPacing())
	el := &browsertest.Element{TypeErr: errors.New("detached")}

	err := a.TypeHumanlike(el, "x")
	assert.ErrorContains(t, err, "detached")
}

func TestHoverThenClick(t *testing.T) {
	a, rec := newTestActor(DefaultPacing())
	el := &browsertest.Element{}

	require.NoError(t, a.HoverThenClick(el))

	assert.Equal(t, 1, el.Hovers)
	assert.Equal(t, 1, el.Clicks)
	require.Len(t, rec.delays, 2)
	for _, d := range rec.delays {
		assert.GreaterOrEqual(t, d, 300*time.Millisecond)
		assert.LessOrEqual(t, d, 800*time.Millisecond)
	}
}

func TestHoverThenClick_HoverFailureStillClicks(t *testing.T) {
	a, _ := newTestActor(DefaultPacing())
	el := &browsertest.Element{HoverErr: errors.New("no box model")}

	require.NoError(t, a.HoverThenClick(el))
	assert.Equal(t, 1, el.Clicks)
}

func TestHoverThenClick_ClickError(t *testing.T) {
	a, _ := newTestActor(DefaultPacing())
	el := &browsertest.Element{ClickErr: errors.New("covered")}

	assert.ErrorContains(t, a.HoverThenClick(el), "covered")
}

func TestRange_Sample(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	r := Range{Min: 5 * time.Millisecond, Max: 9 * time.Millisecond}
	for i := 0; i < 200; i++ {
		d := r.Sample(rng)
		assert.GreaterOrEqual(t, d, r.Min)
		assert.LessOrEqual(t, d, r.Max)
	}

	assert.Equal(t, 7*time.Millisecond, Range{Min: 7 * time.Millisecond, Max: 2 * time.Millisecond}.Sample(rng))
}
