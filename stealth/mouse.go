package stealth

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// MouseConfig holds configuration for human-like mouse movement
type MouseConfig struct {
	// Base duration for a "standard" move
	BaseSpeed time.Duration

	// Number of steps for the curve. 8-15 looks human, 50+ does not.
	MinSteps int
	MaxSteps int

	// Probability of overshooting (0.0-1.0) and the max overshoot as a
	// fraction of the travelled distance
	OvershootChance   float64
	OvershootDistance float64

	// How far the control points deviate from the straight line
	CurveVariance float64

	// Tiny random movements along the path, in pixels
	JitterAmount float64
}

// DefaultMouseConfig returns balanced settings for human-like movement
func DefaultMouseConfig() MouseConfig {
	return MouseConfig{
		BaseSpeed:         150 * time.Millisecond,
		MinSteps:          8,
		MaxSteps:          14,
		OvershootChance:   0.15,
		OvershootDistance: 0.08,
		CurveVariance:     0.25,
		JitterAmount:      1.5,
	}
}

// Mouse moves the pointer of one page along curved paths.
type Mouse struct {
	cfg MouseConfig
	rng *rand.Rand
}

// NewMouse creates a Mouse seeded from the clock.
func NewMouse(cfg MouseConfig) *Mouse {
	return &Mouse{cfg: cfg, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Hover moves the pointer onto el along a Bézier curve. It lands at a random
// point near the center instead of dead center.
func (m *Mouse) Hover(page *rod.Page, el *rod.Element) error {
	shape, err := el.Shape()
	if err != nil || shape == nil || len(shape.Quads) == 0 {
		return el.Hover()
	}

	quad := shape.Quads[0]
	target := proto.Point{
		X: (quad[0] + quad[2] + quad[4] + quad[6]) / 4,
		Y: (quad[1] + quad[3] + quad[5] + quad[7]) / 4,
	}
	width := math.Abs(quad[2] - quad[0])
	height := math.Abs(quad[5] - quad[1])
	target.X += (m.rng.Float64() - 0.5) * width * 0.3
	target.Y += (m.rng.Float64() - 0.5) * height * 0.3

	from := page.Mouse.Position()
	if from.X == 0 && from.Y == 0 {
		// The pointer has never moved; start somewhere plausible.
		from, err = m.viewportStart(page)
		if err != nil {
			return el.Hover()
		}
		if err := page.Mouse.MoveTo(from); err != nil {
			return fmt.Errorf("failed to place mouse: %w", err)
		}
	}

	path := Path(from, target, m.cfg, m.rng)
	stepDelay := travelTime(from, target, m.cfg) / time.Duration(len(path))
	for _, p := range path {
		if err := page.Mouse.MoveTo(p); err != nil {
			return fmt.Errorf("failed to move mouse: %w", err)
		}
		jittered := stepDelay + time.Duration(m.rng.Intn(10)-5)*time.Millisecond
		if jittered < time.Millisecond {
			jittered = time.Millisecond
		}
		time.Sleep(jittered)
	}

	if m.rng.Float64() < m.cfg.OvershootChance {
		return m.overshootAndCorrect(page, target, distance(from, target))
	}
	return nil
}

// Path returns the intermediate pointer positions from "from" to "to". The
// last point is always exactly "to".
func Path(from, to proto.Point, cfg MouseConfig, rng *rand.Rand) []proto.Point {
	d := distance(from, to)
	if d < 5 {
		return []proto.Point{to}
	}

	steps := cfg.MinSteps + int(d/100)
	if steps > cfg.MaxSteps {
		steps = cfg.MaxSteps
	}
	if steps < 1 {
		steps = 1
	}

	ctrl1, ctrl2 := controlPoints(from, to, cfg.CurveVariance, rng)

	points := make([]proto.Point, 0, steps)
	for i := 1; i <= steps; i++ {
		t := easeInOutQuad(float64(i) / float64(steps))
		pos := cubicBezier(from, ctrl1, ctrl2, to, t)

		if i < steps && cfg.JitterAmount > 0 {
			pos.X += (rng.Float64() - 0.5) * cfg.JitterAmount
			pos.Y += (rng.Float64() - 0.5) * cfg.JitterAmount
		}
		points = append(points, pos)
	}
	points[len(points)-1] = to
	return points
}

func travelTime(from, to proto.Point, cfg MouseConfig) time.Duration {
	return time.Duration(float64(cfg.BaseSpeed) * (0.8 + distance(from, to)/500))
}

func distance(a, b proto.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// controlPoints places two control points at 1/3 and 2/3 of the path,
// pushed sideways by a random share of the distance.
func controlPoints(from, to proto.Point, variance float64, rng *rand.Rand) (proto.Point, proto.Point) {
	dx := to.X - from.X
	dy := to.Y - from.Y
	d := math.Hypot(dx, dy)

	perpX := -dy / d
	perpY := dx / d

	offset1 := (rng.Float64() - 0.5) * 2 * variance * d
	offset2 := (rng.Float64() - 0.5) * 2 * variance * d

	return proto.Point{X: from.X + dx*0.3 + perpX*offset1, Y: from.Y + dy*0.3 + perpY*offset1},
		proto.Point{X: from.X + dx*0.7 + perpX*offset2, Y: from.Y + dy*0.7 + perpY*offset2}
}

// B(t) = (1-t)³P0 + 3(1-t)²tP1 + 3(1-t)t²P2 + t³P3
func cubicBezier(p0, p1, p2, p3 proto.Point, t float64) proto.Point {
	mt := 1 - t
	mt2 := mt * mt
	mt3 := mt2 * mt
	t2 := t * t
	t3 := t2 * t

	return proto.Point{
		X: mt3*p0.X + 3*mt2*t*p1.X + 3*mt*t2*p2.X + t3*p3.X,
		Y: mt3*p0.Y + 3*mt2*t*p1.Y + 3*mt*t2*p2.Y + t3*p3.Y,
	}
}

func easeInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

func (m *Mouse) overshootAndCorrect(page *rod.Page, target proto.Point, d float64) error {
	overshoot := d * m.cfg.OvershootDistance * (0.5 + m.rng.Float64()*0.5)
	angle := m.rng.Float64() * 2 * math.Pi
	past := proto.Point{
		X: target.X + math.Cos(angle)*overshoot,
		Y: target.Y + math.Sin(angle)*overshoot,
	}

	if err := page.Mouse.MoveTo(past); err != nil {
		return err
	}
	time.Sleep(time.Duration(15+m.rng.Intn(25)) * time.Millisecond)

	steps := 2 + m.rng.Intn(2)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p := proto.Point{
			X: past.X + (target.X-past.X)*t,
			Y: past.Y + (target.Y-past.Y)*t,
		}
		if err := page.Mouse.MoveTo(p); err != nil {
			return err
		}
		time.Sleep(time.Duration(10+m.rng.Intn(15)) * time.Millisecond)
	}
	return nil
}

func (m *Mouse) viewportStart(page *rod.Page) (proto.Point, error) {
	res, err := page.Eval(`() => ({ width: window.innerWidth, height: window.innerHeight })`)
	if err != nil {
		return proto.Point{}, err
	}

	width := res.Value.Get("width").Num()
	height := res.Value.Get("height").Num()
	return proto.Point{
		X: width * (0.3 + m.rng.Float64()*0.4),
		Y: height * (0.3 + m.rng.Float64()*0.4),
	}, nil
}
