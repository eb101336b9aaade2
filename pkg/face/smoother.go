package face

// Smoother stabilizes the per-frame arg-max over a bounded window of recent
// frames. Newer entries weigh more: the i-th oldest of n entries has weight i/n.
//
// Confidences are divided by the total weight across all labels, so a
// fluctuating window yields fractional values even for the winning label.
type Smoother struct {
	ring  []Score // fixed arena, len == capacity
	next  int     // write index
	count int
}

// NewSmoother creates a smoother holding at most capacity entries.
func NewSmoother(capacity int) *Smoother {
	if capacity <= 0 {
		capacity = HistorySize
	}
	return &Smoother{ring: make([]Score, capacity)}
}

// Select returns the strictly highest score, preferring the earlier emotion
// on ties. All-zero input selects (Neutral, 0).
func Select(scores [NumEmotions]Score) Score {
	best := Score{Emotion: Neutral}
	for _, s := range scores {
		if s.Value > best.Value {
			best = s
		}
	}
	return best
}

// Update records the winner of the current frame and returns the smoothed reading.
func (s *Smoother) Update(scores [NumEmotions]Score) Reading {
	s.push(Select(scores))
	return s.Current()
}

func (s *Smoother) push(sc Score) {
	s.ring[s.next] = sc
	s.next = (s.next + 1) % len(s.ring)
	if s.count < len(s.ring) {
		s.count++
	}
}

// Current returns the smoothed reading without adding a frame.
func (s *Smoother) Current() Reading {
	if s.count == 0 {
		return Reading{Emotion: Neutral}
	}

	n := float64(s.count)
	var sums [NumEmotions]float64
	var present [NumEmotions]bool
	var total float64

	oldest := (s.next - s.count + len(s.ring)) % len(s.ring)
	for i := 0; i < s.count; i++ {
		sc := s.ring[(oldest+i)%len(s.ring)]
		w := float64(i+1) / n
		sums[sc.Emotion] += sc.Value * w
		present[sc.Emotion] = true
		total += w
	}

	best := Reading{Emotion: Neutral}
	bestSum := -1.0
	for _, e := range Emotions() {
		if present[e] && sums[e] > bestSum {
			bestSum = sums[e]
			best.Emotion = e
		}
	}
	best.Confidence = clamp01(bestSum / total)
	return best
}

// Len returns the number of entries in the window.
func (s *Smoother) Len() int {
	return s.count
}

// Cap returns the window capacity.
func (s *Smoother) Cap() int {
	return len(s.ring)
}

// History returns the window contents, oldest first.
func (s *Smoother) History() []Score {
	out := make([]Score, 0, s.count)
	oldest := (s.next - s.count + len(s.ring)) % len(s.ring)
	for i := 0; i < s.count; i++ {
		out = append(out, s.ring[(oldest+i)%len(s.ring)])
	}
	return out
}
