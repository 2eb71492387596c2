package gesture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// ErrMalformedModel is returned by Load when a persisted model blob cannot be
// reconstructed without losing or misaligning data.
var ErrMalformedModel = errors.New("malformed persisted model")

// Classifier defaults.
const (
	// DefaultK is the number of nearest neighbours that vote.
	DefaultK = 10
	// DefaultThreshold is the score a label must exceed to be reported.
	DefaultThreshold = 0.8

	// weightEpsilon keeps an exact match from dividing by zero.
	weightEpsilon = 1e-9
)

// Prediction is the classifier's answer for one feature vector.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ClassifierConfig holds configuration options for the classifier.
type ClassifierConfig struct {
	// K is the number of nearest neighbours considered (default: 10).
	K int

	// Threshold is the minimum score, exclusive, for a prediction (default: 0.8).
	Threshold float64

	// MaxExamplesPerLabel caps each label's examples, evicting the oldest.
	// Zero means unbounded.
	MaxExamplesPerLabel int
}

// DefaultClassifierConfig returns a ClassifierConfig with sensible default values.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		K:         DefaultK,
		Threshold: DefaultThreshold,
	}
}

// dataset maps labels to their examples and remembers label insertion order.
type dataset struct {
	order    []string
	examples map[string][]FeatureVector
}

func newDataset() *dataset {
	return &dataset{examples: make(map[string][]FeatureVector)}
}

func (d *dataset) add(v FeatureVector, label string) {
	if _, ok := d.examples[label]; !ok {
		d.order = append(d.order, label)
	}
	d.examples[label] = append(d.examples[label], v)
}

func (d *dataset) total() int {
	n := 0
	for _, ex := range d.examples {
		n += len(ex)
	}
	return n
}

// Classifier is an online k-nearest-neighbour classifier over feature vectors.
// It is safe for concurrent use.
type Classifier struct {
	config ClassifierConfig
	data   *dataset
	mu     sync.RWMutex
}

// NewClassifier creates an empty Classifier.
func NewClassifier(config ClassifierConfig) *Classifier {
	if config.K <= 0 {
		config.K = DefaultK
	}
	return &Classifier{
		config: config,
		data:   newDataset(),
	}
}

// AddExample stores v under label.
func (c *Classifier) AddExample(v FeatureVector, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.add(v, label)

	if limit := c.config.MaxExamplesPerLabel; limit > 0 {
		if ex := c.data.examples[label]; len(ex) > limit {
			c.data.examples[label] = append(ex[:0:0], ex[len(ex)-limit:]...)
		}
	}
}

// neighbour is one stored example's distance to a probe.
type neighbour struct {
	label    string
	distance float64
}

// Predict returns the best label for v and true, or false when the dataset is
// empty or no label scores above the threshold.
//
// The K nearest examples vote with weight 1/(distance+eps); a label's score is
// its share of the total weight. Equal scores go to the label that was added
// to the dataset first.
func (c *Classifier) Predict(v FeatureVector) (Prediction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best, ok := c.scoreLocked(v)
	if !ok || !(best.Confidence > c.config.Threshold) {
		return Prediction{}, false
	}
	return best, true
}

// Scores returns every label's vote share for v in label insertion order.
// The threshold is not applied.
func (c *Classifier) Scores(v FeatureVector) []Prediction {
	c.mu.RLock()
	defer c.mu.RUnlock()

	weights, total := c.voteLocked(v)
	if total == 0 {
		return nil
	}

	scores := make([]Prediction, 0, len(c.data.order))
	for _, label := range c.data.order {
		scores = append(scores, Prediction{Label: label, Confidence: weights[label] / total})
	}
	return scores
}

func (c *Classifier) scoreLocked(v FeatureVector) (Prediction, bool) {
	weights, total := c.voteLocked(v)
	if total == 0 {
		return Prediction{}, false
	}

	var best Prediction
	found := false
	// Strictly greater keeps the earliest inserted label on ties
	for _, label := range c.data.order {
		w, ok := weights[label]
		if !ok {
			continue
		}
		score := w / total
		if !found || score > best.Confidence {
			best = Prediction{Label: label, Confidence: score}
			found = true
		}
	}
	return best, found
}

func (c *Classifier) voteLocked(v FeatureVector) (map[string]float64, float64) {
	if c.data.total() == 0 {
		return nil, 0
	}

	// Walk labels in insertion order so equal distances sort deterministically
	neighbours := make([]neighbour, 0, c.data.total())
	for _, label := range c.data.order {
		for i := range c.data.examples[label] {
			neighbours = append(neighbours, neighbour{
				label:    label,
				distance: floats.Distance(v[:], c.data.examples[label][i][:], 2),
			})
		}
	}

	sort.SliceStable(neighbours, func(i, j int) bool {
		return neighbours[i].distance < neighbours[j].distance
	})

	k := c.config.K
	if k > len(neighbours) {
		k = len(neighbours)
	}

	weights := make(map[string]float64)
	var total float64
	for _, n := range neighbours[:k] {
		w := 1.0 / (n.distance + weightEpsilon)
		weights[n.label] += w
		total += w
	}
	return weights, total
}

// ExampleCounts returns the number of stored examples per label.
func (c *Classifier) ExampleCounts() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[string]int, len(c.data.examples))
	for label, ex := range c.data.examples {
		counts[label] = len(ex)
	}
	return counts
}

// Labels returns the labels present in the dataset in insertion order.
func (c *Classifier) Labels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.data.order...)
}

// TotalExamples returns the number of stored examples across all labels.
func (c *Classifier) TotalExamples() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.total()
}

// Clear removes every example.
func (c *Classifier) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = newDataset()
}

// Save serializes the dataset as a JSON object mapping each label to a flat
// array of FeatureSize*n numbers. Labels are written in insertion order.
func (c *Classifier) Save() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, label := range c.data.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(label)
		if err != nil {
			return "", fmt.Errorf("encode label %q: %w", label, err)
		}
		buf.Write(key)
		buf.WriteString(":[")
		for j, v := range c.data.examples[label] {
			for k, f := range v {
				if math.IsNaN(f) || math.IsInf(f, 0) {
					return "", fmt.Errorf("label %q example %d: value %d is not finite", label, j, k)
				}
				if j > 0 || k > 0 {
					buf.WriteByte(',')
				}
				buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
			}
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')

	return buf.String(), nil
}

// Load replaces the dataset with the one encoded in blob. On any error the
// current dataset is left untouched. A label whose array length is not a
// multiple of FeatureSize yields ErrMalformedModel.
func (c *Classifier) Load(blob string) error {
	data, err := decodeDataset(blob)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	return nil
}

func decodeDataset(blob string) (*dataset, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(blob)))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModel, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedModel)
	}

	data := newDataset()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedModel, err)
		}
		label, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected token %v", ErrMalformedModel, tok)
		}

		var values []float64
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("%w: label %q: %v", ErrMalformedModel, label, err)
		}
		if len(values)%FeatureSize != 0 {
			return nil, fmt.Errorf("%w: label %q has %d values, not a multiple of %d",
				ErrMalformedModel, label, len(values), FeatureSize)
		}
		if _, dup := data.examples[label]; dup {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrMalformedModel, label)
		}

		examples := make([]FeatureVector, len(values)/FeatureSize)
		for i := range examples {
			copy(examples[i][:], values[i*FeatureSize:(i+1)*FeatureSize])
		}
		data.order = append(data.order, label)
		data.examples[label] = examples
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModel, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after model", ErrMalformedModel)
	}

	return data, nil
}
