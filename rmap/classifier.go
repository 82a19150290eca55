// Package rmap implements the differentiable reachability map: an RBF
// kernel classifier over pose samples with an analytic gradient in velocity
// space, its training, evaluation, and discretized grid form.
package rmap

import (
	"encoding/json"
	"math"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/mmurooka/differentiable-rmap/sampling"
)

// Model is the trained classifier state. The decision value of an input u is
//
//	sum_i Coefficients[i] * exp(-Gamma*|SupportVectors[i]-u|^2) - Rho
//
// with positive values on the reachable side.
type Model struct {
	Kind           sampling.Kind
	Gamma          float64
	SupportVectors [][]float64
	Coefficients   []float64
	Rho            float64
}

// Classifier evaluates a reachability model over samples of its space.
type Classifier struct {
	space sampling.Space
	model *Model
}

// NewClassifier validates a model and returns a classifier for it.
func NewClassifier(model *Model) (*Classifier, error) {
	space, err := sampling.NewSpace(model.Kind)
	if err != nil {
		return nil, err
	}
	if len(model.SupportVectors) == 0 {
		return nil, errors.New("model has no support vectors")
	}
	if len(model.SupportVectors) != len(model.Coefficients) {
		return nil, errors.Errorf("model has %d support vectors but %d coefficients",
			len(model.SupportVectors), len(model.Coefficients))
	}
	for i, sv := range model.SupportVectors {
		if len(sv) != space.InputDim() {
			return nil, errors.Errorf("support vector %d has dimension %d, expected %d",
				i, len(sv), space.InputDim())
		}
	}
	if model.Gamma <= 0 {
		return nil, errors.Errorf("gamma must be positive, got %v", model.Gamma)
	}
	return &Classifier{space: space, model: model}, nil
}

// Space returns the sampling space the classifier operates on.
func (c *Classifier) Space() sampling.Space {
	return c.space
}

// Model returns the underlying model. It must not be modified.
func (c *Classifier) Model() *Model {
	return c.model
}

// Value returns the decision value at a sample. Positive values indicate
// reachability.
func (c *Classifier) Value(s sampling.Sample) float64 {
	return c.ValueInput(c.space.SampleToInput(s))
}

// ValueInput is Value on an already lifted input vector.
func (c *Classifier) ValueInput(in sampling.Input) float64 {
	sum := -c.model.Rho
	for i, sv := range c.model.SupportVectors {
		sum += c.model.Coefficients[i] * rbf(c.model.Gamma, sv, in)
	}
	return sum
}

// Reachable reports whether the decision value at s clears the threshold.
func (c *Classifier) Reachable(s sampling.Sample, threshold float64) bool {
	return c.Value(s) >= threshold
}

// Gradient returns the velocity space gradient of the decision value at s:
// the input space kernel gradient chained through the input Jacobian of the
// space.
func (c *Classifier) Gradient(s sampling.Sample) sampling.Velocity {
	in := c.space.SampleToInput(s)
	gradIn := make([]float64, len(in))
	for i, sv := range c.model.SupportVectors {
		w := 2 * c.model.Gamma * c.model.Coefficients[i] * rbf(c.model.Gamma, sv, in)
		for j := range gradIn {
			gradIn[j] += w * (sv[j] - in[j])
		}
	}

	jac := c.space.InputToVelMat(s)
	grad := make(sampling.Velocity, c.space.VelDim())
	out := mat.NewVecDense(c.space.VelDim(), grad)
	out.MulVec(jac.T(), mat.NewVecDense(len(gradIn), gradIn))
	return grad
}

func rbf(gamma float64, a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return math.Exp(-gamma * d * d)
}

type modelJSON struct {
	Version        int         `json:"version"`
	Space          string      `json:"space"`
	Gamma          float64     `json:"gamma"`
	SupportVectors [][]float64 `json:"support_vectors"`
	Coefficients   []float64   `json:"coefficients"`
	Rho            float64     `json:"rho"`
}

const modelFormatVersion = 1

// Save writes the model to a JSON file.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(modelJSON{
		Version:        modelFormatVersion,
		Space:          m.Kind.String(),
		Gamma:          m.Gamma,
		SupportVectors: m.SupportVectors,
		Coefficients:   m.Coefficients,
		Rho:            m.Rho,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadModel reads a model from a JSON file and validates it by constructing a
// classifier.
func LoadModel(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in modelJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrapf(err, "parsing model %s", path)
	}
	kind, err := sampling.KindFromString(in.Space)
	if err != nil {
		return nil, err
	}
	return NewClassifier(&Model{
		Kind:           kind,
		Gamma:          in.Gamma,
		SupportVectors: in.SupportVectors,
		Coefficients:   in.Coefficients,
		Rho:            in.Rho,
	})
}
