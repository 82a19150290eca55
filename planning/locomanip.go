package planning

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/qpsolver"
	"github.com/mmurooka/differentiable-rmap/rmap"
	"github.com/mmurooka/differentiable-rmap/sampling"
	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

// Limb identifies the end effector a reachability model belongs to.
type Limb string

// The limbs a locomanipulation plan coordinates.
const (
	LeftFoot  Limb = "left_foot"
	RightFoot Limb = "right_foot"
	LeftHand  Limb = "left_hand"
)

// Limbs lists all limbs of a locomanipulation plan.
var Limbs = []Limb{LeftFoot, RightFoot, LeftHand}

const defaultMotionLen = 3

// LocomanipConfig configures a LocomanipPlanner. Zero values select
// defaults.
type LocomanipConfig struct {
	// Kind selects the sampling space of all samples.
	Kind sampling.Kind
	// MotionLen is the number of entries in each of the foot and hand
	// chains.
	MotionLen int
	// ReachThreshold is the decision value every link should keep.
	ReachThreshold float64
	// AdjacentRegWeight couples consecutive chain entries and anchors each
	// chain at its start sample.
	AdjacentRegWeight float64
	// RegWeight is the damping floor added to the objective diagonal.
	RegWeight float64
	// SlackPenalty is the quadratic penalty on reachability violations.
	SlackPenalty float64
	// DeltaLimit bounds every velocity component per iteration.
	DeltaLimit float64
	// StartPoses are the initial limb poses. Missing limbs start at the
	// identity.
	StartPoses map[Limb]spatialmath.Pose
	// TargetHand is the pose the last hand entry tracks.
	TargetHand spatialmath.Pose
}

func (cfg LocomanipConfig) withDefaults() LocomanipConfig {
	if cfg.MotionLen == 0 {
		cfg.MotionLen = defaultMotionLen
	}
	if cfg.AdjacentRegWeight == 0 {
		cfg.AdjacentRegWeight = defaultAdjacentRegWeight
	}
	if cfg.RegWeight == 0 {
		cfg.RegWeight = defaultRegWeight
	}
	if cfg.SlackPenalty == 0 {
		cfg.SlackPenalty = defaultSlackPenalty
	}
	if cfg.DeltaLimit == 0 {
		cfg.DeltaLimit = defaultDeltaLimit
	}
	return cfg
}

// Validate checks the configuration after defaults are applied.
func (cfg LocomanipConfig) Validate() error {
	if cfg.MotionLen < 1 {
		return errors.New("motion_len must be positive")
	}
	if cfg.AdjacentRegWeight < 0 || cfg.RegWeight < 0 {
		return errors.New("regularization weights cannot be negative")
	}
	if cfg.SlackPenalty <= 0 {
		return errors.New("slack penalty must be positive")
	}
	if cfg.DeltaLimit <= 0 {
		return errors.New("delta_limit must be positive")
	}
	return nil
}

// LocomanipPlanner plans an alternating footstep chain and a hand pose chain
// in one QP, with a separately trained reachability model per limb. The last
// hand entry tracks the target; reachability between the feet and between
// consecutive hand poses is softened with slack variables.
//
// Reachability coupling from the feet to the hand is deliberately absent.
type LocomanipPlanner struct {
	cfg         LocomanipConfig
	space       sampling.Space
	classifiers map[Limb]*rmap.Classifier
	solver      qpsolver.Solver
	logger      logging.Logger

	feet       []sampling.Sample
	hands      []sampling.Sample
	start      map[Limb]sampling.Sample
	targetHand sampling.Sample
	identity   sampling.Sample

	adjacent   *mat.SymDense
	qc         *qpsolver.Coefficients
	current    []float64
	currentVec *mat.VecDense
	adjVec     *mat.VecDense
}

// NewLocomanipPlanner validates the configuration and seeds both chains at
// the limb start poses: foot entries alternate between the left and right
// start, hand entries all start at the left hand start.
func NewLocomanipPlanner(
	classifiers map[Limb]*rmap.Classifier,
	solver qpsolver.Solver,
	cfg LocomanipConfig,
	logger logging.Logger,
) (*LocomanipPlanner, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	space, err := sampling.NewSpace(cfg.Kind)
	if err != nil {
		return nil, err
	}
	for _, limb := range Limbs {
		classifier, ok := classifiers[limb]
		if !ok {
			return nil, errors.Errorf("missing classifier for limb %s", limb)
		}
		if classifier.Space().Kind() != cfg.Kind {
			return nil, errors.Errorf("classifier for limb %s is trained for %s, planner configured for %s",
				limb, classifier.Space().Kind(), cfg.Kind)
		}
	}

	n, velDim := cfg.MotionLen, space.VelDim()
	configDim := 2 * n * velDim
	dim := configDim + 2*n
	p := &LocomanipPlanner{
		cfg:         cfg,
		space:       space,
		classifiers: classifiers,
		solver:      solver,
		logger:      logger,
		feet:        make([]sampling.Sample, n),
		hands:       make([]sampling.Sample, n),
		start:       make(map[Limb]sampling.Sample, len(Limbs)),
		targetHand:  space.PoseToSample(cfg.TargetHand),
		identity:    space.IdentitySample(),
		qc:          qpsolver.NewCoefficients(dim, 2*n),
		current:     make([]float64, dim),
	}
	for _, limb := range Limbs {
		p.start[limb] = space.PoseToSample(cfg.StartPoses[limb])
	}
	for i := 0; i < n; i++ {
		stepFoot := LeftFoot
		if i%2 == 1 {
			stepFoot = RightFoot
		}
		p.feet[i] = p.start[stepFoot].Clone()
		p.hands[i] = p.start[LeftHand].Clone()
	}

	handStart := n * velDim
	chain := AdjacencyMatrix(velDim, n, cfg.AdjacentRegWeight)
	p.adjacent = mat.NewSymDense(dim, nil)
	for i := 0; i < handStart; i++ {
		for j := i; j < handStart; j++ {
			if v := chain.At(i, j); v != 0 {
				p.adjacent.SetSym(i, j, v)
				p.adjacent.SetSym(handStart+i, handStart+j, v)
			}
		}
	}
	p.currentVec = mat.NewVecDense(dim, p.current)
	p.adjVec = mat.NewVecDense(dim, nil)
	return p, nil
}

// Space returns the sampling space the planner operates in.
func (p *LocomanipPlanner) Space() sampling.Space {
	return p.space
}

// State returns a snapshot of the foot and hand chains and the hand target.
func (p *LocomanipPlanner) State() State {
	feet := make([]sampling.Sample, len(p.feet))
	hands := make([]sampling.Sample, len(p.hands))
	for i := range p.feet {
		feet[i] = p.feet[i].Clone()
		hands[i] = p.hands[i].Clone()
	}
	return State{
		Kind: p.cfg.Kind,
		Chains: []NamedChain{
			{Name: FootChain, Samples: feet},
			{Name: HandChain, Samples: hands},
		},
		Target: p.targetHand.Clone(),
	}
}

// Step runs one planning iteration over both chains.
func (p *LocomanipPlanner) Step(ctx context.Context) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	n, velDim := p.cfg.MotionLen, p.space.VelDim()
	configDim := 2 * n * velDim
	handStart := n * velDim
	dim := configDim + 2*n
	qc := p.qc
	qc.Reset()
	for i := 0; i < configDim; i++ {
		qc.XMin[i] = -p.cfg.DeltaLimit
		qc.XMax[i] = p.cfg.DeltaLimit
	}
	for i := configDim; i < dim; i++ {
		qc.XMin[i] = -slackLimit
		qc.XMax[i] = slackLimit
	}

	handErr := p.space.SampleError(p.targetHand, p.hands[n-1])
	copy(qc.ObjVec[configDim-velDim:], handErr)
	setDiag(qc.ObjMat, configDim-velDim, configDim, 1)
	addDiag(qc.ObjMat, 0, configDim, floats.Dot(handErr, handErr)+p.cfg.RegWeight)
	setDiag(qc.ObjMat, configDim, dim, p.cfg.SlackPenalty)

	for i := 0; i < n; i++ {
		copy(p.current[i*velDim:], p.space.SampleError(p.identity, p.feet[i]))
		copy(p.current[handStart+i*velDim:], p.space.SampleError(p.identity, p.hands[i]))
	}
	p.adjVec.MulVec(p.adjacent, p.currentVec)
	floats.Add(qc.ObjVec, p.adjVec.RawVector().Data)
	// The adjacency anchors sit at the chain starts rather than the
	// identity; shift the linear term accordingly.
	floats.AddScaled(qc.ObjVec[:velDim], -p.cfg.AdjacentRegWeight,
		p.space.SampleError(p.identity, p.start[LeftFoot]))
	floats.AddScaled(qc.ObjVec[handStart:handStart+velDim], -p.cfg.AdjacentRegWeight,
		p.space.SampleError(p.identity, p.start[LeftHand]))
	qc.ObjMat.AddSym(qc.ObjMat, p.adjacent)

	for i := 0; i < n; i++ {
		stepFoot := LeftFoot
		if i%2 == 1 {
			stepFoot = RightFoot
		}
		pre := p.start[RightFoot]
		if i > 0 {
			pre = p.feet[i-1]
		}
		suc := p.feet[i]
		rel := p.space.RelSample(pre, suc)
		grad := p.classifiers[stepFoot].Gradient(rel)
		if i > 0 {
			setIneqBlock(qc.IneqMat, i, (i-1)*velDim, grad, p.space.RelVelToVelMat(pre, suc, false))
		}
		setIneqBlock(qc.IneqMat, i, i*velDim, grad, p.space.RelVelToVelMat(pre, suc, true))
		qc.IneqMat.Set(i, configDim+i, -1)
		qc.IneqVec[i] = p.classifiers[stepFoot].Value(rel) - p.cfg.ReachThreshold
	}
	for i := 0; i < n; i++ {
		row := n + i
		pre := p.start[LeftHand]
		if i > 0 {
			pre = p.hands[i-1]
		}
		suc := p.hands[i]
		rel := p.space.RelSample(pre, suc)
		grad := p.classifiers[LeftHand].Gradient(rel)
		if i > 0 {
			setIneqBlock(qc.IneqMat, row, handStart+(i-1)*velDim, grad, p.space.RelVelToVelMat(pre, suc, false))
		}
		setIneqBlock(qc.IneqMat, row, handStart+i*velDim, grad, p.space.RelVelToVelMat(pre, suc, true))
		qc.IneqMat.Set(row, configDim+row, -1)
		qc.IneqVec[row] = p.classifiers[LeftHand].Value(rel) - p.cfg.ReachThreshold
	}

	res := StepResult{SolverOK: true, IKConverged: true, TrackingError: floats.Norm(handErr, 2)}
	vel, err := p.solver.Solve(ctx, qc)
	if err != nil {
		if !errors.Is(err, qpsolver.ErrSolveFailed) {
			return StepResult{}, err
		}
		p.logger.Warnw("QP solve failed, keeping the locomanipulation state", "error", err)
		res.SolverOK = false
		return res, nil
	}
	for i := 0; i < n; i++ {
		p.feet[i] = p.space.IntegrateVel(p.feet[i], vel[i*velDim:(i+1)*velDim])
		p.hands[i] = p.space.IntegrateVel(p.hands[i], vel[handStart+i*velDim:handStart+(i+1)*velDim])
	}
	return res, nil
}
